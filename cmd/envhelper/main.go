// Command envhelper assembles the application settings the same way the
// host process would at startup, then lists every environment variable that
// was consulted along the way.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/modelw/preset/internal/env"
	"github.com/modelw/preset/internal/logging"
	"github.com/modelw/preset/internal/preset"
	"github.com/modelw/preset/internal/settings"
)

func main() {
	app := kingpin.New("envhelper", "Lists the environment variables consulted while assembling application settings")
	outputFormat := app.Flag("output-format", "Output format. Choices: table or json. Defaults to table.").
		Short('f').Default(FormatTable.String()).Enum(FormatNames...)
	dotenv := app.Flag("dotenv", "Load the nearest .env file before assembling").Bool()
	build := app.Flag("build", "Assemble with build-time fallbacks instead of requiring real values").Bool()
	withQueue := app.Flag("with-queue", "Include the task queue configuration").Bool()
	withHealth := app.Flag("with-health-check", "Include the health check configuration").Bool()
	withCMS := app.Flag("with-cms", "Include the content management configuration").Bool()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	format, err := ParseFormat(*outputFormat)
	if err != nil {
		kingpin.Fatalf("%v", err)
	}

	if *dotenv {
		if err := env.Load(); err != nil {
			kingpin.Fatalf("load .env: %v", err)
		}
	}

	logger, err := logging.New(false)
	if err != nil {
		kingpin.Fatalf("initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	opts := []env.Option{}
	if *build {
		opts = append(opts, env.WithBuildMode(true))
	}
	manager := env.NewManager(opts...)

	p := preset.New(
		preset.WithTaskQueue(*withQueue),
		preset.WithHealthCheck(*withHealth),
		preset.WithCMS(*withCMS),
		preset.WithPreProvider(settings.Provider{
			Name: "languages",
			Run:  languagesFromEnv,
		}),
	)

	if _, err := p.Load(manager); err != nil {
		logger.Fatal("failed to assemble settings", zap.Error(err))
	}

	if err := Render(os.Stdout, format, manager.Used()); err != nil {
		logger.Fatal("failed to render output", zap.Error(err))
	}
}

// languagesFromEnv lets the command run outside a full application: the
// preset requires LANGUAGES to be declared, which normally happens in the
// host's own provider.
func languagesFromEnv(m *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	value, err := m.Get("LANGUAGES", env.Default([]string{"en"}), env.AsYAML())
	if err != nil {
		return nil, err
	}

	langs, err := toStringSlice(value)
	if err != nil {
		return nil, fmt.Errorf("LANGUAGES: %w", err)
	}

	return []settings.Pair{
		{Key: "LANGUAGES", Value: langs},
	}, nil
}

// toStringSlice accepts either a ready []string default or a YAML-decoded
// list of scalars.
func toStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is not a string", i)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", value)
	}
}
