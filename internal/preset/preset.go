package preset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelw/preset/internal/env"
	"github.com/modelw/preset/internal/settings"
)

// Middleware identifiers used by the default chain. The security entry must
// stay first; the review phase enforces that.
const (
	MiddlewareSecurity     = "middleware.security"
	MiddlewareStaticFiles  = "middleware.staticfiles"
	middlewareSessions     = "middleware.sessions"
	middlewareCommon       = "middleware.common"
	middlewareCSRF         = "middleware.csrf"
	middlewareAuth         = "middleware.auth"
	middlewareMessages     = "middleware.messages"
	middlewareClickjacking = "middleware.clickjacking"
	middlewareRedirects    = "middleware.redirects"
)

// Preset builds the settings pipeline. One Preset instance drives one
// pipeline run; memoized lookups (environment name, database URL) are scoped
// to it so that each run stays repeatable.
type Preset struct {
	sentrySampleRate float64
	defaultTimeZone  string
	urlPrefix        string
	baseDir          string
	pooledConnMaxAge time.Duration
	postGIS          bool
	enableCache      bool
	enableCMS        bool
	enableQueue      bool
	enableWebsockets bool
	enableStorage    bool
	enableHealth     bool
	queueTrackStart  bool
	queueTimeLimit   time.Duration

	extraPre  []settings.Provider
	extraPost []settings.Provider

	installs *settings.InstallRegistry

	envName    memo[string]
	dbSettings memo[databaseSettings]
}

type memo[T any] struct {
	done  bool
	value T
	err   error
}

// Option adjusts the preset.
type Option func(*Preset)

// WithSentrySampleRate sets the performance-tracing sample rate reported to
// the crash reporter. At scale this should go well below 1.
func WithSentrySampleRate(rate float64) Option {
	return func(p *Preset) {
		p.sentrySampleRate = rate
	}
}

// WithTimeZone sets the default time zone used when TIME_ZONE is not set.
func WithTimeZone(tz string) Option {
	return func(p *Preset) {
		p.defaultTimeZone = tz
	}
}

// WithURLPrefix sets the path prefix under which the backend is served on
// the platform, "/back" by default. Static URLs derive from it.
func WithURLPrefix(prefix string) Option {
	return func(p *Preset) {
		p.urlPrefix = strings.TrimRight(prefix, "/")
	}
}

// WithBaseDir forces the project base directory instead of guessing it from
// the location of go.mod.
func WithBaseDir(dir string) Option {
	return func(p *Preset) {
		p.baseDir = dir
	}
}

// WithPooledConnMaxAge sets the database connection max age applied when
// POOL_DB_CONNECTIONS enables pooling.
func WithPooledConnMaxAge(age time.Duration) Option {
	return func(p *Preset) {
		p.pooledConnMaxAge = age
	}
}

// WithPostGIS switches the database engine to PostGIS.
func WithPostGIS(enabled bool) Option {
	return func(p *Preset) {
		p.postGIS = enabled
	}
}

// WithCache enables or disables the Redis cache configuration.
func WithCache(enabled bool) Option {
	return func(p *Preset) {
		p.enableCache = enabled
	}
}

// WithCMS enables the content management system configuration: its settings
// block, its apps, and the redirect middleware it needs.
func WithCMS(enabled bool) Option {
	return func(p *Preset) {
		p.enableCMS = enabled
	}
}

// WithTaskQueue enables the background task queue configuration.
func WithTaskQueue(enabled bool) Option {
	return func(p *Preset) {
		p.enableQueue = enabled
	}
}

// WithWebsockets enables the websocket channel layer configuration.
func WithWebsockets(enabled bool) Option {
	return func(p *Preset) {
		p.enableWebsockets = enabled
	}
}

// WithObjectStorage enables the S3-compatible object storage configuration.
func WithObjectStorage(enabled bool) Option {
	return func(p *Preset) {
		p.enableStorage = enabled
	}
}

// WithHealthCheck enables the health check configuration and apps.
func WithHealthCheck(enabled bool) Option {
	return func(p *Preset) {
		p.enableHealth = enabled
	}
}

// WithQueueTimeLimit sets the hard per-task time limit. Choose something
// wide but choose something: it keeps stalled tasks from clogging the queue.
func WithQueueTimeLimit(limit time.Duration) Option {
	return func(p *Preset) {
		p.queueTimeLimit = limit
	}
}

// WithPreProvider appends a write-phase provider after the built-in ones,
// letting the application contribute or override settings before review.
func WithPreProvider(prov settings.Provider) Option {
	return func(p *Preset) {
		p.extraPre = append(p.extraPre, prov)
	}
}

// WithPostProvider appends a review-phase provider after the built-in ones.
func WithPostProvider(prov settings.Provider) Option {
	return func(p *Preset) {
		p.extraPost = append(p.extraPost, prov)
	}
}

// New creates a preset with defaults suitable for a small PaaS deployment.
func New(opts ...Option) *Preset {
	p := &Preset{
		sentrySampleRate: 1.0,
		defaultTimeZone:  "Europe/Madrid",
		urlPrefix:        "/back",
		pooledConnMaxAge: 60 * time.Second,
		enableCache:      true,
		queueTrackStart:  true,
		queueTimeLimit:   time.Hour,
		installs:         settings.NewInstallRegistry(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pipeline builds the two-phase pipeline with the preset's providers in
// their fixed order, application-supplied providers last in each phase.
func (p *Preset) Pipeline() *settings.Pipeline {
	pre := []settings.Provider{
		{Name: "base-dir", Run: p.preBaseDir},
		{Name: "base", Run: p.preBase},
		{Name: "logging", Run: p.preLogging},
		{Name: "crash-reporting", Run: p.preCrashReporting},
		{Name: "database", Run: p.preDatabase},
		{Name: "passwords", Run: p.prePasswords},
		{Name: "cache", Run: p.preCache},
		{Name: "middleware", Run: p.preMiddleware},
		{Name: "static-files", Run: p.preStaticFiles},
		{Name: "templates", Run: p.preTemplates},
		{Name: "i18n", Run: p.preI18N},
		{Name: "api", Run: p.preAPI},
		{Name: "mail-types", Run: p.preMailTypes},
		{Name: "task-queue", Run: p.preTaskQueue},
		{Name: "websockets", Run: p.preWebsockets},
		{Name: "object-storage", Run: p.preObjectStorage},
		{Name: "health-check", Run: p.preHealthCheck},
		{Name: "cms", Run: p.preCMS},
	}
	pre = append(pre, p.extraPre...)

	post := []settings.Provider{
		{Name: "i18n-review", Run: p.postI18N},
		{Name: "static-review", Run: p.postStaticFiles},
		{Name: "mail", Run: p.postMail},
		{Name: "sms", Run: p.postSMS},
		{Name: "mail-app", Run: p.postMailApp},
		{Name: "api-apps", Run: p.postAPIApps},
		{Name: "task-queue-review", Run: p.postTaskQueue},
		{Name: "websocket-apps", Run: p.postWebsocketApps},
		{Name: "cms-review", Run: p.postCMS},
		{Name: "default-apps", Run: p.postDefaultApps},
		{Name: "env-helper", Run: p.postEnvHelper},
		{Name: "health-check-apps", Run: p.postHealthCheckApps},
	}
	post = append(post, p.extraPost...)

	return settings.NewPipeline(pre, post)
}

// Load runs the pipeline against the given environment and returns the
// assembled context. Any error is fatal to startup.
func (p *Preset) Load(m *env.Manager) (settings.Context, error) {
	return p.Pipeline().Run(m)
}

// guessBaseDir walks up from the working directory looking for go.mod, the
// closest thing a Go project has to a guaranteed root marker.
func (p *Preset) guessBaseDir() (string, error) {
	if p.baseDir != "" {
		return p.baseDir, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil && !info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("cannot find base directory of project, no go.mod up the tree")
}

// debug reads the DEBUG flag; the manager memoizes it so the rest of the
// providers can call this freely.
func (p *Preset) debug(m *env.Manager) (bool, error) {
	return m.GetBool("DEBUG", env.Default(false))
}

// redisURL reads the Redis URL shared by cache, queue, and websockets.
func (p *Preset) redisURL(m *env.Manager) (string, error) {
	return m.GetString("REDIS_URL", env.Default("redis://localhost"))
}

// redisPrefix computes the key prefix for one Redis use ("cache", "queue",
// ...), namespaced by environment so several deployments can share one
// Redis instance.
func (p *Preset) redisPrefix(m *env.Manager, use string) (string, error) {
	name, err := p.environment(m)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:", name, use), nil
}

// environment resolves the deployment environment name ("production",
// "develop_remy", "feature_42"). On a developer machine we derive a default
// from the user and database names, which keeps Redis prefixes unique
// locally; in production naming the environment must stay a deliberate
// choice, so there is no fallback there.
func (p *Preset) environment(m *env.Manager) (string, error) {
	if p.envName.done {
		return p.envName.value, p.envName.err
	}

	opts := []env.GetOption{env.BuildDefault("_build")}

	home, _ := m.GetString("HOME", env.Default(""))
	user, _ := m.GetString("USER", env.Default(""))
	if strings.HasPrefix(home, "/home/") && user != "" {
		if db, err := p.database(m); err == nil && db.Name != "" {
			opts = append(opts, env.Default(user+"_"+db.Name))
		}
	}

	name, err := m.GetString("ENVIRONMENT", opts...)
	p.envName = memo[string]{done: true, value: name, err: err}
	return name, err
}
