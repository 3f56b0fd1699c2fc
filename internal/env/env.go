package env

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// VarInfo records how a variable was looked up.
type VarInfo struct {
	Required bool
	IsYAML   bool
}

// Manager resolves environment values and keeps track of every variable it
// was asked about. One Manager drives one configuration run: repeated lookups
// of the same name return the memoized first result.
type Manager struct {
	lookup func(string) (string, bool)
	build  bool
	used   map[string]VarInfo
	cache  map[string]cached
}

type cached struct {
	value any
	err   error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLookup replaces the process environment with a custom source,
// primarily for tests.
func WithLookup(fn func(string) (string, bool)) Option {
	return func(m *Manager) {
		m.lookup = fn
	}
}

// WithBuildMode forces build mode on or off instead of detecting it from
// the BUILD_MODE variable.
func WithBuildMode(enabled bool) Option {
	return func(m *Manager) {
		m.build = enabled
	}
}

// NewManager creates a Manager backed by the process environment. Build mode
// defaults to the truthiness of BUILD_MODE.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		lookup: os.LookupEnv,
		build:  buildModeFromEnv(),
		used:   make(map[string]VarInfo),
		cache:  make(map[string]cached),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func buildModeFromEnv() bool {
	raw := os.Getenv("BUILD_MODE")
	return raw == "1" || strings.EqualFold(raw, "true") || strings.EqualFold(raw, "yes")
}

// GetOption adjusts a single lookup.
type GetOption func(*getConfig)

type getConfig struct {
	def         any
	hasDef      bool
	buildDef    any
	hasBuildDef bool
	yaml        bool
}

// Default supplies a fallback used when the variable is absent. A lookup
// without Default is required.
func Default(v any) GetOption {
	return func(cfg *getConfig) {
		cfg.def = v
		cfg.hasDef = true
	}
}

// BuildDefault supplies a fallback that only applies in build mode, where
// real values (credentials, URLs) are not available yet. Outside build mode
// the variable stays required unless Default is also given.
func BuildDefault(v any) GetOption {
	return func(cfg *getConfig) {
		cfg.buildDef = v
		cfg.hasBuildDef = true
	}
}

// AsYAML decodes the raw value as a YAML document, so booleans, numbers and
// lists come back typed.
func AsYAML() GetOption {
	return func(cfg *getConfig) {
		cfg.yaml = true
	}
}

// Get resolves a variable. The result is the raw string unless AsYAML was
// given. Absent required variables yield a MissingError.
func (m *Manager) Get(name string, opts ...GetOption) (any, error) {
	var cfg getConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	required := !cfg.hasDef && !(m.build && cfg.hasBuildDef)
	if _, seen := m.used[name]; !seen {
		m.used[name] = VarInfo{Required: required, IsYAML: cfg.yaml}
	}

	if c, ok := m.cache[name]; ok {
		return c.value, c.err
	}

	value, err := m.resolve(name, cfg)
	m.cache[name] = cached{value: value, err: err}
	return value, err
}

func (m *Manager) resolve(name string, cfg getConfig) (any, error) {
	raw, ok := m.lookup(name)
	if !ok || raw == "" {
		switch {
		case m.build && cfg.hasBuildDef:
			return cfg.buildDef, nil
		case cfg.hasDef:
			return cfg.def, nil
		default:
			return nil, &MissingError{Name: name}
		}
	}

	if !cfg.yaml {
		return raw, nil
	}

	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("decode %s as YAML: %w", name, err)
	}
	return value, nil
}

// GetString resolves a variable and asserts the result is a string.
func (m *Manager) GetString(name string, opts ...GetOption) (string, error) {
	value, err := m.Get(name, opts...)
	if err != nil {
		return "", err
	}
	if value == nil {
		return "", nil
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("environment variable %s: expected string, got %T", name, value)
	}
	return s, nil
}

// GetBool resolves a YAML-decoded variable and asserts the result is a bool.
func (m *Manager) GetBool(name string, opts ...GetOption) (bool, error) {
	value, err := m.Get(name, append(opts, AsYAML())...)
	if err != nil {
		return false, err
	}
	if value == nil {
		return false, nil
	}
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("environment variable %s: expected bool, got %T", name, value)
	}
	return b, nil
}

// Used returns a copy of the recorded lookups.
func (m *Manager) Used() map[string]VarInfo {
	out := make(map[string]VarInfo, len(m.used))
	for name, info := range m.used {
		out[name] = info
	}
	return out
}
