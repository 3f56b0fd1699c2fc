package preset

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/modelw/preset/internal/env"
	"github.com/modelw/preset/internal/logging"
	"github.com/modelw/preset/internal/settings"
)

func (p *Preset) preBaseDir(_ *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	dir, err := p.guessBaseDir()
	if err != nil {
		return nil, err
	}
	return []settings.Pair{
		{Key: "BASE_DIR", Value: dir},
	}, nil
}

// preBase sets the handful of values every deployment needs.
func (p *Preset) preBase(m *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	secret, err := m.GetString("SECRET_KEY", env.BuildDefault("xxx"))
	if err != nil {
		return nil, err
	}

	debug, err := p.debug(m)
	if err != nil {
		return nil, err
	}

	baseURL, err := m.GetString("BASE_URL", env.BuildDefault("https://example.com"))
	if err != nil {
		return nil, err
	}

	return []settings.Pair{
		{Key: "SECRET_KEY", Value: secret},
		{Key: "DEBUG", Value: debug},
		{Key: "ALLOWED_HOSTS", Value: []string{"*"}},
		{Key: "SECURE_PROXY_SSL_HEADER", Value: []string{"X-Forwarded-Proto", "https"}},
		{Key: "USE_X_FORWARDED_HOST", Value: true},
		{Key: "DEFAULT_AUTO_FIELD", Value: "fields.bigauto"},
		{Key: "BASE_URL", Value: baseURL},
	}, nil
}

// prePasswords prefers Argon2: much more secure than the alternatives for a
// much lower cost. The rest of the list keeps older hashes verifiable.
func (p *Preset) prePasswords(_ *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	return []settings.Pair{
		{Key: "PASSWORD_HASHERS", Value: []string{
			"hashers.argon2",
			"hashers.pbkdf2",
			"hashers.pbkdf2-sha1",
			"hashers.bcrypt-sha256",
		}},
	}, nil
}

// preLogging installs the global logger as a side effect and records the
// logging settings for the host. The level follows DEBUG.
func (p *Preset) preLogging(m *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	debug, err := p.debug(m)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(debug)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	level := "warn"
	encoding := "json"
	if debug {
		level = "debug"
		encoding = "console"
	}

	return []settings.Pair{
		{Key: "LOGGING", Value: map[string]any{
			"LEVEL":    level,
			"ENCODING": encoding,
		}},
	}, nil
}

// preCrashReporting initializes the crash reporter when a DSN is configured.
// Pure side effect: it contributes no settings pairs.
func (p *Preset) preCrashReporting(m *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	dsn, err := m.GetString("SENTRY_DSN", env.Default(""))
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, nil
	}

	name, err := p.environment(m)
	if err != nil {
		return nil, err
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      name,
		SendDefaultPII:   true,
		TracesSampleRate: p.sentrySampleRate,
	}); err != nil {
		return nil, fmt.Errorf("init crash reporting: %w", err)
	}

	return nil, nil
}

// preDatabase decomposes DATABASE_URL into named fields. Connections are
// opened and closed per request unless POOL_DB_CONNECTIONS turns pooling on,
// which is slower but more cost-effective in some setups.
func (p *Preset) preDatabase(m *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	db, err := p.database(m)
	if err != nil {
		return nil, err
	}

	pool, err := m.GetBool("POOL_DB_CONNECTIONS", env.Default(false))
	if err != nil {
		return nil, err
	}

	connMaxAge := time.Duration(0)
	if pool {
		connMaxAge = p.pooledConnMaxAge
	}

	return []settings.Pair{
		{Key: "DATABASE", Value: map[string]any{
			"ENGINE":       db.Engine,
			"HOST":         db.Host,
			"PORT":         db.Port,
			"NAME":         db.Name,
			"USER":         db.User,
			"PASSWORD":     db.Password,
			"CONN_MAX_AGE": connMaxAge,
		}},
	}, nil
}

// preCache points the cache at Redis, with keys namespaced per environment.
func (p *Preset) preCache(m *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	if !p.enableCache {
		return nil, nil
	}

	location, err := p.redisURL(m)
	if err != nil {
		return nil, err
	}

	prefix, err := p.redisPrefix(m, "cache")
	if err != nil {
		return nil, err
	}

	return []settings.Pair{
		{Key: "CACHE", Value: map[string]any{
			"BACKEND":    "redis",
			"LOCATION":   location,
			"KEY_PREFIX": prefix,
			"OPTIONS": map[string]any{
				"SOCKET_TIMEOUT":         5 * time.Second,
				"SOCKET_CONNECT_TIMEOUT": 5 * time.Second,
				"SOCKET_KEEPALIVE":       true,
				"HEALTH_CHECK_INTERVAL":  time.Second,
			},
		}},
	}, nil
}

// preMiddleware sets the middleware chain a project can't reasonably run
// without. Applications should append to this list from their own provider
// rather than replace it, so additions made here over time aren't lost.
func (p *Preset) preMiddleware(_ *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	return []settings.Pair{
		{Key: "MIDDLEWARE", Value: []string{
			MiddlewareSecurity,
			middlewareSessions,
			middlewareCommon,
			middlewareCSRF,
			middlewareAuth,
			middlewareMessages,
			middlewareClickjacking,
		}},
	}, nil
}

func (p *Preset) preStaticFiles(_ *env.Manager, ctx settings.Context) ([]settings.Pair, error) {
	baseDir, _ := ctx["BASE_DIR"].(string)

	return []settings.Pair{
		{Key: "STATICFILES_FINDERS", Value: []string{
			"finders.filesystem",
			"finders.appdirs",
		}},
		{Key: "STATICFILES_DIRS", Value: []string{}},
		{Key: "STATIC_URL", Value: p.urlPrefix + "/static/"},
		{Key: "STATIC_ROOT", Value: filepath.Join(baseDir, "static")},
	}, nil
}

func (p *Preset) preTemplates(_ *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	return []settings.Pair{
		{Key: "TEMPLATES", Value: map[string]any{
			"BACKEND":  "templates.native",
			"DIRS":     []string{},
			"APP_DIRS": true,
		}},
	}, nil
}

// preI18N enables localization. LANGUAGES itself is left to the application;
// the review phase checks it is there.
func (p *Preset) preI18N(m *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	tz, err := m.GetString("TIME_ZONE", env.Default(p.defaultTimeZone))
	if err != nil {
		return nil, err
	}

	return []settings.Pair{
		{Key: "USE_I18N", Value: true},
		{Key: "USE_L10N", Value: true},
		{Key: "TIME_ZONE", Value: tz},
		{Key: "USE_TZ", Value: true},
	}, nil
}

// preAPI sets API framework defaults: session auth, authenticated-only
// access, page-number pagination where the caller can pick the page size up
// to a cap.
func (p *Preset) preAPI(_ *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	// 60 divides by 2, 3, 4 and 5, which falls nicely with most column
	// layouts.
	const pageSize = 60

	return []settings.Pair{
		{Key: "API", Value: map[string]any{
			"AUTHENTICATION_CLASSES": []string{"api.auth.session"},
			"PERMISSION_CLASSES":     []string{"api.permissions.authenticated"},
			"PAGINATION_CLASS":       "api.pagination.limited-page-number",
			"PAGE_SIZE":              pageSize,
			"MAX_PAGE_SIZE":          pageSize * 3,
		}},
	}, nil
}

// preMailTypes defines empty mail and SMS type registries so the mail app
// doesn't crash before the application declares its own.
func (p *Preset) preMailTypes(_ *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	return []settings.Pair{
		{Key: "MAIL_EMAIL_TYPES", Value: map[string]any{}},
		{Key: "MAIL_SMS_TYPES", Value: map[string]any{}},
	}, nil
}

// preTaskQueue injects queue defaults on Redis. The broker URL lands in the
// write phase on purpose: the application gets a chance to override it
// before the review phase locks in transport options.
func (p *Preset) preTaskQueue(m *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	if !p.enableQueue {
		return nil, nil
	}

	broker, err := p.redisURL(m)
	if err != nil {
		return nil, err
	}

	return []settings.Pair{
		{Key: "QUEUE_RESULT_BACKEND", Value: "database"},
		{Key: "QUEUE_RESULT_EXTENDED", Value: true},
		{Key: "QUEUE_BROKER_URL", Value: broker},
		{Key: "QUEUE_TIMEZONE", Value: p.defaultTimeZone},
		{Key: "QUEUE_TASK_TRACK_STARTED", Value: p.queueTrackStart},
		{Key: "QUEUE_TASK_TIME_LIMIT", Value: p.queueTimeLimit},
	}, nil
}

func (p *Preset) preWebsockets(m *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	if !p.enableWebsockets {
		return nil, nil
	}

	location, err := p.redisURL(m)
	if err != nil {
		return nil, err
	}

	prefix, err := p.redisPrefix(m, "websocket")
	if err != nil {
		return nil, err
	}

	return []settings.Pair{
		{Key: "WEBSOCKET_LAYER", Value: map[string]any{
			"BACKEND":  "redis",
			"LOCATION": location,
			"PREFIX":   prefix,
			"OPTIONS": map[string]any{
				"SOCKET_TIMEOUT":         5 * time.Second,
				"SOCKET_CONNECT_TIMEOUT": 5 * time.Second,
				"SOCKET_KEEPALIVE":       true,
				"HEALTH_CHECK_INTERVAL":  time.Second,
			},
		}},
	}, nil
}

// preObjectStorage configures S3-compatible storage. STORAGES_MODE selects
// between plain S3 ("s3") and DigitalOcean Spaces ("do"). Inside an AWS
// container the SDK resolves credentials on its own, so we only emit keys
// when we actually have to.
func (p *Preset) preObjectStorage(m *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	if !p.enableStorage {
		return nil, nil
	}

	pairs := []settings.Pair{
		{Key: "STORAGE_BACKEND", Value: "s3"},
		{Key: "STORAGE_FILE_OVERWRITE", Value: false},
	}

	containerURI, err := m.GetString("AWS_CONTAINER_CREDENTIALS_RELATIVE_URI", env.Default(""))
	if err != nil {
		return nil, err
	}
	isAWS := containerURI != ""

	mode, err := m.GetString("STORAGES_MODE", env.Default("s3"))
	if err != nil {
		return nil, err
	}

	if mode == "do" || !isAWS {
		accessKey, err := m.GetString("AWS_ACCESS_KEY_ID", env.BuildDefault("xxx"))
		if err != nil {
			return nil, err
		}
		secretKey, err := m.GetString("AWS_SECRET_ACCESS_KEY", env.BuildDefault("xxx"))
		if err != nil {
			return nil, err
		}
		pairs = append(pairs,
			settings.Pair{Key: "AWS_ACCESS_KEY_ID", Value: accessKey},
			settings.Pair{Key: "AWS_SECRET_ACCESS_KEY", Value: secretKey},
		)
	}

	bucket, err := m.GetString("AWS_STORAGE_BUCKET_NAME", env.BuildDefault("xxx"))
	if err != nil {
		return nil, err
	}
	pairs = append(pairs, settings.Pair{Key: "AWS_STORAGE_BUCKET_NAME", Value: bucket})

	public, err := m.GetBool("STORAGE_MAKE_FILES_PUBLIC", env.BuildDefault(false))
	if err != nil {
		return nil, err
	}
	if public {
		domain, err := m.GetString("AWS_S3_CUSTOM_DOMAIN")
		if err != nil {
			return nil, err
		}
		pairs = append(pairs,
			settings.Pair{Key: "AWS_S3_CUSTOM_DOMAIN", Value: domain},
			settings.Pair{Key: "STORAGE_DEFAULT_ACL", Value: "public-read"},
			settings.Pair{Key: "STORAGE_OBJECT_PARAMETERS", Value: map[string]any{
				"CacheControl": fmt.Sprintf("max-age=%d", 3600*24*365),
			}},
		)
	}

	if mode == "do" {
		region, err := m.GetString("DO_REGION", env.Default("ams3"))
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, settings.Pair{
			Key:   "AWS_S3_ENDPOINT_URL",
			Value: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		})
	}

	return pairs, nil
}

func (p *Preset) preHealthCheck(_ *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	if !p.enableHealth {
		return nil, nil
	}

	pairs := []settings.Pair{
		{Key: "HEALTH_CHECK", Value: map[string]any{
			"MEMORY_MIN": 300,
		}},
	}

	if p.enableQueue {
		pairs = append(pairs, settings.Pair{
			Key:   "HEALTHCHECK_QUEUE_PING_TIMEOUT",
			Value: 500 * time.Millisecond,
		})
	}

	return pairs, nil
}

// preCMS sets the content management defaults. Unicode slugs stay off
// because several downstream systems still choke on them.
func (p *Preset) preCMS(_ *env.Manager, ctx settings.Context) ([]settings.Pair, error) {
	if !p.enableCMS {
		return nil, nil
	}

	pairs := []settings.Pair{
		{Key: "CMS_I18N_ENABLED", Value: true},
		{Key: "CMS_ALLOW_UNICODE_SLUGS", Value: false},
		{Key: "CMS_ENABLE_UPDATE_CHECK", Value: false},
		{Key: "TAGS_CASE_INSENSITIVE", Value: true},
	}

	if base, ok := ctx["BASE_URL"].(string); ok && base != "" {
		pairs = append(pairs, settings.Pair{Key: "CMS_ADMIN_BASE_URL", Value: base})
	}

	return pairs, nil
}
