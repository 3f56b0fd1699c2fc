package preset

import (
	"slices"
	"time"

	"github.com/modelw/preset/internal/env"
	"github.com/modelw/preset/internal/settings"
)

// installApp registers an app contribution, folds in whatever the context
// already holds under INSTALLED_APPS, and yields the re-sorted list.
func (p *Preset) installApp(ctx settings.Context, name string, priority int) settings.Pair {
	p.installs.Register(name, priority)
	p.installs.MergeContext(ctx.StringSlice("INSTALLED_APPS"))
	return settings.Pair{Key: "INSTALLED_APPS", Value: p.installs.Apps()}
}

// postI18N checks that the application declared its languages and derives
// the default language from the first entry, so LANGUAGES and LANGUAGE_CODE
// don't have to be set separately.
func (p *Preset) postI18N(_ *env.Manager, ctx settings.Context) ([]settings.Pair, error) {
	langs, err := settings.RequireNonEmpty(ctx, "LANGUAGES")
	if err != nil {
		return nil, err
	}

	pairs := []settings.Pair{
		{Key: "LANGUAGE_CODE", Value: langs[0]},
	}

	if p.enableCMS {
		if _, ok := ctx["CMS_CONTENT_LANGUAGES"]; !ok {
			pairs = append(pairs, settings.Pair{Key: "CMS_CONTENT_LANGUAGES", Value: langs})
		}
		if _, ok := ctx["CMS_ADMIN_LANGUAGES"]; !ok {
			pairs = append(pairs, settings.Pair{Key: "CMS_ADMIN_LANGUAGES", Value: langs})
		}
	}

	return pairs, nil
}

// postStaticFiles enforces middleware ordering for static file serving: the
// security middleware stays first, and the static files middleware slots in
// right behind it when the application didn't place it itself.
func (p *Preset) postStaticFiles(_ *env.Manager, ctx settings.Context) ([]settings.Pair, error) {
	middleware, err := settings.RequireFirst(ctx, "MIDDLEWARE", MiddlewareSecurity)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(middleware, MiddlewareStaticFiles) {
		middleware = slices.Insert(slices.Clone(middleware), 1, MiddlewareStaticFiles)
	}

	return []settings.Pair{
		{Key: "STATICFILES_STORAGE", Value: "staticfiles.compressed-manifest"},
		{Key: "MIDDLEWARE", Value: middleware},
	}, nil
}

// postMail selects the mail backend from EMAIL_MODE. Unless a mode is set
// explicitly, mail goes to the console for obvious safety reasons.
func (p *Preset) postMail(m *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	mode, err := m.GetString("EMAIL_MODE", env.Default("console"))
	if err != nil {
		return nil, err
	}

	switch mode {
	case "mailjet":
		public, err := m.GetString("MAILJET_API_KEY_PUBLIC")
		if err != nil {
			return nil, err
		}
		private, err := m.GetString("MAILJET_API_KEY_PRIVATE")
		if err != nil {
			return nil, err
		}
		return []settings.Pair{
			{Key: "EMAIL_BACKEND", Value: "mail.mailjet"},
			{Key: "MAILJET_API_KEY_PUBLIC", Value: public},
			{Key: "MAILJET_API_KEY_PRIVATE", Value: private},
		}, nil
	case "mandrill":
		key, err := m.GetString("MANDRILL_API_KEY")
		if err != nil {
			return nil, err
		}
		return []settings.Pair{
			{Key: "EMAIL_BACKEND", Value: "mail.mandrill"},
			{Key: "MANDRILL_API_KEY", Value: key},
		}, nil
	default:
		return []settings.Pair{
			{Key: "EMAIL_BACKEND", Value: "mail.console"},
		}, nil
	}
}

// postSMS mirrors postMail for SMS sending.
func (p *Preset) postSMS(m *env.Manager, _ settings.Context) ([]settings.Pair, error) {
	mode, err := m.GetString("SMS_MODE", env.Default("console"))
	if err != nil {
		return nil, err
	}

	switch mode {
	case "mailjet":
		token, err := m.GetString("MAILJET_API_TOKEN")
		if err != nil {
			return nil, err
		}
		return []settings.Pair{
			{Key: "SMS_BACKEND", Value: "sms.mailjet"},
			{Key: "MAILJET_API_TOKEN", Value: token},
		}, nil
	default:
		return []settings.Pair{
			{Key: "SMS_BACKEND", Value: "sms.console"},
		}, nil
	}
}

// postTaskQueue runs after the application had its chance to override the
// broker URL. If it didn't, we hijack the transport options to enforce the
// environment key prefix, keeping the application's own options underneath.
func (p *Preset) postTaskQueue(m *env.Manager, ctx settings.Context) ([]settings.Pair, error) {
	if !p.enableQueue {
		return nil, nil
	}

	redis, err := p.redisURL(m)
	if err != nil {
		return nil, err
	}

	if broker, _ := ctx["QUEUE_BROKER_URL"].(string); broker != redis {
		return nil, nil
	}

	prefix, err := p.redisPrefix(m, "queue")
	if err != nil {
		return nil, err
	}

	options := map[string]any{
		"SOCKET_TIMEOUT":         5 * time.Second,
		"SOCKET_CONNECT_TIMEOUT": 5 * time.Second,
		"SOCKET_KEEPALIVE":       true,
		"RETRY_ON_TIMEOUT":       true,
		"HEALTH_CHECK_INTERVAL":  time.Second,
	}
	if existing, ok := ctx["QUEUE_BROKER_TRANSPORT_OPTIONS"].(map[string]any); ok {
		for key, value := range existing {
			options[key] = value
		}
	}
	options["GLOBAL_KEY_PREFIX"] = prefix

	return []settings.Pair{
		{Key: "QUEUE_BROKER_TRANSPORT_OPTIONS", Value: options},
		p.installApp(ctx, "queue.results", 80),
	}, nil
}

// postMailApp installs the templated mail app declared by preMailTypes.
func (p *Preset) postMailApp(_ *env.Manager, ctx settings.Context) ([]settings.Pair, error) {
	return []settings.Pair{
		p.installApp(ctx, "mail", 80),
	}, nil
}

// postAPIApps installs the API framework and its geographic extensions.
func (p *Preset) postAPIApps(_ *env.Manager, ctx settings.Context) ([]settings.Pair, error) {
	return []settings.Pair{
		p.installApp(ctx, "api", 80),
		p.installApp(ctx, "api.gis", 80),
	}, nil
}

// postCMS installs the content management apps and appends the redirect
// middleware the CMS relies on, unless the application placed it already.
func (p *Preset) postCMS(_ *env.Manager, ctx settings.Context) ([]settings.Pair, error) {
	if !p.enableCMS {
		return nil, nil
	}

	pairs := []settings.Pair{
		p.installApp(ctx, "cms.forms", 70),
		p.installApp(ctx, "cms.redirects", 70),
		p.installApp(ctx, "cms.embeds", 71),
		p.installApp(ctx, "cms.sites", 71),
		p.installApp(ctx, "cms.users", 71),
		p.installApp(ctx, "cms.snippets", 71),
		p.installApp(ctx, "cms.documents", 71),
		p.installApp(ctx, "cms.images", 71),
		p.installApp(ctx, "cms.search", 71),
		p.installApp(ctx, "cms.admin", 71),
		p.installApp(ctx, "cms", 72),
		p.installApp(ctx, "cms.clusters", 73),
		p.installApp(ctx, "cms.tags", 73),
	}

	middleware := ctx.StringSlice("MIDDLEWARE")
	if !slices.Contains(middleware, middlewareRedirects) {
		middleware = append(slices.Clone(middleware), middlewareRedirects)
		pairs = append(pairs, settings.Pair{Key: "MIDDLEWARE", Value: middleware})
	}

	return pairs, nil
}

// postWebsocketApps loads the websocket apps very early: the server runtime
// they bring must wrap everything else.
func (p *Preset) postWebsocketApps(_ *env.Manager, ctx settings.Context) ([]settings.Pair, error) {
	if !p.enableWebsockets {
		return nil, nil
	}

	return []settings.Pair{
		p.installApp(ctx, "websockets", 10),
		p.installApp(ctx, "websockets.server", 10),
	}, nil
}

// postDefaultApps installs the framework apps that ship with a default
// project, ahead of application apps but behind anything that must wrap the
// runtime.
func (p *Preset) postDefaultApps(_ *env.Manager, ctx settings.Context) ([]settings.Pair, error) {
	return []settings.Pair{
		p.installApp(ctx, "apps.admin", 60),
		p.installApp(ctx, "apps.auth", 60),
		p.installApp(ctx, "apps.contenttypes", 60),
		p.installApp(ctx, "apps.messages", 60),
		p.installApp(ctx, "apps.sessions", 60),
		p.installApp(ctx, "apps.staticfiles", 60),
	}, nil
}

// postEnvHelper discretely inserts the settings helper app that backs the
// envhelper command. It brings no models, shouldn't be too intrusive.
func (p *Preset) postEnvHelper(_ *env.Manager, ctx settings.Context) ([]settings.Pair, error) {
	return []settings.Pair{
		p.installApp(ctx, "envhelper", 90),
	}, nil
}

func (p *Preset) postHealthCheckApps(_ *env.Manager, ctx settings.Context) ([]settings.Pair, error) {
	if !p.enableHealth {
		return nil, nil
	}

	pairs := []settings.Pair{
		p.installApp(ctx, "healthcheck", 80),
		p.installApp(ctx, "healthcheck.db", 81),
		p.installApp(ctx, "healthcheck.cache", 81),
		p.installApp(ctx, "healthcheck.migrations", 82),
		p.installApp(ctx, "healthcheck.psutil", 82),
	}

	if p.enableQueue {
		pairs = append(pairs, p.installApp(ctx, "healthcheck.queue", 82))
	}

	return pairs, nil
}
