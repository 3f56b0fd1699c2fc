// Package preset assembles the settings a web application consumes at
// startup when running on PaaS platforms: database connection, cache
// backend, middleware chain, installed apps, static file handling, logging,
// and third-party service toggles. Values set by write-phase providers can
// be overridden by the application's own providers before the review phase
// enforces global invariants over the assembled result.
package preset
