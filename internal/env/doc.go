// Package env resolves configuration values from environment variables while
// recording every variable that was consulted. Values can carry defaults,
// build-time fallbacks, and YAML-typed decoding, so that "true", "42" or
// "[a, b]" arrive as typed Go values. Lookups are memoized per Manager, which
// keeps a single configuration run repeatable and side-effect-isolated.
package env
