// Package settings contains the machinery that assembles the application
// configuration at startup: a contribution collector that merges prioritized
// app-installation requests into one deterministic ordered list, and a
// two-phase pipeline in which providers first write settings and then review
// and adjust the fully assembled result.
package settings
