// Package logging assembles structured slog loggers and formatting helpers used
// across bundlewatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so components tag log lines with the
// same keys (component, event_type, error_hint). The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
