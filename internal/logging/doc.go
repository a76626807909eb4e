// Package logging assembles structured slog loggers and formatting helpers
// used across Bindery services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes helpers so engine code can tag log lines with job IDs
// and worker IDs consistently. The package also provides a no-op logger for
// tests and wiring code that cannot fail.
package logging
