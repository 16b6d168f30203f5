// Package logging assembles structured slog loggers and formatting helpers used
// across tailcast services.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes component-scoped loggers so the detector, hub and
// transport tag every line with where it came from. The package also provides
// a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the daemon.
package logging
