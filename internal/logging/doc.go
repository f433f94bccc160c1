// Package logging assembles the structured slog loggers used across the
// bridge and pool.
//
// It owns the console/JSON handler selection, centralizes level and output
// plumbing, and exposes thin attribute helpers so call sites read uniformly.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape and routing.
package logging
