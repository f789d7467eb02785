// Package logging assembles structured slog loggers and formatting helpers
// used across Cadence components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes helpers so render and encode code can tag log lines
// with job IDs, stages, and frame indices uniformly. The package also provides
// a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
