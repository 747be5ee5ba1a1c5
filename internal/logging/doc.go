// Package logging assembles structured slog loggers and formatting helpers used
// across proctor services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes component loggers plus standardized field keys so the
// analysis workers, the coordinator, and the state machine tag log lines with
// the same interview, session, and analyzer identifiers. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
