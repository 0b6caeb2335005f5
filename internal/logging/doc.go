// Package logging assembles structured slog loggers and formatting helpers used
// across grila.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so grading code can automatically
// tag log lines with batch IDs, submission indexes, stages, and correlation
// IDs. The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
