// Package services defines shared utilities consumed by the grading pipeline
// and its HTTP surface.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, submission indexes, stage names,
//     and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the grading taxonomy (ingestion, worker, persistence, not found)
//     and map them onto API kinds and HTTP status codes.
//
// Use these helpers when wiring new grading code so error reporting and
// observability stay uniform between the CLI, the daemon, and the batch
// orchestrator.
package services
