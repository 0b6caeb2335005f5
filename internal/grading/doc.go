// Package grading runs grading jobs and batches.
//
// A Job drives one worker invocation, normalizes the outcome and persists it,
// converting every failure into a JobFailure. The Orchestrator dispatches one
// job per submission under a concurrency limit, waits for all of them
// (a failing job never cancels its siblings), closes the shared reference key
// only after the last job settled, and partitions results by submission index.
// Processing time is measured across the whole request and written back onto
// each stored result afterwards.
package grading
