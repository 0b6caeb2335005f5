// Package api defines wire-format types and converters for the HTTP grading
// API. It translates orchestrator responses and stored results into the
// payloads browser and CLI clients render without coupling to internal types.
//
// # Key Types
//
// GradeResponse/BatchResponse: grading payloads. Worker outcome fields keep
// their snake_case names; orchestration fields are camelCase.
//
// ResultListResponse/ResultResponse/StatsResponse: result store projections.
//
// DaemonStatus: runtime information including worker, host and dependencies.
//
// Event: live notifications broadcast while batches run.
//
// # Converters
//
// FromSingleResponse/FromBatchResponse: orchestrator results to payloads.
//
// FromRecord/FromSummary/FromStats: result store rows to payloads. List and
// stats rows render dates as DD.MM.YYYY and times as HH:MM:SS.
//
// # Design Notes
//
// ResultsService owns paging: page numbers are 1-based, limits are clamped to
// the configured maximum, and a bare end date covers the whole day.
package api
