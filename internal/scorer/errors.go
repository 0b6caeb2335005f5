package scorer

import (
	"fmt"
	"strings"

	"grila/internal/services"
)

const diagnosticLimit = 2048

// StartError reports that the worker process could not be launched.
type StartError struct {
	Err error
}

func (e *StartError) Error() string { return "start worker: " + e.Err.Error() }

func (e *StartError) Unwrap() error { return e.Err }

// ExecutionError describes a worker that ran but reported failure, either by a
// non-zero exit or by an error document on stdout.
type ExecutionError struct {
	ExitCode int
	Stderr   string
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s (exit %d)", services.ErrWorkerExecution, e.ExitCode)
	if detail := truncate(strings.TrimSpace(e.Stderr)); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return services.ErrWorkerExecution }

// OutputError carries the raw worker stdout that could not be turned into an
// Outcome.
type OutputError struct {
	Raw []byte
	Err error
}

func (e *OutputError) Error() string {
	msg := services.ErrMalformedOutput.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if raw := truncate(strings.TrimSpace(string(e.Raw))); raw != "" {
		msg += fmt.Sprintf(" (output: %q)", raw)
	}
	return msg
}

func (e *OutputError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrMalformedOutput}
	}
	return []error{services.ErrMalformedOutput, e.Err}
}

func truncate(s string) string {
	if len(s) <= diagnosticLimit {
		return s
	}
	return s[:diagnosticLimit] + "…"
}
