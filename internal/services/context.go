package services

import "context"

type contextKey string

const (
	batchIDKey         contextKey = "batch_id"
	submissionIndexKey contextKey = "submission_index"
	stageKey           contextKey = "stage"
	requestIDKey       contextKey = "request_id"
)

// WithBatchID annotates context with the batch identifier shared by every job in a request.
func WithBatchID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext extracts the batch identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(batchIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSubmissionIndex annotates context with the 1-based submission position.
func WithSubmissionIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, submissionIndexKey, index)
}

// SubmissionIndexFromContext extracts the submission index if present.
func SubmissionIndexFromContext(ctx context.Context) (int, bool) {
	switch val := ctx.Value(submissionIndexKey).(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the grading stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
