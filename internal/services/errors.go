package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrIngestion         = errors.New("ingestion error")
	ErrWorkerUnavailable = errors.New("scoring worker unavailable")
	ErrWorkerExecution   = errors.New("scoring worker failed")
	ErrMalformedOutput   = errors.New("malformed worker output")
	ErrWorkerTimeout     = errors.New("scoring worker timed out")
	ErrPersistence       = errors.New("result persistence failed")
	ErrNormalization     = errors.New("output normalization failed")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above; errors wrapped without a marker classify as
// InternalError.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		if err != nil {
			return fmt.Errorf("%s: %w", detail, err)
		}
		return errors.New(detail)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the taxonomy name reported to API clients and stored on job failures.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIngestion), errors.Is(err, ErrValidation):
		return "IngestionError"
	case errors.Is(err, ErrWorkerUnavailable):
		return "WorkerUnavailable"
	case errors.Is(err, ErrWorkerTimeout):
		return "WorkerTimeout"
	case errors.Is(err, ErrWorkerExecution):
		return "WorkerExecutionFailed"
	case errors.Is(err, ErrMalformedOutput):
		return "MalformedWorkerOutput"
	case errors.Is(err, ErrPersistence):
		return "ResultPersistenceFailed"
	case errors.Is(err, ErrNormalization):
		return "OutputNormalizationFailed"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	default:
		return "InternalError"
	}
}

// HTTPStatus maps an error onto the response code used by the grading API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrIngestion), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "grading failure"
	}
	return strings.Join(parts, ": ")
}
