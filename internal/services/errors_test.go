package services_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"grila/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrWorkerExecution, "scoring", "run worker", "exit status 2", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrWorkerExecution) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"scoring", "run worker", "exit status 2"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindAndStatusMapping(t *testing.T) {
	cases := []struct {
		marker error
		kind   string
		status int
	}{
		{services.ErrIngestion, "IngestionError", http.StatusBadRequest},
		{services.ErrValidation, "IngestionError", http.StatusBadRequest},
		{services.ErrWorkerUnavailable, "WorkerUnavailable", http.StatusInternalServerError},
		{services.ErrWorkerExecution, "WorkerExecutionFailed", http.StatusInternalServerError},
		{services.ErrMalformedOutput, "MalformedWorkerOutput", http.StatusInternalServerError},
		{services.ErrWorkerTimeout, "WorkerTimeout", http.StatusInternalServerError},
		{services.ErrPersistence, "ResultPersistenceFailed", http.StatusInternalServerError},
		{services.ErrNormalization, "OutputNormalizationFailed", http.StatusInternalServerError},
		{services.ErrNotFound, "NotFound", http.StatusNotFound},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "stage", "op", "msg", nil)
		if got := services.Kind(err); got != tc.kind {
			t.Fatalf("Kind(%v) = %q, want %q", tc.marker, got, tc.kind)
		}
		if got := services.HTTPStatus(err); got != tc.status {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.marker, got, tc.status)
		}
	}

	if got := services.Kind(errors.New("plain")); got != "InternalError" {
		t.Fatalf("expected InternalError for unclassified error, got %q", got)
	}
	if got := services.Kind(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}
