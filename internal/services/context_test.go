package services_test

import (
	"context"
	"testing"

	"grila/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBatchID(ctx, "batch-1")
	ctx = services.WithSubmissionIndex(ctx, 3)
	ctx = services.WithStage(ctx, "scoring")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.BatchIDFromContext(ctx); !ok || id != "batch-1" {
		t.Fatalf("unexpected batch id: %v %v", id, ok)
	}
	if idx, ok := services.SubmissionIndexFromContext(ctx); !ok || idx != 3 {
		t.Fatalf("unexpected submission index: %v %v", idx, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "scoring" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithBatchID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.BatchIDFromContext(ctx); ok {
		t.Fatal("expected no batch id")
	}
	if _, ok := services.SubmissionIndexFromContext(ctx); ok {
		t.Fatal("expected no submission index")
	}
}
