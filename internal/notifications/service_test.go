package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"grila/internal/config"
	"grila/internal/grading"
	"grila/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, statuses ...int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var captured []capturedRequest
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		captured = append(captured, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		n := int(calls.Add(1)) - 1
		if n < len(statuses) {
			w.WriteHeader(statuses[n])
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), captured...)
	}
}

func serviceFor(url string) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if notifications.Enabled(svc) {
		t.Fatal("expected noop service without a topic")
	}
	if err := svc.NotifyBatchCompleted(context.Background(), "Bio", grading.BatchSummary{}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNotifyBatchCompletedFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		summary        grading.BatchSummary
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "all graded",
			summary:       grading.BatchSummary{TotalTests: 3, Successful: 3, SuccessRate: "100.0%", ProcessingTime: 4 * time.Second},
			expectTitle:   "grila - Batch Graded",
			expectMessage: "Bio: 3/3 sheets graded (100.0%) in 4s",
			expectTags:    "grila,batch,completed",
		},
		{
			name:          "partial failure",
			summary:       grading.BatchSummary{TotalTests: 3, Successful: 2, Failed: 1, SuccessRate: "66.7%"},
			expectTitle:   "grila - Batch Graded (with errors)",
			expectMessage: "1 sheets need attention",
			expectTags:    "grila,batch,completed",
		},
		{
			name:           "nothing graded",
			summary:        grading.BatchSummary{TotalTests: 2, Failed: 2, SuccessRate: "0.0%"},
			expectTitle:    "grila - Batch Failed",
			expectMessage:  "0/2 sheets graded",
			expectTags:     "grila,batch,failed",
			expectPriority: "high",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, captured := newNtfyServer(t)
			if err := serviceFor(srv.URL).NotifyBatchCompleted(context.Background(), "Bio", tc.summary); err != nil {
				t.Fatalf("NotifyBatchCompleted: %v", err)
			}
			got := captured()
			if len(got) != 1 {
				t.Fatalf("expected 1 request, got %d", len(got))
			}
			req := got[0]
			if req.title != tc.expectTitle {
				t.Fatalf("title = %q, want %q", req.title, tc.expectTitle)
			}
			if !strings.Contains(req.body, tc.expectMessage) {
				t.Fatalf("body %q missing %q", req.body, tc.expectMessage)
			}
			if req.tags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", req.tags, tc.expectTags)
			}
			if req.priority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", req.priority, tc.expectPriority)
			}
		})
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	srv, captured := newNtfyServer(t, http.StatusBadGateway)
	if err := serviceFor(srv.URL).TestNotification(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := len(captured()); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	srv, captured := newNtfyServer(t, http.StatusForbidden)
	err := serviceFor(srv.URL).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
	if got := len(captured()); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestObserverSendsFinishedBatches(t *testing.T) {
	srv, captured := newNtfyServer(t)
	observer := notifications.NewObserver(serviceFor(srv.URL), nil)

	observer.JobStarted("b1", grading.Submission{Index: 1})
	observer.BatchFinished(&grading.BatchResponse{
		BatchID: "b1",
		Title:   "Chimie",
		Summary: grading.BatchSummary{TotalTests: 1, Successful: 1, SuccessRate: "100.0%"},
	})
	observer.BatchFinished(nil)
	observer.Wait()

	got := captured()
	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if !strings.HasPrefix(got[0].body, "Chimie:") {
		t.Fatalf("unexpected body %q", got[0].body)
	}
}
