package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"grila/internal/grading"
)

func TestCollectorTracksJobs(t *testing.T) {
	c := New()
	sub := grading.Submission{Index: 1, FileName: "elev1.png"}

	c.JobStarted("b1", sub)
	c.JobStarted("b1", sub)
	if got := testutil.ToFloat64(c.activeJobs); got != 2 {
		t.Fatalf("expected 2 active jobs, got %v", got)
	}

	c.JobFinished("b1", grading.JobResult{Kind: grading.ResultSuccess, Success: &grading.Graded{Index: 1}}, time.Second)
	c.JobFinished("b1", grading.JobResult{
		Kind:    grading.ResultFailure,
		Failure: &grading.JobFailure{Index: 2, Kind: "WorkerTimeout"},
	}, 2*time.Second)

	if got := testutil.ToFloat64(c.activeJobs); got != 0 {
		t.Fatalf("expected no active jobs, got %v", got)
	}
	if got := testutil.ToFloat64(c.jobsTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(c.jobsTotal.WithLabelValues("WorkerTimeout")); got != 1 {
		t.Fatalf("expected 1 timeout, got %v", got)
	}
}

func TestCollectorTracksBatches(t *testing.T) {
	c := New()
	c.BatchFinished(nil)
	c.BatchFinished(&grading.BatchResponse{Summary: grading.BatchSummary{TotalTests: 3, ProcessingTime: 4 * time.Second}})
	if got := testutil.ToFloat64(c.batchesTotal); got != 1 {
		t.Fatalf("expected 1 batch, got %v", got)
	}
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	c := New()
	router := mux.NewRouter()
	router.Use(c.Middleware)
	router.HandleFunc("/grading/results/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)
	router.Handle("/metrics", c.Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grading/results/"+id, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("unexpected status %d", rec.Code)
		}
	}
	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues(http.MethodGet, "/grading/results/{id}", "404")); got != 2 {
		t.Fatalf("expected 2 requests on the template, got %v", got)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "grila_http_requests_total") {
		t.Fatalf("expected exposition to include request counter")
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("expected Go collector metrics")
	}
}
