package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grila/internal/grading"
)

const namespace = "grila"

// Collector owns a private registry with grading and HTTP metrics. It
// implements grading.Observer.
type Collector struct {
	registry *prometheus.Registry

	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	activeJobs      prometheus.Gauge
	batchesTotal    prometheus.Counter
	batchSize       prometheus.Histogram
	batchDuration   prometheus.Histogram
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers every grila metric plus the Go and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Grading jobs settled, by outcome kind",
			},
			[]string{"kind"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Wall time of a single grading job",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"result"},
		),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Grading jobs currently running the scoring worker",
		}),
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches graded",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_submissions",
			Help:      "Submissions per batch",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 50},
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a batch",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served, by route and status",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	c.registry.MustRegister(
		c.jobsTotal,
		c.jobDuration,
		c.activeJobs,
		c.batchesTotal,
		c.batchSize,
		c.batchDuration,
		c.requestsTotal,
		c.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the private registry for additional collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// JobStarted implements grading.Observer.
func (c *Collector) JobStarted(string, grading.Submission) {
	c.activeJobs.Inc()
}

// JobFinished implements grading.Observer.
func (c *Collector) JobFinished(_ string, result grading.JobResult, elapsed time.Duration) {
	c.activeJobs.Dec()
	kind := string(grading.ResultSuccess)
	if result.Failure != nil {
		kind = result.Failure.Kind
	}
	c.jobsTotal.WithLabelValues(kind).Inc()
	c.jobDuration.WithLabelValues(string(result.Kind)).Observe(elapsed.Seconds())
}

// BatchFinished implements grading.Observer.
func (c *Collector) BatchFinished(resp *grading.BatchResponse) {
	if resp == nil {
		return
	}
	c.batchesTotal.Inc()
	c.batchSize.Observe(float64(resp.Summary.TotalTests))
	c.batchDuration.Observe(resp.Summary.ProcessingTime.Seconds())
}

// Middleware records request counts and latency keyed by the matched route
// template so path parameters do not explode label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := routeTemplate(r)
		c.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		c.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(started).Seconds())
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
