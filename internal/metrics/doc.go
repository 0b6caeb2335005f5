// Package metrics exposes grading throughput and HTTP latency in the
// Prometheus format. A Collector is registered as a grading.Observer and as
// router middleware; its private registry is served on /metrics.
package metrics
