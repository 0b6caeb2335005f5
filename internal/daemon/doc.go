// Package daemon coordinates the long-running grila process and its HTTP
// surface.
//
// It wires configuration, the result store, the scoring worker adapter, the
// upload stager and the batch orchestrator into a single lifecycle with
// flock-based locking to prevent multiple instances. The API server routes
// /grading requests through gorilla/mux, broadcasts job and batch events to
// websocket clients, pushes batch summaries to ntfy when a topic is set, and
// serves Prometheus metrics when enabled.
//
// Keep orchestration logic here: grading semantics live in the grading
// package while the daemon focuses on startup, shutdown and transport.
package daemon
