// Package notifications pushes batch outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check whether notifications are enabled. Observer
// adapts a Service to grading.Observer and sends in the background so a slow
// ntfy server never delays a batch response.
package notifications
