// Package ingest is the upload boundary in front of the grading orchestrator.
//
// It checks that a request carries a reference key and at least one (and at
// most grading.max_batch_files) submission, accepts only images (declared type
// and sniffed content), enforces the per-file size ceiling while streaming,
// and stages every file under a fresh uuid name in the upload directory.
package ingest
