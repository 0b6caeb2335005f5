// Package fileutil holds file helpers shared by ingestion and grading: plain
// copies for CLI staging and the two ownership scopes staged uploads live in.
//
// An OwnedFile belongs to a single grading job and is removed once by that
// job. A SharedFile (the reference key of a batch) is held by every job and
// removed only after the last holder is done and the orchestrator closes it.
package fileutil
