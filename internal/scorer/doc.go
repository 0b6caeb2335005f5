// Package scorer wraps the external scoring worker.
//
// One Grade call launches the worker with the reference key and the submission
// paths, enforces the per-job deadline by killing the worker's process group,
// and turns stdout into an Outcome. Launch failures, non-zero exits, deadline
// expiry and unusable output map onto the services error markers so callers
// can report them per submission. The submission file is released by Grade;
// the reference file is not.
package scorer
