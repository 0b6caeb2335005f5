package grading

import (
	"time"

	"grila/internal/scorer"
	"grila/internal/services"
)

// Submission is one answer sheet to grade. Index is 1-based and fixed at
// ingestion.
type Submission struct {
	Index    int
	FileName string
	Path     string
}

// ReferenceKey is the answer key shared by every submission of a request.
type ReferenceKey struct {
	FileName string
	Path     string
}

// ResultKind tags a JobResult.
type ResultKind string

const (
	ResultSuccess ResultKind = "success"
	ResultFailure ResultKind = "failure"
)

// Graded is a successfully persisted submission.
type Graded struct {
	Index    int             `json:"index"`
	FileName string          `json:"fileName"`
	ID       string          `json:"savedId"`
	Outcome  *scorer.Outcome `json:"outcome"`
}

// JobFailure describes a submission that produced no outcome. It is reported,
// never persisted.
type JobFailure struct {
	Index    int    `json:"index"`
	FileName string `json:"fileName"`
	Error    string `json:"error"`
	Kind     string `json:"kind"`
	Err      error  `json:"-"`
}

// JobResult is exactly one of Success or Failure, as selected by Kind.
type JobResult struct {
	Kind    ResultKind  `json:"kind"`
	Success *Graded     `json:"success,omitempty"`
	Failure *JobFailure `json:"failure,omitempty"`
}

// Index returns the submission index of either variant.
func (r JobResult) Index() int {
	switch {
	case r.Success != nil:
		return r.Success.Index
	case r.Failure != nil:
		return r.Failure.Index
	default:
		return 0
	}
}

func succeeded(sub Submission, id string, outcome *scorer.Outcome) JobResult {
	return JobResult{
		Kind:    ResultSuccess,
		Success: &Graded{Index: sub.Index, FileName: sub.FileName, ID: id, Outcome: outcome},
	}
}

func failed(sub Submission, err error) JobResult {
	return JobResult{
		Kind: ResultFailure,
		Failure: &JobFailure{
			Index:    sub.Index,
			FileName: sub.FileName,
			Error:    err.Error(),
			Kind:     services.Kind(err),
			Err:      err,
		},
	}
}

// BatchRequest grades Submissions against Reference.
type BatchRequest struct {
	Reference   ReferenceKey
	Submissions []Submission
	Title       string
}

// BatchSummary is derived from the partition sizes.
type BatchSummary struct {
	TotalTests     int
	Successful     int
	Failed         int
	SuccessRate    string
	ProcessingTime time.Duration
}

// BatchResponse is the partitioned outcome of a batch, both lists ordered by
// submission index.
type BatchResponse struct {
	BatchID   string
	Title     string
	Timestamp time.Time
	Summary   BatchSummary
	Results   []Graded
	Errors    []JobFailure
}

// SingleRequest grades one submission.
type SingleRequest struct {
	Reference  ReferenceKey
	Submission Submission
	Title      string
}

// SingleResponse is a persisted single-submission outcome.
type SingleResponse struct {
	ID             string
	Title          string
	FileName       string
	Outcome        *scorer.Outcome
	Timestamp      time.Time
	ProcessingTime time.Duration
}
