package grading

import "time"

// Observer receives grading lifecycle notifications. Implementations must be
// safe for concurrent use; JobStarted and JobFinished are called from job
// goroutines.
type Observer interface {
	JobStarted(batchID string, sub Submission)
	JobFinished(batchID string, result JobResult, elapsed time.Duration)
	BatchFinished(resp *BatchResponse)
}

// Observers fans notifications out to every member.
type Observers []Observer

func (o Observers) JobStarted(batchID string, sub Submission) {
	for _, observer := range o {
		if observer != nil {
			observer.JobStarted(batchID, sub)
		}
	}
}

func (o Observers) JobFinished(batchID string, result JobResult, elapsed time.Duration) {
	for _, observer := range o {
		if observer != nil {
			observer.JobFinished(batchID, result, elapsed)
		}
	}
}

func (o Observers) BatchFinished(resp *BatchResponse) {
	for _, observer := range o {
		if observer != nil {
			observer.BatchFinished(resp)
		}
	}
}

type nopObserver struct{}

func (nopObserver) JobStarted(string, Submission) {}

func (nopObserver) JobFinished(string, JobResult, time.Duration) {}

func (nopObserver) BatchFinished(*BatchResponse) {}
