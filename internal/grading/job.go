package grading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"grila/internal/fileutil"
	"grila/internal/logging"
	"grila/internal/results"
	"grila/internal/scorer"
	"grila/internal/services"
)

// ResultWriter is the store surface a job needs.
type ResultWriter interface {
	Put(ctx context.Context, rec *results.Record) (string, error)
}

// Job grades one submission: worker invocation, normalization, persistence.
// Run never panics past its boundary and never returns an error; every
// failure becomes a JobFailure.
type Job struct {
	grader scorer.Grader
	store  ResultWriter
	logger *slog.Logger
}

// NewJob constructs a job runner.
func NewJob(grader scorer.Grader, store ResultWriter, logger *slog.Logger) *Job {
	return &Job{
		grader: grader,
		store:  store,
		logger: logging.NewComponentLogger(logger, "grading"),
	}
}

// Run grades sub against the reference at referencePath and stores the
// outcome under title with a zero processing time. The submission file is
// owned by the job and removed before Run returns.
func (j *Job) Run(ctx context.Context, sub Submission, referencePath, title string) (result JobResult) {
	ctx = services.WithSubmissionIndex(ctx, sub.Index)
	logger := logging.WithContext(ctx, j.logger)
	file := fileutil.NewOwnedFile(sub.Path, logger)
	defer file.Release()

	defer func() {
		if r := recover(); r != nil {
			err := services.Wrap(services.ErrNormalization, "grading", "run job", fmt.Sprintf("panic: %v", r), nil)
			logging.ErrorWithContext(logger, "job panicked", "job_failed", logging.Error(err))
			result = failed(sub, err)
		}
	}()

	outcome, err := j.grader.Grade(services.WithStage(ctx, "scoring"), referencePath, file)
	if err != nil {
		return j.fail(logger, sub, err)
	}

	outcome, err = normalize(outcome)
	if err != nil {
		return j.fail(logger, sub, err)
	}

	rec := results.NewRecord(title, outcome)
	id, err := j.store.Put(services.WithStage(ctx, "persisting"), rec)
	if err != nil {
		return j.fail(logger, sub, services.Wrap(services.ErrPersistence, "grading", "persist result", "", err))
	}

	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.String(logging.FieldResultID, id),
		logging.String("file", sub.FileName),
		logging.String("score", outcome.Score()),
	)
	return succeeded(sub, id, outcome)
}

func (j *Job) fail(logger *slog.Logger, sub Submission, err error) JobResult {
	logger.Warn("job failed",
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String("file", sub.FileName),
		logging.Error(err),
	)
	return failed(sub, err)
}

// normalize fills the default student identity and re-checks the outcome
// invariants.
func normalize(outcome *scorer.Outcome) (*scorer.Outcome, error) {
	if outcome == nil {
		return nil, services.Wrap(services.ErrNormalization, "grading", "normalize", "worker returned no outcome", nil)
	}
	normalized := *outcome
	identity := outcome.Identity()
	identity.Name = strings.TrimSpace(identity.Name)
	normalized.StudentName = &identity
	if err := normalized.Check(); err != nil {
		return nil, services.Wrap(services.ErrNormalization, "grading", "normalize", "", err)
	}
	return &normalized, nil
}
