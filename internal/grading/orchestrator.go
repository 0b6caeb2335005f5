package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"grila/internal/config"
	"grila/internal/fileutil"
	"grila/internal/logging"
	"grila/internal/scorer"
	"grila/internal/services"
)

// ResultStore is the store surface the orchestrator needs.
type ResultStore interface {
	ResultWriter
	UpdateProcessingTime(ctx context.Context, id string, elapsed time.Duration) error
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithObserver registers lifecycle observers.
func WithObserver(observers ...Observer) Option {
	return func(o *Orchestrator) {
		o.observer = Observers(observers)
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator fans submissions out to jobs under a concurrency gate and
// fans the results back in.
type Orchestrator struct {
	job            *Job
	store          ResultStore
	maxConcurrency int
	maxFiles       int
	defaultTitle   string
	observer       Observer
	logger         *slog.Logger
	now            func() time.Time
}

// NewOrchestrator wires the orchestrator from the grading configuration.
func NewOrchestrator(cfg config.Grading, grader scorer.Grader, store ResultStore, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		job:            NewJob(grader, store, logger),
		store:          store,
		maxConcurrency: cfg.MaxConcurrency,
		maxFiles:       cfg.MaxBatchFiles,
		defaultTitle:   strings.TrimSpace(cfg.DefaultTitle),
		observer:       nopObserver{},
		logger:         logging.NewComponentLogger(logger, "grading"),
		now:            time.Now,
	}
	if o.maxConcurrency <= 0 {
		o.maxConcurrency = 1
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Grade grades every submission against the shared reference key. Individual
// submission failures are reported in the response; an error is returned only
// when the request itself is unusable. The orchestrator owns every file in the
// request from the moment Grade is called.
func (o *Orchestrator) Grade(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	if err := o.checkBatch(req); err != nil {
		o.discard(req.Reference, req.Submissions)
		return nil, err
	}

	batchID := uuid.NewString()
	ctx = services.WithBatchID(ctx, batchID)
	logger := logging.WithContext(ctx, o.logger)
	title := o.title(req.Title)
	submissions := indexed(req.Submissions)

	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_started"),
		logging.Int("submissions", len(submissions)),
		logging.Int("max_concurrency", o.maxConcurrency),
	)

	started := o.now()
	settled := o.runJobs(ctx, batchID, req.Reference, submissions, title)
	elapsed := o.now().Sub(started)

	resp := &BatchResponse{
		BatchID:   batchID,
		Title:     title,
		Timestamp: o.now(),
	}
	for _, result := range settled {
		switch result.Kind {
		case ResultSuccess:
			resp.Results = append(resp.Results, *result.Success)
		case ResultFailure:
			resp.Errors = append(resp.Errors, *result.Failure)
		}
	}
	resp.Summary = summarize(len(submissions), len(resp.Results), elapsed)
	o.backfill(ctx, logger, resp.Results, elapsed)

	logger.Info("batch completed",
		logging.String(logging.FieldEventType, "batch_completed"),
		logging.Int("successful", resp.Summary.Successful),
		logging.Int("failed", resp.Summary.Failed),
		logging.String("success_rate", resp.Summary.SuccessRate),
		logging.Duration("elapsed", elapsed),
	)
	o.observer.BatchFinished(resp)
	return resp, nil
}

// GradeOne grades a single submission. Unlike Grade, a job failure is
// returned as the error.
func (o *Orchestrator) GradeOne(ctx context.Context, req SingleRequest) (*SingleResponse, error) {
	if err := o.checkReference(req.Reference); err != nil {
		o.discard(req.Reference, []Submission{req.Submission})
		return nil, err
	}
	if strings.TrimSpace(req.Submission.Path) == "" {
		o.discard(req.Reference, nil)
		return nil, services.Wrap(services.ErrIngestion, "grading", "validate request", "submission image is required", nil)
	}

	logger := logging.WithContext(ctx, o.logger)
	title := o.title(req.Title)
	submissions := indexed([]Submission{req.Submission})

	started := o.now()
	settled := o.runJobs(ctx, "", req.Reference, submissions, title)
	elapsed := o.now().Sub(started)

	result := settled[0]
	if result.Kind == ResultFailure {
		return nil, result.Failure.Err
	}
	o.backfill(ctx, logger, []Graded{*result.Success}, elapsed)
	return &SingleResponse{
		ID:             result.Success.ID,
		Title:          title,
		FileName:       result.Success.FileName,
		Outcome:        result.Success.Outcome,
		Timestamp:      o.now(),
		ProcessingTime: elapsed,
	}, nil
}

// runJobs dispatches one job per submission under the concurrency gate, waits
// for all of them, and only then closes the shared reference file. Results
// come back in submission index order.
func (o *Orchestrator) runJobs(ctx context.Context, batchID string, ref ReferenceKey, submissions []Submission, title string) []JobResult {
	reference := fileutil.NewSharedFile(ref.Path, logging.WithContext(ctx, o.logger))
	settled := make([]JobResult, len(submissions))

	var group errgroup.Group
	group.SetLimit(o.maxConcurrency)
	for i, sub := range submissions {
		if err := reference.Acquire(); err != nil {
			settled[i] = failed(sub, services.Wrap(services.ErrIngestion, "grading", "acquire reference", "", err))
			continue
		}
		group.Go(func() error {
			defer reference.Done()
			o.observer.JobStarted(batchID, sub)
			jobStarted := o.now()
			settled[i] = o.job.Run(ctx, sub, reference.Path(), title)
			o.observer.JobFinished(batchID, settled[i], o.now().Sub(jobStarted))
			return nil
		})
	}
	_ = group.Wait()
	reference.Close()

	sort.SliceStable(settled, func(a, b int) bool { return settled[a].Index() < settled[b].Index() })
	return settled
}

// backfill writes the overall elapsed time onto every persisted result.
// Failures are logged and do not change the response.
func (o *Orchestrator) backfill(ctx context.Context, logger *slog.Logger, graded []Graded, elapsed time.Duration) {
	for _, item := range graded {
		if err := o.store.UpdateProcessingTime(ctx, item.ID, elapsed); err != nil {
			logging.WarnWithContext(logger, "processing time backfill failed", "backfill_failed",
				logging.String(logging.FieldResultID, item.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stored result keeps a zero processing time"),
				logging.String(logging.FieldErrorHint, "check result store health"),
			)
		}
	}
}

func (o *Orchestrator) checkBatch(req BatchRequest) error {
	if err := o.checkReference(req.Reference); err != nil {
		return err
	}
	if len(req.Submissions) == 0 {
		return services.Wrap(services.ErrIngestion, "grading", "validate request", "at least one submission image is required", nil)
	}
	if o.maxFiles > 0 && len(req.Submissions) > o.maxFiles {
		return services.Wrap(services.ErrIngestion, "grading", "validate request",
			fmt.Sprintf("%d submissions exceed the limit of %d", len(req.Submissions), o.maxFiles), nil)
	}
	for _, sub := range req.Submissions {
		if strings.TrimSpace(sub.Path) == "" {
			return services.Wrap(services.ErrIngestion, "grading", "validate request",
				fmt.Sprintf("submission %d has no staged file", sub.Index), nil)
		}
	}
	return nil
}

func (o *Orchestrator) checkReference(ref ReferenceKey) error {
	if strings.TrimSpace(ref.Path) == "" {
		return services.Wrap(services.ErrIngestion, "grading", "validate request", "reference key image is required", nil)
	}
	info, err := os.Stat(ref.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrIngestion, "grading", "validate request", "reference key image is missing", err)
		}
		return services.Wrap(services.ErrIngestion, "grading", "validate request", "reference key image unreadable", err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrIngestion, "grading", "validate request", "reference key path is a directory", nil)
	}
	return nil
}

// discard releases files of a rejected request.
func (o *Orchestrator) discard(ref ReferenceKey, submissions []Submission) {
	if ref.Path != "" {
		fileutil.NewOwnedFile(ref.Path, o.logger).Release()
	}
	for _, sub := range submissions {
		if sub.Path != "" {
			fileutil.NewOwnedFile(sub.Path, o.logger).Release()
		}
	}
}

func (o *Orchestrator) title(requested string) string {
	if title := strings.TrimSpace(requested); title != "" {
		return title
	}
	if o.defaultTitle != "" {
		return o.defaultTitle
	}
	return "Test Grilă"
}

// indexed copies submissions, filling missing 1-based indexes from position.
func indexed(submissions []Submission) []Submission {
	out := make([]Submission, len(submissions))
	for i, sub := range submissions {
		if sub.Index <= 0 {
			sub.Index = i + 1
		}
		out[i] = sub
	}
	return out
}

func summarize(total, successful int, elapsed time.Duration) BatchSummary {
	rate := 0.0
	if total > 0 {
		rate = float64(successful) * 100 / float64(total)
	}
	// Ties round away from zero: 1 of 16 reports 6.3%, not 6.2%.
	rate = math.Round(rate*10) / 10
	return BatchSummary{
		TotalTests:     total,
		Successful:     successful,
		Failed:         total - successful,
		SuccessRate:    fmt.Sprintf("%.1f%%", rate),
		ProcessingTime: elapsed,
	}
}
