package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"grila/internal/grading"
	"grila/internal/logging"
)

const deliveryTimeout = 30 * time.Second

// Observer forwards finished batches to a Service in the background.
type Observer struct {
	svc    Service
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewObserver wraps svc. Call Wait before exit to flush pending sends.
func NewObserver(svc Service, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Observer{svc: svc, logger: logging.NewComponentLogger(logger, "notifications")}
}

func (o *Observer) JobStarted(string, grading.Submission) {}

func (o *Observer) JobFinished(string, grading.JobResult, time.Duration) {}

func (o *Observer) BatchFinished(resp *grading.BatchResponse) {
	if resp == nil || o.svc == nil {
		return
	}
	title := resp.Title
	summary := resp.Summary
	batchID := resp.BatchID
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		if err := o.svc.NotifyBatchCompleted(ctx, title, summary); err != nil {
			logging.WarnWithContext(o.logger, "batch notification failed", "notification_failed",
				logging.String(logging.FieldBatchID, batchID),
				logging.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (o *Observer) Wait() {
	o.wg.Wait()
}
