package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"grila/internal/config"
	"grila/internal/grading"
)

const (
	userAgent     = "grila/1.0"
	sendAttempts  = 3
	sendBaseDelay = 500 * time.Millisecond
)

// Service is the notification surface used by the daemon and CLI.
type Service interface {
	NotifyBatchCompleted(ctx context.Context, title string, summary grading.BatchSummary) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a noop one when
// notifications.ntfy_topic is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc actually delivers messages.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, title string, summary grading.BatchSummary) error {
	title = strings.TrimSpace(title)
	elapsed := summary.ProcessingTime.Round(time.Second)
	if elapsed <= 0 {
		elapsed = 0
	}

	data := payload{
		title: "grila - Batch Graded",
		message: fmt.Sprintf("%s: %d/%d sheets graded (%s) in %s",
			title, summary.Successful, summary.TotalTests, summary.SuccessRate, elapsed),
		tags: []string{"grila", "batch", "completed"},
	}
	switch {
	case summary.TotalTests > 0 && summary.Successful == 0:
		data.title = "grila - Batch Failed"
		data.tags = []string{"grila", "batch", "failed"}
		data.priority = "high"
	case summary.Failed > 0:
		data.title = "grila - Batch Graded (with errors)"
		data.message = fmt.Sprintf("%s\n%d sheets need attention", data.message, summary.Failed)
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "grila - Test",
		message:  "Notification system test",
		tags:     []string{"grila", "test"},
		priority: "low",
	})
}

// statusError is an ntfy response outside 2xx. Only 5xx is retried.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ntfy returned %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	var status *statusError
	if errors.As(err, &status) {
		return status.code >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	return retry.Do(
		func() error { return n.post(ctx, data) },
		retry.Context(ctx),
		retry.Attempts(sendAttempts),
		retry.Delay(sendBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
	)
}

func (n *ntfyService) post(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("build ntfy request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyBatchCompleted(context.Context, string, grading.BatchSummary) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
