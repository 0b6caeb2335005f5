package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"grila/internal/config"
	"grila/internal/fileutil"
	"grila/internal/logging"
	"grila/internal/services"
)

// Grader is the behaviour the grading job needs from the worker adapter.
type Grader interface {
	Grade(ctx context.Context, referencePath string, submission *fileutil.OwnedFile) (*Outcome, error)
}

// Option configures the adapter.
type Option func(*Adapter)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(a *Adapter) {
		if exec != nil {
			a.exec = exec
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logging.NewComponentLogger(logger, "scorer")
		}
	}
}

// WithTimeout overrides the per-invocation deadline. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(a *Adapter) {
		a.timeout = timeout
	}
}

// Adapter runs the external scoring worker once per submission.
type Adapter struct {
	command string
	args    []string
	timeout time.Duration
	exec    Executor
	schema  *jsonschema.Schema
	logger  *slog.Logger
}

// New constructs an adapter from the worker configuration.
func New(worker config.Worker, opts ...Option) (*Adapter, error) {
	command := strings.TrimSpace(worker.Command)
	if command == "" {
		return nil, services.Wrap(services.ErrConfiguration, "scorer", "init", "worker command required", nil)
	}
	adapter := &Adapter{
		command: command,
		args:    append([]string(nil), worker.Args...),
		timeout: time.Duration(worker.TimeoutSeconds) * time.Second,
		exec:    commandExecutor{},
		logger:  logging.NewComponentLogger(nil, "scorer"),
	}
	if worker.ValidateOutput {
		schema, err := compileOutcomeSchema()
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "scorer", "init", "load outcome schema", err)
		}
		adapter.schema = schema
	}
	for _, opt := range opts {
		opt(adapter)
	}
	return adapter, nil
}

// Command returns the configured worker binary.
func (a *Adapter) Command() string {
	return a.command
}

// Available reports whether the worker command resolves to an executable.
func (a *Adapter) Available() bool {
	_, err := exec.LookPath(a.command)
	return err == nil
}

// Grade invokes the worker with the reference and submission paths and parses
// its stdout. The submission file is released exactly once before Grade
// returns, whatever the outcome; the reference file is left to its owner.
func (a *Adapter) Grade(ctx context.Context, referencePath string, submission *fileutil.OwnedFile) (*Outcome, error) {
	defer submission.Release()

	logger := logging.WithContext(ctx, a.logger)
	runCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), a.args...), referencePath, submission.Path())
	logger.Debug("worker started",
		logging.String(logging.FieldEventType, "worker_started"),
		logging.String("command", a.command),
		logging.String("submission", submission.Path()),
	)
	started := time.Now()
	stdout, stderr, err := a.exec.Run(runCtx, a.command, args)
	elapsed := time.Since(started)

	if err != nil {
		classified := a.classifyRunError(ctx, runCtx, err, stderr)
		logger.Warn("worker failed",
			logging.String(logging.FieldEventType, "worker_failed"),
			logging.String(logging.FieldErrorKind, services.Kind(classified)),
			logging.Duration("elapsed", elapsed),
			logging.Error(classified),
		)
		return nil, classified
	}

	outcome, err := a.decode(stdout)
	if err != nil {
		logger.Warn("worker output rejected",
			logging.String(logging.FieldEventType, "worker_failed"),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
		)
		return nil, err
	}

	logger.Debug("worker finished",
		logging.String(logging.FieldEventType, "worker_finished"),
		logging.Duration("elapsed", elapsed),
		logging.String("score", outcome.Score()),
	)
	return outcome, nil
}

func (a *Adapter) classifyRunError(parent, runCtx context.Context, err error, stderr []byte) error {
	var startErr *StartError
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &startErr):
		return services.Wrap(services.ErrWorkerUnavailable, "scorer", "launch worker", a.command, err)
	case parent.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrWorkerTimeout, "scorer", "await worker",
			fmt.Sprintf("no result after %s", a.timeout), err)
	case parent.Err() != nil:
		return services.Wrap(services.ErrWorkerExecution, "scorer", "await worker", "cancelled", parent.Err())
	case errors.As(err, &exitErr):
		return &ExecutionError{ExitCode: exitErr.ExitCode(), Stderr: string(stderr)}
	default:
		return &ExecutionError{ExitCode: -1, Stderr: strings.TrimSpace(string(stderr) + "\n" + err.Error())}
	}
}

// workerError is the document the worker prints instead of an outcome when it
// cannot process the images.
type workerError struct {
	Error string `json:"error"`
}

func (a *Adapter) decode(stdout []byte) (*Outcome, error) {
	raw := bytes.TrimSpace(stdout)
	if len(raw) == 0 {
		return nil, &OutputError{Raw: stdout, Err: errors.New("empty output")}
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &OutputError{Raw: raw, Err: err}
	}
	if fields, ok := doc.(map[string]any); ok {
		if _, graded := fields["correct_answers"]; !graded {
			var reported workerError
			if json.Unmarshal(raw, &reported) == nil && strings.TrimSpace(reported.Error) != "" {
				return nil, &ExecutionError{ExitCode: 0, Stderr: reported.Error}
			}
		}
	}
	if a.schema != nil {
		if err := a.schema.Validate(doc); err != nil {
			return nil, &OutputError{Raw: raw, Err: err}
		}
	}

	var outcome Outcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return nil, &OutputError{Raw: raw, Err: err}
	}
	if err := outcome.Check(); err != nil {
		return nil, &OutputError{Raw: raw, Err: err}
	}
	return &outcome, nil
}
