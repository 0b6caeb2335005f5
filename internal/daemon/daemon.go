package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"grila/internal/api"
	"grila/internal/config"
	"grila/internal/deps"
	"grila/internal/grading"
	"grila/internal/ingest"
	"grila/internal/logging"
	"grila/internal/metrics"
	"grila/internal/notifications"
	"grila/internal/results"
	"grila/internal/scorer"
)

const (
	pruneInterval = time.Hour
	pruneMaxAge   = 24 * time.Hour
)

// Daemon owns the grading pipeline and its HTTP surface and enforces
// single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        results.Store
	grader       scorer.Grader
	orchestrator *grading.Orchestrator
	stager       *ingest.Stager
	resultsSvc   *api.ResultsService
	hub          *eventHub
	metrics      *metrics.Collector
	notifier     *notifications.Observer
	server       *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	StoreDriver  string
	LockFilePath string
	ActiveJobs   int64
	Dependencies []deps.Status
	Host         *HostLoad
}

// Option customises a Daemon.
type Option func(*Daemon)

// WithGrader replaces the scoring worker adapter built from configuration.
func WithGrader(grader scorer.Grader) Option {
	return func(d *Daemon) {
		if grader != nil {
			d.grader = grader
		}
	}
}

// New constructs a daemon around an opened result store.
func New(cfg *config.Config, store results.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and result store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		stager:   ingest.NewStager(cfg, logger),
		hub:      newEventHub(logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.grader == nil {
		adapter, err := scorer.New(cfg.Worker, scorer.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create scoring adapter: %w", err)
		}
		d.grader = adapter
	}

	observers := grading.Observers{d.hub}
	if cfg.Metrics.Enabled {
		d.metrics = metrics.New()
		observers = append(observers, d.metrics)
	}
	if svc := notifications.NewService(cfg); notifications.Enabled(svc) {
		d.notifier = notifications.NewObserver(svc, logger)
		observers = append(observers, d.notifier)
	}
	d.orchestrator = grading.NewOrchestrator(cfg.Grading, d.grader, store, logger, grading.WithObserver(observers...))
	d.resultsSvc = api.NewResultsService(store, cfg.Grading)
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and starts the API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another grila daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.server.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.wg.Add(1)
	go d.pruneUploads(d.ctx)

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("grila daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.address()),
	)
	return nil
}

// Stop stops the API server, closes live connections and releases the lock.
// In-flight jobs are cancelled.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return
	}
	d.running.Store(false)
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.server.stop()
	d.hub.closeAll()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String("lock", d.lockPath),
		)
	}
	d.logger.Info("grila daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon after pending notifications
// are delivered.
func (d *Daemon) Close() error {
	d.Stop()
	if d.notifier != nil {
		d.notifier.Wait()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the bound API address once started.
func (d *Daemon) Addr() string {
	return d.server.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StoreDriver:  storeDriver(d.cfg),
		LockFilePath: d.lockPath,
		ActiveJobs:   d.hub.activeJobs(),
		Dependencies: deps.CheckWorker(d.cfg.Worker),
	}
	if status.Running {
		status.StartedAt = startedAt
	}
	if host, err := sampleHost(ctx); err == nil {
		status.Host = host
	} else {
		d.logger.Debug("host sample failed", logging.Error(err))
	}
	return status
}

// jobContext detaches grading from the HTTP request so a disconnecting client
// does not kill running workers. Jobs still stop when the daemon stops.
func (d *Daemon) jobContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.mu.Lock()
	base := d.ctx
	d.mu.Unlock()
	if base == nil {
		return detached, cancel
	}
	stop := context.AfterFunc(base, cancel)
	return detached, func() {
		stop()
		cancel()
	}
}

func (d *Daemon) pruneUploads(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		if _, err := d.stager.PruneStale(pruneMaxAge); err != nil {
			logging.WarnWithContext(d.logger, "upload prune failed", "upload_prune_failed",
				logging.Error(err),
				logging.String("dir", d.stager.Dir()),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func storeDriver(cfg *config.Config) string {
	driver := strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if driver == "" {
		return config.StoreDriverSQLite
	}
	return driver
}

func listen(bind string) (net.Listener, error) {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, fmt.Errorf("api listen: %w", err)
	}
	return listener, nil
}
