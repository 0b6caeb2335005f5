package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"grila/internal/config"
	"grila/internal/daemon"
	"grila/internal/deps"
	"grila/internal/logging"
	"grila/internal/results"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Diagnostic tees a debug-level JSON log into <log_dir>/debug.
	Diagnostic bool
}

// Run starts the grila daemon and blocks until cmdCtx ends or the process
// receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("grila-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update grila.log link: %v\n", err)
	}

	if opts.Diagnostic {
		logger = attachDiagnosticLog(logger, cfg, runID)
	}

	logDependencySnapshot(logger, cfg)
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := results.Open(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("open result store", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind and that no other grilad holds the lock"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("grila daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func attachDiagnosticLog(logger *slog.Logger, cfg *config.Config, runID string) *slog.Logger {
	sessionID := uuid.NewString()
	debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
	if err := os.MkdirAll(debugDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to create debug log directory: %v\n", err)
		return logger
	}
	debugLogPath := filepath.Join(debugDir, fmt.Sprintf("grila-%s.log", runID))
	debugLogger, err := logging.New(logging.Options{
		Level:            "debug",
		Format:           "json",
		OutputPaths:      []string{debugLogPath},
		ErrorOutputPaths: []string{debugLogPath},
		Development:      true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", err)
		return logger
	}
	logger = logging.TeeLogger(logger, debugLogger.Handler()).With(logging.String("session_id", sessionID))
	logger.Info("diagnostic mode enabled",
		logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
		logging.String("debug_log_path", debugLogPath),
	)
	return logger
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "grila.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("store_driver", cfg.Store.Driver),
		logging.Int("max_concurrency", cfg.Grading.MaxConcurrency),
		logging.Duration("worker_timeout", cfg.WorkerTimeout()),
	}
	statuses := deps.CheckWorker(cfg.Worker)
	for i, status := range statuses {
		prefix := "worker"
		if i > 0 {
			prefix = "worker_script"
		}
		attrs = append(attrs,
			logging.Bool(prefix+"_available", status.Available),
			logging.String(prefix, status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	if !deps.AllRequiredAvailable(statuses) {
		logging.WarnWithContext(logger, "scoring worker unavailable", "worker_unavailable",
			logging.String("command", cfg.Worker.Command),
			logging.String(logging.FieldErrorHint, "install the worker or set worker.command"),
			logging.String(logging.FieldImpact, "every grading job will fail with WorkerUnavailable"),
		)
	}
}
