package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	_ "modernc.org/sqlite"

	"grila/internal/config"
)

// SQLiteStore persists results in a local SQLite database.
type SQLiteStore struct {
	db           *sql.DB
	path         string
	busyAttempts uint
}

const (
	sqliteBusyCode          = 5
	sqliteBusyTimeoutMillis = 5000
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *SQLiteStore) retryOnBusy(ctx context.Context, op func() error) error {
	return retry.Do(
		op,
		retry.Context(ctx),
		retry.Attempts(s.busyAttempts),
		retry.Delay(busyRetryInitialBackoff),
		retry.MaxDelay(busyRetryMaxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isSQLiteBusy),
		retry.LastErrorOnly(true),
	)
}

func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := s.retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// sqliteDSN builds a modernc DSN that sets WAL and a busy timeout on each
// connection the pool opens.
func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(" + strconv.Itoa(sqliteBusyTimeoutMillis) + ")&_pragma=journal_mode(WAL)"
}

// OpenSQLite initializes or connects to the results database at
// store.sqlite_path.
func OpenSQLite(cfg *config.Config) (*SQLiteStore, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.Store.SQLitePath
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas in the DSN apply to every pooled connection. A single
	// connection serialises concurrent job writes inside this process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	attempts := cfg.Store.BusyRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	store := &SQLiteStore{db: db, path: dbPath, busyAttempts: uint(attempts)}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
