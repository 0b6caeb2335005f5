package fileutil

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"grila/internal/logging"
)

// ErrSharedFileClosed is returned by SharedFile.Acquire once Close has started.
var ErrSharedFileClosed = errors.New("shared file already closed")

// OwnedFile is a staged file with exactly one owner. Release removes it at
// most once; later calls are no-ops.
type OwnedFile struct {
	path     string
	logger   *slog.Logger
	once     sync.Once
	released atomic.Bool
}

// NewOwnedFile takes ownership of path.
func NewOwnedFile(path string, logger *slog.Logger) *OwnedFile {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &OwnedFile{path: path, logger: logger}
}

// Path returns the file location.
func (f *OwnedFile) Path() string {
	if f == nil {
		return ""
	}
	return f.path
}

// Release removes the file. Removal errors are logged and never returned.
func (f *OwnedFile) Release() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		f.released.Store(true)
		removeLogged(f.logger, f.path)
	})
}

// Released reports whether Release has run.
func (f *OwnedFile) Released() bool {
	return f != nil && f.released.Load()
}

// SharedFile is a file read by several holders and removed exactly once,
// after the last holder is done and Close has been called.
type SharedFile struct {
	path    string
	logger  *slog.Logger
	mu      sync.Mutex
	closed  bool
	holders sync.WaitGroup
	once    sync.Once
	removed atomic.Bool
}

// NewSharedFile wraps path as a join-then-release resource.
func NewSharedFile(path string, logger *slog.Logger) *SharedFile {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SharedFile{path: path, logger: logger}
}

// Path returns the file location.
func (s *SharedFile) Path() string {
	return s.path
}

// Acquire registers a holder. Every successful Acquire must be paired with Done.
func (s *SharedFile) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSharedFileClosed
	}
	s.holders.Add(1)
	return nil
}

// Done releases one holder.
func (s *SharedFile) Done() {
	s.holders.Done()
}

// Close blocks until every holder is done, then removes the file. Only the
// first call removes; concurrent callers wait for the same barrier.
func (s *SharedFile) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.holders.Wait()
	s.once.Do(func() {
		s.removed.Store(true)
		removeLogged(s.logger, s.path)
	})
}

// Removed reports whether Close has removed the file.
func (s *SharedFile) Removed() bool {
	return s.removed.Load()
}

func removeLogged(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "staged file cleanup failed", "file_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "orphaned upload remains on disk until pruned"),
			logging.String(logging.FieldErrorHint, "check permissions on the upload directory"),
		)
	}
}
