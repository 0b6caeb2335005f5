package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"grila/internal/config"
	"grila/internal/fileutil"
	"grila/internal/grading"
	"grila/internal/logging"
	"grila/internal/services"
)

const sniffLength = 512

var (
	tiffLittleEndian = []byte{'I', 'I', 0x2a, 0x00}
	tiffBigEndian    = []byte{'M', 'M', 0x00, 0x2a}
	heifBrands       = map[string]bool{"heic": true, "heix": true, "hevc": true, "heif": true, "mif1": true, "msf1": true}
)

// Stager validates uploads and writes them under the upload directory with
// collision-free names.
type Stager struct {
	dir      string
	maxBytes int64
	maxFiles int
	logger   *slog.Logger
}

// NewStager builds a stager from the configured upload limits.
func NewStager(cfg *config.Config, logger *slog.Logger) *Stager {
	return &Stager{
		dir:      cfg.Paths.UploadDir,
		maxBytes: cfg.Grading.MaxUploadBytes,
		maxFiles: cfg.Grading.MaxBatchFiles,
		logger:   logging.NewComponentLogger(logger, "ingest"),
	}
}

// Dir returns the upload directory.
func (s *Stager) Dir() string {
	return s.dir
}

// MaxRequestBytes bounds a whole multipart request: every file at the size
// ceiling plus form overhead.
func (s *Stager) MaxRequestBytes(files int) int64 {
	return int64(files)*s.maxBytes + 1<<20
}

// Staged holds the files of one request until they are handed to the
// orchestrator.
type Staged struct {
	Reference   grading.ReferenceKey
	Submissions []grading.Submission
	logger      *slog.Logger
}

// Discard removes every staged file. Used when a request fails before
// dispatch.
func (st *Staged) Discard() {
	if st == nil {
		return
	}
	if st.Reference.Path != "" {
		fileutil.NewOwnedFile(st.Reference.Path, st.logger).Release()
	}
	for _, sub := range st.Submissions {
		fileutil.NewOwnedFile(sub.Path, st.logger).Release()
	}
}

// StageUploads validates and stages one reference and one or more
// submissions from a multipart form. Nothing stays on disk when it fails.
func (s *Stager) StageUploads(reference *multipart.FileHeader, submissions []*multipart.FileHeader) (*Staged, error) {
	if reference == nil || len(submissions) == 0 {
		return nil, services.Wrap(services.ErrIngestion, "ingest", "validate upload", "Both barem and elev images are required", nil)
	}
	if s.maxFiles > 0 && len(submissions) > s.maxFiles {
		return nil, services.Wrap(services.ErrIngestion, "ingest", "validate upload",
			fmt.Sprintf("at most %d elev images per batch, got %d", s.maxFiles, len(submissions)), nil)
	}

	staged := &Staged{logger: s.logger}
	refPath, err := s.stageHeader(reference)
	if err != nil {
		return nil, err
	}
	staged.Reference = grading.ReferenceKey{FileName: reference.Filename, Path: refPath}

	for i, fh := range submissions {
		path, err := s.stageHeader(fh)
		if err != nil {
			staged.Discard()
			return nil, err
		}
		staged.Submissions = append(staged.Submissions, grading.Submission{
			Index:    i + 1,
			FileName: fh.Filename,
			Path:     path,
		})
	}
	return staged, nil
}

// StageLocal validates local image files and copies them into the upload
// directory so grading never deletes the caller's originals.
func (s *Stager) StageLocal(reference string, submissions []string) (*Staged, error) {
	if strings.TrimSpace(reference) == "" || len(submissions) == 0 {
		return nil, services.Wrap(services.ErrIngestion, "ingest", "validate input", "a barem image and at least one elev image are required", nil)
	}
	if s.maxFiles > 0 && len(submissions) > s.maxFiles {
		return nil, services.Wrap(services.ErrIngestion, "ingest", "validate input",
			fmt.Sprintf("at most %d elev images per batch, got %d", s.maxFiles, len(submissions)), nil)
	}

	staged := &Staged{logger: s.logger}
	refPath, err := s.copyLocal(reference)
	if err != nil {
		return nil, err
	}
	staged.Reference = grading.ReferenceKey{FileName: filepath.Base(reference), Path: refPath}
	for i, src := range submissions {
		path, err := s.copyLocal(src)
		if err != nil {
			staged.Discard()
			return nil, err
		}
		staged.Submissions = append(staged.Submissions, grading.Submission{
			Index:    i + 1,
			FileName: filepath.Base(src),
			Path:     path,
		})
	}
	return staged, nil
}

func (s *Stager) stageHeader(fh *multipart.FileHeader) (string, error) {
	name := fh.Filename
	if declared := fh.Header.Get("Content-Type"); !acceptableDeclaredType(declared) {
		return "", rejectType(name, declared)
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return "", tooLarge(name, s.maxBytes)
	}
	src, err := fh.Open()
	if err != nil {
		return "", services.Wrap(services.ErrIngestion, "ingest", "open upload", name, err)
	}
	defer src.Close()
	return s.stageStream(name, src)
}

func (s *Stager) copyLocal(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", services.Wrap(services.ErrIngestion, "ingest", "stat input", path, err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrIngestion, "ingest", "stat input", path+" is a directory", nil)
	}
	if s.maxBytes > 0 && info.Size() > s.maxBytes {
		return "", tooLarge(filepath.Base(path), s.maxBytes)
	}
	if err := checkSniffed(path); err != nil {
		return "", err
	}
	staged, err := fileutil.CopyInto(path, s.dir, stagedName(path))
	if err != nil {
		return "", services.Wrap(services.ErrIngestion, "ingest", "stage input", "", err)
	}
	return staged, nil
}

// stageStream writes r to a fresh file, enforcing the size ceiling on the
// stream and sniffing the leading bytes.
func (s *Stager) stageStream(name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrIngestion, "ingest", "prepare upload dir", "", err)
	}
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", services.Wrap(services.ErrIngestion, "ingest", "read upload", name, err)
	}
	head = head[:n]
	if sniffed := sniffImage(head); !strings.HasPrefix(sniffed, "image/") {
		return "", rejectType(name, sniffed)
	}

	target := filepath.Join(s.dir, stagedName(name))
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", services.Wrap(services.ErrIngestion, "ingest", "create staged file", "", err)
	}
	body := io.MultiReader(bytes.NewReader(head), r)
	limit := s.maxBytes
	if limit <= 0 {
		limit = 1<<63 - 2
	}
	written, copyErr := io.Copy(out, io.LimitReader(body, limit+1))
	closeErr := out.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(target)
		return "", services.Wrap(services.ErrIngestion, "ingest", "write staged file", name, copyErr)
	case closeErr != nil:
		_ = os.Remove(target)
		return "", services.Wrap(services.ErrIngestion, "ingest", "write staged file", name, closeErr)
	case written > limit:
		_ = os.Remove(target)
		return "", tooLarge(name, s.maxBytes)
	}
	return target, nil
}

// PruneStale removes staged files older than maxAge, left behind by a crash
// between staging and grading.
func (s *Stager) PruneStale(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read upload dir: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("stale upload removal failed",
				logging.String(logging.FieldEventType, "upload_prune_failed"),
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("pruned stale uploads",
			logging.String(logging.FieldEventType, "upload_pruned"),
			logging.Int("count", removed),
		)
	}
	return removed, nil
}

func checkSniffed(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.ErrIngestion, "ingest", "open input", path, err)
	}
	defer f.Close()
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return services.Wrap(services.ErrIngestion, "ingest", "read input", path, err)
	}
	if sniffed := sniffImage(head[:n]); !strings.HasPrefix(sniffed, "image/") {
		return rejectType(filepath.Base(path), sniffed)
	}
	return nil
}

// sniffImage extends http.DetectContentType with the scanner formats it does
// not know: TIFF and HEIF/HEIC.
func sniffImage(head []byte) string {
	sniffed := http.DetectContentType(head)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	switch {
	case bytes.HasPrefix(head, tiffLittleEndian), bytes.HasPrefix(head, tiffBigEndian):
		return "image/tiff"
	case len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")) && heifBrands[string(head[8:12])]:
		return "image/heic"
	}
	return sniffed
}

// acceptableDeclaredType accepts image/* and a missing or generic type, in
// which case the sniffed content decides.
func acceptableDeclaredType(declared string) bool {
	declared = strings.ToLower(strings.TrimSpace(declared))
	return declared == "" || declared == "application/octet-stream" || strings.HasPrefix(declared, "image/")
}

func stagedName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return uuid.NewString() + ext
}

func rejectType(name, mimeType string) error {
	return services.Wrap(services.ErrIngestion, "ingest", "validate upload",
		fmt.Sprintf("%s: only image files are allowed (got %s)", name, mimeType), nil)
}

func tooLarge(name string, limit int64) error {
	return services.Wrap(services.ErrIngestion, "ingest", "validate upload",
		fmt.Sprintf("%s exceeds the %d MiB upload limit", name, limit>>20), nil)
}
