package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"grila/internal/logging"
	"grila/internal/services"
)

func TestConsoleLoggerRendersSubjectAndComponent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithBatchID(context.Background(), "1f2e3d4c-aaaa-bbbb-cccc-000000000000")
	ctx = services.WithSubmissionIndex(ctx, 2)
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "grading")).
		Info("job completed", logging.String("score", "8/10"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, fragment := range []string{"INFO", "grading:", "[batch 1f2e3d4c #2]", "job completed", "score=8/10"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestJSONLoggerUsesStableKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("worker slow", logging.String(logging.FieldEventType, "worker_slow"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	if entry["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
	if entry["event_type"] != "worker_slow" {
		t.Fatalf("expected event_type field, got %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "cleanup failed", "file_cleanup_failed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected %s in %v", key, entry)
		}
	}
}

func TestTeeLoggerDuplicatesRecords(t *testing.T) {
	var primary, mirror bytes.Buffer
	base := slog.New(slog.NewTextHandler(&primary, nil))
	tee := logging.TeeLogger(base, slog.NewJSONHandler(&mirror, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tee.Debug("debug only")
	tee.Info("both")

	if strings.Contains(primary.String(), "debug only") {
		t.Fatalf("primary handler should not receive debug records: %q", primary.String())
	}
	if !strings.Contains(primary.String(), "both") {
		t.Fatalf("primary handler missing info record: %q", primary.String())
	}
	if !strings.Contains(mirror.String(), "debug only") || !strings.Contains(mirror.String(), "both") {
		t.Fatalf("mirror handler missing records: %q", mirror.String())
	}
}
