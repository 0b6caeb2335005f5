package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"grila/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.UploadDir = filepath.Join(base, "data", "uploads")
	cfgVal.Paths.LogDir = filepath.Join(base, "data", "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Store.SQLitePath = filepath.Join(base, "data", "results.db")
	cfgVal.Worker.Command = "true"
	cfgVal.Worker.Args = nil
	cfgVal.Worker.TimeoutSeconds = 10
	cfgVal.Metrics.Enabled = true

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIToken enables bearer authentication on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithMaxConcurrency overrides the batch concurrency gate.
func WithMaxConcurrency(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Grading.MaxConcurrency = limit
	}
}

// WithNtfyTopic enables batch notifications against the given endpoint.
func WithNtfyTopic(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = url
	}
}

// WithWorkerScript writes a POSIX shell worker with the given body and points
// the worker command at it. The script receives the reference and submission
// paths as $1 and $2.
func WithWorkerScript(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.Command = writeScript(b.t, filepath.Join(b.baseDir, "bin"), "worker.sh", body)
		b.cfg.Worker.Args = nil
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default worker command is
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"python3"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			writeScript(b.t, binDir, name, "exit 0")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

func writeScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}
