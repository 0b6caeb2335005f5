package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := "[paths]\ndata_dir = \"" + filepath.Join(dir, "data") + "\"\n\n[worker]\ncommand = \"grade-worker\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GRILA_CONFIG", path)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Worker.Command != "grade-worker" {
		t.Fatalf("expected worker command from file, got %q", cfg.Worker.Command)
	}
	if cfg.Paths.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[worker]\ntimeout_seconds = -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GRILA_CONFIG", path)

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected invalid config to fail")
	}
}
