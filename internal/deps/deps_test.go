package deps

import (
	"os"
	"path/filepath"
	"testing"

	"grila/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %q", results[2].Detail)
	}
	if AllRequiredAvailable(results) {
		t.Fatalf("expected missing required binary to fail the check")
	}
	if !AllRequiredAvailable([]Status{results[0], results[2]}) {
		t.Fatalf("optional dependencies must not fail the check")
	}
}

func TestCheckWorkerScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "grade.py")
	if err := os.WriteFile(script, []byte("print('{}')\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	statuses := CheckWorker(config.Worker{Command: "sh", Args: []string{"-u", script}})
	if len(statuses) != 2 {
		t.Fatalf("expected binary and script statuses, got %#v", statuses)
	}
	if !statuses[0].Available {
		t.Fatalf("expected sh to resolve, got %#v", statuses[0])
	}
	if !statuses[1].Available || statuses[1].Command != script {
		t.Fatalf("expected script to be found, got %#v", statuses[1])
	}

	missing := CheckWorker(config.Worker{Command: "sh", Args: []string{filepath.Join(dir, "gone.py")}})
	if len(missing) != 2 || missing[1].Available || missing[1].Detail == "" {
		t.Fatalf("expected missing script status, got %#v", missing)
	}

	plain := CheckWorker(config.Worker{Command: "sh", Args: []string{"--json"}})
	if len(plain) != 1 {
		t.Fatalf("expected no script status without a script argument, got %#v", plain)
	}
}
