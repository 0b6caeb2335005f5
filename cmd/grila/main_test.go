package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"grila/internal/config"
	"grila/internal/testsupport"
)

type cliEnv struct {
	cfg        *config.Config
	configPath string
	imageDir   string
}

func setupCLI(t *testing.T, opts ...testsupport.ConfigOption) *cliEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeConfig(t, configPath, cfg)
	imageDir := filepath.Join(base, "images")
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		t.Fatalf("mkdir images: %v", err)
	}
	return &cliEnv{cfg: cfg, configPath: configPath, imageDir: imageDir}
}

func writeConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliEnv) image(t *testing.T, name string) string {
	t.Helper()
	return testsupport.WriteImage(t, filepath.Join(e.imageDir, name))
}

func runCLI(t *testing.T, env *cliEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if env != nil {
		args = append([]string{"--config", env.configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func gradingWorker() testsupport.ConfigOption {
	return testsupport.WithWorkerScript(testsupport.EchoWorker(testsupport.WorkerOutput("Ana Pop", 8, 10)))
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLI(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Store: sqlite")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, nil, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, nil, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
	if _, _, err := runCLI(t, nil, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestGradeThenManageResults(t *testing.T) {
	env := setupCLI(t, gradingWorker())
	barem := env.image(t, "barem.png")
	elev := env.image(t, "elev.png")

	out, _, err := runCLI(t, env, "grade", barem, elev, "--title", "Bio", "--json")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	var graded struct {
		Success        bool   `json:"success"`
		SavedID        string `json:"savedId"`
		TestTitle      string `json:"testTitle"`
		CorrectAnswers int    `json:"correct_answers"`
	}
	if err := json.Unmarshal([]byte(out), &graded); err != nil {
		t.Fatalf("decode grade output: %v\n%s", err, out)
	}
	if !graded.Success || graded.SavedID == "" || graded.TestTitle != "Bio" || graded.CorrectAnswers != 8 {
		t.Fatalf("unexpected grade payload: %+v", graded)
	}
	if _, err := os.Stat(elev); err != nil {
		t.Fatalf("original image should be left in place: %v", err)
	}

	out, _, err = runCLI(t, env, "results", "list")
	if err != nil {
		t.Fatalf("results list: %v", err)
	}
	requireContains(t, out, "Ana Pop")
	requireContains(t, out, "8/10")
	requireContains(t, out, "Page 1 of 1 (1 results)")

	out, _, err = runCLI(t, env, "results", "list", "--student", "nobody")
	if err != nil {
		t.Fatalf("results list filtered: %v", err)
	}
	requireContains(t, out, "No results found")

	out, _, err = runCLI(t, env, "results", "show", graded.SavedID)
	if err != nil {
		t.Fatalf("results show: %v", err)
	}
	requireContains(t, out, graded.SavedID)
	requireContains(t, out, "CORRECT")

	out, _, err = runCLI(t, env, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "80.0%")

	out, _, err = runCLI(t, env, "results", "delete", graded.SavedID)
	if err != nil {
		t.Fatalf("results delete: %v", err)
	}
	requireContains(t, out, "deleted successfully")

	if _, _, err := runCLI(t, env, "results", "show", graded.SavedID); err == nil {
		t.Fatal("expected show of deleted result to fail")
	}
}

func TestGradeBatchPrintsSummary(t *testing.T) {
	env := setupCLI(t, gradingWorker())
	barem := env.image(t, "barem.png")
	first := env.image(t, "elev1.png")
	second := env.image(t, "elev2.png")

	out, _, err := runCLI(t, env, "grade-batch", barem, first, second)
	if err != nil {
		t.Fatalf("grade-batch: %v", err)
	}
	requireContains(t, out, "elev1.png")
	requireContains(t, out, "elev2.png")
	requireContains(t, out, "2/2 graded (100.0%)")

	out, _, err = runCLI(t, env, "results", "list", "--json")
	if err != nil {
		t.Fatalf("results list --json: %v", err)
	}
	var listed struct {
		Results []struct {
			TestTitle string `json:"testTitle"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Results) != 2 {
		t.Fatalf("expected 2 stored results, got %d", len(listed.Results))
	}
	if listed.Results[0].TestTitle != env.cfg.Grading.DefaultTitle {
		t.Fatalf("expected default title %q, got %q", env.cfg.Grading.DefaultTitle, listed.Results[0].TestTitle)
	}
}

func TestGradeFailsOnWorkerError(t *testing.T) {
	env := setupCLI(t, testsupport.WithWorkerScript("echo boom >&2\nexit 3"))
	barem := env.image(t, "barem.png")
	elev := env.image(t, "elev.png")

	if _, _, err := runCLI(t, env, "grade", barem, elev); err == nil {
		t.Fatal("expected grade to fail when the worker exits non-zero")
	}
}

func TestGradeRejectsMissingFile(t *testing.T) {
	env := setupCLI(t, gradingWorker())
	barem := env.image(t, "barem.png")

	if _, _, err := runCLI(t, env, "grade", barem, filepath.Join(env.imageDir, "missing.png")); err == nil {
		t.Fatal("expected grade to fail for a missing submission")
	}
}

func TestDepsCommand(t *testing.T) {
	env := setupCLI(t, gradingWorker())
	out, _, err := runCLI(t, env, "deps")
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	requireContains(t, out, "worker.sh")
	requireContains(t, out, "yes")

	env.cfg.Worker.Command = "grila-missing-worker"
	writeConfig(t, env.configPath, env.cfg)
	out, _, err = runCLI(t, env, "deps")
	if err == nil {
		t.Fatal("expected deps to fail when the worker is missing")
	}
	requireContains(t, out, "no")
}

func TestNotifyTestCommand(t *testing.T) {
	env := setupCLI(t)
	if _, _, err := runCLI(t, env, "notify", "test"); err == nil {
		t.Fatal("expected notify test to fail without a topic")
	}

	received := make(chan string, 1)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("Title")
	}))
	defer ntfy.Close()

	env.cfg.Notifications.NtfyTopic = ntfy.URL
	writeConfig(t, env.configPath, env.cfg)
	out, _, err := runCLI(t, env, "notify", "test")
	if err != nil {
		t.Fatalf("notify test: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if title := <-received; title != "grila - Test" {
		t.Fatalf("unexpected title %q", title)
	}
}
