package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"grila/internal/config"
)

// scriptExtensions are interpreter inputs that must exist on disk for the
// worker to start.
var scriptExtensions = map[string]struct{}{
	".py": {},
	".sh": {},
	".js": {},
}

// WorkerRequirements returns the dependencies of the configured scoring worker.
func WorkerRequirements(worker config.Worker) []Requirement {
	return []Requirement{{
		Name:        "Scoring worker",
		Command:     worker.Command,
		Description: "Compares answer sheets against the answer key",
	}}
}

// CheckWorker reports the worker binary and, when the first script-like
// argument names a file, whether that script exists.
func CheckWorker(worker config.Worker) []Status {
	statuses := CheckBinaries(WorkerRequirements(worker))
	if script, ok := workerScript(worker.Args); ok {
		statuses = append(statuses, checkScript(script))
	}
	return statuses
}

func workerScript(args []string) (string, bool) {
	for _, arg := range args {
		trimmed := strings.TrimSpace(arg)
		if strings.HasPrefix(trimmed, "-") {
			continue
		}
		if _, ok := scriptExtensions[strings.ToLower(filepath.Ext(trimmed))]; ok {
			return trimmed, true
		}
	}
	return "", false
}

func checkScript(path string) Status {
	status := Status{
		Name:        "Worker script",
		Command:     path,
		Description: "Entry point passed to the worker interpreter",
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		status.Detail = fmt.Sprintf("script %q not found", path)
	case info.IsDir():
		status.Detail = fmt.Sprintf("script %q is a directory", path)
	default:
		status.Available = true
	}
	return status
}
