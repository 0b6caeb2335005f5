package scorer

import (
	"bytes"
	"context"
	"os/exec"
)

// Executor abstracts worker process execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)
}

type commandExecutor struct{}

// Run starts binary in its own process group and waits for it. When ctx ends
// first the whole group is killed so helper processes spawned by the worker do
// not outlive the job; the returned error is then ctx.Err().
func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.Command(binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureProcessGroup(cmd)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, &StartError{Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return stdout.Bytes(), stderr.Bytes(), err
	case <-ctx.Done():
		_ = killProcessGroup(cmd)
		<-done
		return stdout.Bytes(), stderr.Bytes(), ctx.Err()
	}
}
