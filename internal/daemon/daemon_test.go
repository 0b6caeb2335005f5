package daemon

import (
	"context"
	"testing"

	"grila/internal/ingest"
	"grila/internal/testsupport"
)

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d
}

func TestNewRequiresStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatal("expected error without a store")
	}
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestDaemonStartStop(t *testing.T) {
	d := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.StartedAt.IsZero() {
		t.Fatalf("expected daemon to report running, got %+v", status)
	}
	if d.Addr() == "" {
		t.Fatal("expected bound address")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if d.Addr() != "" {
		t.Fatal("expected listener to be released")
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := New(cfg, testsupport.MustOpenStore(t, cfg), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })
	second, err := New(cfg, testsupport.MustOpenStore(t, cfg), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected lock contention to fail the second daemon")
	}
}

func TestJobContextSurvivesRequestCancel(t *testing.T) {
	d := newTestDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	reqCtx, cancelReq := context.WithCancel(context.Background())
	jobCtx, release := d.jobContext(reqCtx)
	defer release()
	cancelReq()
	if jobCtx.Err() != nil {
		t.Fatal("job context must not follow the request")
	}

	d.Stop()
	<-jobCtx.Done()
}

func newStagerFor(d *Daemon) *ingest.Stager {
	return ingest.NewStager(d.cfg, nil)
}
