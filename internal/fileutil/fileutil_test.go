package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyIntoCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "barem.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst, err := CopyInto(src, filepath.Join(dir, "uploads", "nested"), "copy.png")
	if err != nil {
		t.Fatalf("CopyInto: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected copied file: %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source must survive the copy: %v", err)
	}
}

func TestOwnedFileReleaseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elev.png")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	owned := NewOwnedFile(path, nil)
	if owned.Released() {
		t.Fatal("new file should not be released")
	}

	owned.Release()
	owned.Release()

	if !owned.Released() {
		t.Fatal("expected Released after Release")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
}

func TestOwnedFileReleaseToleratesMissingFile(t *testing.T) {
	owned := NewOwnedFile(filepath.Join(t.TempDir(), "gone.png"), nil)
	owned.Release()
	if !owned.Released() {
		t.Fatal("expected Released even when file was already missing")
	}
}

func TestSharedFileWaitsForHolders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barem.png")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	shared := NewSharedFile(path, nil)

	const holders = 5
	release := make(chan struct{})
	var started sync.WaitGroup
	for i := 0; i < holders; i++ {
		if err := shared.Acquire(); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		started.Add(1)
		go func() {
			defer shared.Done()
			started.Done()
			<-release
			if _, err := os.Stat(path); err != nil {
				t.Errorf("holder saw file removed early: %v", err)
			}
		}()
	}
	started.Wait()

	closed := make(chan struct{})
	go func() {
		shared.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned before holders finished")
	case <-time.After(50 * time.Millisecond):
	}
	if shared.Removed() {
		t.Fatal("file removed while holders active")
	}

	close(release)
	<-closed

	if !shared.Removed() {
		t.Fatal("expected file removed after Close")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file gone, stat err=%v", err)
	}
}

func TestSharedFileAcquireAfterClose(t *testing.T) {
	shared := NewSharedFile(filepath.Join(t.TempDir(), "barem.png"), nil)
	shared.Close()
	if err := shared.Acquire(); !errors.Is(err, ErrSharedFileClosed) {
		t.Fatalf("expected ErrSharedFileClosed, got %v", err)
	}
	shared.Close()
}
