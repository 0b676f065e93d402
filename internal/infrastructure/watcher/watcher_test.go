package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDetectsNewDump(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(WithDebounce(50 * time.Millisecond))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	if err := w.WatchDir(tmpDir); err != nil {
		t.Fatalf("watch dir: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events := w.Events(ctx)

	dump := filepath.Join(tmpDir, "coverage-1234-0.json")
	if err := os.WriteFile(dump, []byte(`{"result":[]}`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case <-events:
	case <-ctx.Done():
		t.Fatal("timeout waiting for dump event")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(WithDebounce(50 * time.Millisecond))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	if err := w.WatchDir(tmpDir); err != nil {
		t.Fatalf("watch dir: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	events := w.Events(ctx)

	other := filepath.Join(tmpDir, "notes.txt")
	if err := os.WriteFile(other, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case <-events:
		t.Fatal("should not receive an event for a non-dump file")
	case <-ctx.Done():
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(WithDebounce(100 * time.Millisecond))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	if err := w.WatchDir(tmpDir); err != nil {
		t.Fatalf("watch dir: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events := w.Events(ctx)

	for i := 0; i < 3; i++ {
		name := filepath.Join(tmpDir, "coverage-"+string(rune('a'+i))+".json")
		if err := os.WriteFile(name, []byte(`{"result":[]}`), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-events:
	case <-ctx.Done():
		t.Fatal("timeout waiting for burst event")
	}

	// The burst settles into one event within the debounce window.
	quiet, quietCancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer quietCancel()
	select {
	case <-events:
		t.Fatal("burst should collapse into a single event")
	case <-quiet.Done():
	}
}

func TestWatcherCustomExtensions(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(
		WithDebounce(50*time.Millisecond),
		WithExtensions(".json", ".cov"),
	)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	if err := w.WatchDir(tmpDir); err != nil {
		t.Fatalf("watch dir: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events := w.Events(ctx)

	if err := os.WriteFile(filepath.Join(tmpDir, "run.cov"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case <-events:
	case <-ctx.Done():
		t.Fatal("timeout waiting for custom-extension event")
	}
}

func TestWatchMissingDirFails(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	if err := w.WatchDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}
