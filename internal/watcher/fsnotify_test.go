package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForOp(t *testing.T, w Watcher, path string, op Op) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-w.Events():
			if e.Path == path && e.Op.Has(op) {
				return
			}
		case <-deadline:
			t.Fatalf("no %v event for %s", op, path)
		}
	}
}

func TestFSWatcher_WatchValidation(t *testing.T) {
	w, err := NewFSWatcher()
	if err != nil {
		t.Fatalf("NewFSWatcher() error = %v", err)
	}
	defer w.Close()

	dir := t.TempDir()

	if err := w.Watch(filepath.Join(dir, "missing")); err != ErrPathNotExist {
		t.Errorf("Watch(missing) error = %v, want ErrPathNotExist", err)
	}

	if err := w.Watch(dir); err != nil {
		t.Fatalf("Watch(%s) error = %v", dir, err)
	}
	if err := w.Watch(dir); err != ErrAlreadyWatching {
		t.Errorf("second Watch error = %v, want ErrAlreadyWatching", err)
	}

	if err := w.Unwatch(dir); err != nil {
		t.Errorf("Unwatch error = %v", err)
	}
	if err := w.Unwatch(dir); err != ErrNotWatching {
		t.Errorf("second Unwatch error = %v, want ErrNotWatching", err)
	}
}

func TestFSWatcher_DeliversRemoveEvents(t *testing.T) {
	w, err := NewFSWatcher()
	if err != nil {
		t.Fatalf("NewFSWatcher() error = %v", err)
	}
	defer w.Close()

	dir := t.TempDir()
	file := filepath.Join(dir, "lib.jar")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := w.Watch(dir); err != nil {
		t.Fatalf("Watch error = %v", err)
	}

	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}

	waitForOp(t, w, file, OpRemove)
}

func TestFSWatcher_WatchTreeCoversSubdirectories(t *testing.T) {
	w, err := NewFSWatcher()
	if err != nil {
		t.Fatalf("NewFSWatcher() error = %v", err)
	}
	defer w.Close()

	dir := t.TempDir()
	sub := filepath.Join(dir, "gen", "proto")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(sub, "a.pb.go")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := w.WatchTree(dir); err != nil {
		t.Fatalf("WatchTree error = %v", err)
	}

	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}

	waitForOp(t, w, file, OpRemove)
}

func TestFSWatcher_IgnoresConfiguredPatterns(t *testing.T) {
	w, err := NewFSWatcher(WithIgnorePatterns([]string{"*.tmp"}))
	if err != nil {
		t.Fatalf("NewFSWatcher() error = %v", err)
	}
	defer w.Close()

	dir := t.TempDir()
	ignored := filepath.Join(dir, "scratch.tmp")
	kept := filepath.Join(dir, "real.go")
	for _, f := range []string{ignored, kept} {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := w.Watch(dir); err != nil {
		t.Fatalf("Watch error = %v", err)
	}

	if err := os.Remove(ignored); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(kept); err != nil {
		t.Fatal(err)
	}

	// Only the non-ignored removal is delivered.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-w.Events():
			if e.Path == ignored {
				t.Fatalf("ignored path delivered: %+v", e)
			}
			if e.Path == kept && e.Op.Has(OpRemove) {
				return
			}
		case <-deadline:
			t.Fatal("no remove event for kept file")
		}
	}
}

func TestFSWatcher_CloseIsIdempotent(t *testing.T) {
	w, err := NewFSWatcher()
	if err != nil {
		t.Fatalf("NewFSWatcher() error = %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, ok := <-w.Events(); ok {
		t.Error("Events() channel should be closed")
	}
}
