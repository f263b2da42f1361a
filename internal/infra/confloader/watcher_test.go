package confloader

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_ReportsWatchedFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "fieldstore.yaml")
	otherFile := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(configFile, []byte("log:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if err := w.Watch(configFile); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	changed := make(chan string, 16)
	w.OnChange(func(path string) { changed <- path })
	w.StartAsync()

	if err := os.WriteFile(otherFile, []byte("x: 1"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(configFile, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case path := <-changed:
		if filepath.Base(path) != "fieldstore.yaml" {
			t.Errorf("callback path = %q, want the watched file only", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_WatchMissingDir(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if err := w.Watch("/nonexistent/dir/config.yaml"); err == nil {
		t.Error("Watch() should fail for a missing directory")
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestWatcher_CoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "fieldstore.yaml")
	if err := os.WriteFile(configFile, []byte("log:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	w, err := NewWatcher(WithSettle(300 * time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()
	if err := w.Watch(configFile); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	var calls atomic.Int32
	w.OnChange(func(string) { calls.Add(1) })
	w.StartAsync()

	for _, level := range []string{"debug", "warn", "error"} {
		if err := os.WriteFile(configFile, []byte("log:\n  level: "+level+"\n"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.Now().Add(3 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("callbacks = %d, want 1 for one burst", got)
	}
}

func TestWatcher_StopDropsPending(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "fieldstore.yaml")
	if err := os.WriteFile(configFile, []byte("a: 1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	w, err := NewWatcher(WithSettle(time.Hour))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Watch(configFile); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	w.schedule(configFile)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	w.mu.Lock()
	n := len(w.pending)
	w.mu.Unlock()
	if n != 0 {
		t.Errorf("pending = %d after Stop, want 0", n)
	}
}
