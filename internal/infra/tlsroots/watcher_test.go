package tlsroots

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeKeyPair(t, dir, "server")

	w, err := NewWatcher(certFile, keyFile, 0, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	cert, err := w.GetCertificate(nil)
	if err != nil || cert == nil {
		t.Fatalf("GetCertificate() = %v, %v", cert, err)
	}

	if _, err := NewWatcher(filepath.Join(dir, "missing.crt"), keyFile, 0, nil); err == nil {
		t.Error("missing cert should fail")
	}
	if err := os.WriteFile(certFile, []byte("invalid"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewWatcher(certFile, keyFile, 0, nil); err == nil {
		t.Error("invalid cert should fail")
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeKeyPair(t, dir, "server")

	w, err := NewWatcher(certFile, keyFile, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := w.GetCertificate(nil)

	// A broken pair keeps the previous certificate.
	if err := os.WriteFile(keyFile, []byte("broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := w.Reload(); err == nil {
		t.Fatal("Reload() with broken key should fail")
	}
	if got, _ := w.GetCertificate(nil); got != before {
		t.Error("failed reload replaced the certificate")
	}
}

func TestWatcher_Run(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeKeyPair(t, dir, "server")

	w, err := NewWatcher(certFile, keyFile, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := w.GetCertificate(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Rotate until the watcher has picked up a new pair; the first
	// rotation may land before the watch is registered.
	deadline := time.Now().Add(5 * time.Second)
	for {
		writeKeyPair(t, dir, "server")
		time.Sleep(100 * time.Millisecond)
		got, _ := w.GetCertificate(nil)
		if !bytes.Equal(got.Certificate[0], before.Certificate[0]) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("certificate was not reloaded")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
