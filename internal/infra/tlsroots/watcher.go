package tlsroots

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long the watcher waits after the last change
// before reloading, so a cert and key written back to back load together.
const DefaultSettle = 250 * time.Millisecond

// Watcher holds the serving key pair and reloads it when its files
// change. A failed reload keeps the previous pair.
type Watcher struct {
	certFile string
	keyFile  string
	settle   time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	cert *tls.Certificate
}

// NewWatcher loads the key pair. A nil logger selects slog.Default();
// a non-positive settle selects DefaultSettle.
func NewWatcher(certFile, keyFile string, settle time.Duration, logger *slog.Logger) (*Watcher, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{certFile: certFile, keyFile: keyFile, settle: settle, logger: logger}
	if err := w.Reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (w *Watcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cert, nil
}

// Reload reads the key pair from disk.
func (w *Watcher) Reload() error {
	cert, err := tls.LoadX509KeyPair(w.certFile, w.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	w.mu.Lock()
	w.cert = &cert
	w.mu.Unlock()
	return nil
}

// Run watches the directories holding the key pair and reloads it after
// changes settle. It blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	defer fw.Close()

	// Directories, not files: editors and cert tools replace by rename.
	dirs := map[string]struct{}{filepath.Dir(w.certFile): {}, filepath.Dir(w.keyFile): {}}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("tlsroots: watch %s: %w", dir, err)
		}
	}
	names := map[string]struct{}{filepath.Base(w.certFile): {}, filepath.Base(w.keyFile): {}}

	timer := time.NewTimer(w.settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if _, ours := names[filepath.Base(event.Name)]; !ours {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(w.settle)
		case <-timer.C:
			if err := w.Reload(); err != nil {
				w.logger.Error("certificate reload failed", "cert_file", w.certFile, "error", err)
				continue
			}
			w.logger.Info("certificate reloaded", "cert_file", w.certFile)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("certificate watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}
