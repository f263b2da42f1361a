package confloader

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must stay quiet before a change is
// reported.
const DefaultSettle = 200 * time.Millisecond

// Watcher reports changes to configuration files. It watches the parent
// directory so editors that replace the file by rename are caught. Bursts
// of events on one file are coalesced into a single report once the file
// has been quiet for the settle period.
type Watcher struct {
	watcher   *fsnotify.Watcher
	settle    time.Duration
	logger    *slog.Logger
	mu        sync.Mutex
	files     map[string]struct{}
	pending   map[string]*time.Timer
	callbacks []func(string)
	done      chan struct{}
	stopOnce  sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithSettle overrides DefaultSettle. Zero reports every event at once.
func WithSettle(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.settle = d
		}
	}
}

// NewWatcher creates a configuration file watcher.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		settle:  DefaultSettle,
		logger:  slog.Default(),
		files:   make(map[string]struct{}),
		pending: make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch registers a file. Its directory must exist.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error("failed to watch directory", "path", dir, "error", err)
		return err
	}

	w.mu.Lock()
	w.files[abs] = struct{}{}
	w.mu.Unlock()

	w.logger.Debug("watching configuration file", "path", abs)
	return nil
}

// OnChange registers a callback that receives the path of a changed
// file. Callbacks run on a timer goroutine, one file at a time.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start processes events until Stop is called.
func (w *Watcher) Start() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, ok := w.watched(event.Name)
			if !ok {
				continue
			}
			w.logger.Debug("configuration file changed", "file", abs, "op", event.Op.String())
			w.schedule(abs)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher and drops pending reports. Safe to call more
// than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) watched(name string) (string, bool) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[abs]
	return abs, ok
}

// schedule (re)arms the settle timer of path.
func (w *Watcher) schedule(path string) {
	if w.settle == 0 {
		w.fire(path)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case <-w.done:
			return
		default:
		}
		w.fire(path)
	})
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	callbacks := append([]func(string){}, w.callbacks...)
	w.mu.Unlock()
	for _, cb := range callbacks {
		cb(path)
	}
}
