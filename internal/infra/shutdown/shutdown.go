package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultTimeout bounds the time all hooks get together.
const DefaultTimeout = 15 * time.Second

type hook struct {
	name string
	fn   func(context.Context) error
}

// Handler runs shutdown hooks.
type Handler struct {
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	hooks []hook

	trigger     chan struct{}
	triggerOnce sync.Once
	done        chan struct{}
}

// NewHandler creates a shutdown handler. A non-positive timeout selects
// DefaultTimeout.
func NewHandler(timeout time.Duration, logger *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		timeout: timeout,
		logger:  logger,
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a named hook. Hooks run in reverse order of
// registration, so resources opened first are closed last.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Trigger starts the shutdown without a signal.
func (h *Handler) Trigger() {
	h.triggerOnce.Do(func() { close(h.trigger) })
}

// Wait blocks until a termination signal, Trigger or the end of ctx, then
// runs the hooks. Every hook runs even when an earlier one fails; the
// errors are joined.
func (h *Handler) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		h.logger.Info("shutdown signal received", "signal", sig.String())
	case <-h.trigger:
		h.logger.Info("shutdown requested")
	case <-ctx.Done():
		h.logger.Info("shutdown on context end", "cause", context.Cause(ctx))
	}

	return h.run()
}

func (h *Handler) run() error {
	defer close(h.done)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := append([]hook(nil), h.hooks...)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		start := time.Now()
		if err := hooks[i].fn(ctx); err != nil {
			h.logger.Error("shutdown hook failed", "hook", hooks[i].name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", hooks[i].name, err))
			continue
		}
		h.logger.Debug("shutdown hook done", "hook", hooks[i].name, "duration", time.Since(start))
	}
	return errors.Join(errs...)
}

// Done returns a channel that closes when all hooks have run.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
