package logger

import (
	"context"
	"log/slog"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	loggerKey contextKey = "fieldstore.logger"
	runIDKey  contextKey = "fieldstore.run_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns slog.Default() if none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// WithRunID tags the context with the ID of a background run (a sweep,
// an import).
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run ID from context.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// L is a shorthand for FromContext that also adds the run ID.
func L(ctx context.Context) *slog.Logger {
	l := FromContext(ctx)
	if id := RunIDFromContext(ctx); id != "" {
		l = l.With("run_id", id)
	}
	return l
}
