// Package logger configures structured logging for fieldstore.
//
//   - logger.go: slog handler setup and dynamic level
//   - context.go: logger and run ID propagation through context
//   - redact.go: password hash and signature redaction
package logger
