package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the output format: json (default), text or console.
	Format string
	// Output is the output writer. Default: os.Stderr.
	Output io.Writer
	// AddSource adds source file information to log entries.
	AddSource bool
	// Location renders record timestamps in the canonical timezone of the
	// store instead of the host zone. Nil keeps the host zone.
	Location *time.Location
	// Process is attached to every record as "process" when set
	// (fieldstore-server, fieldstore-cli).
	Process string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stderr,
	}
}

// globalLevel is shared by every logger built here so SetLevel applies
// to all of them, including the one installed as slog default.
var globalLevel = new(slog.LevelVar)

// New creates a logger with the given configuration.
func New(cfg Config) (*slog.Logger, error) {
	format := strings.ToLower(cfg.Format)
	switch format {
	case "", "json", "text", "console":
	default:
		return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}
	globalLevel.Set(parseLevel(cfg.Level))

	loc := cfg.Location
	opts := &slog.HandlerOptions{
		Level:     globalLevel,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if loc != nil && len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.Time(a.Key, a.Value.Time().In(loc))
			}
			return redactSensitive(a)
		},
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var handler slog.Handler
	if format == "text" || format == "console" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}
	l := slog.New(handler)
	if cfg.Process != "" {
		l = l.With("process", cfg.Process)
	}
	return l, nil
}

// Setup creates a logger and installs it as the slog default.
func Setup(cfg Config) (*slog.Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// SetLevel changes the level of every logger built by New.
func SetLevel(level string) {
	globalLevel.Set(parseLevel(level))
}

// GetLevel returns the current level name.
func GetLevel() string {
	switch globalLevel.Level() {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}

// ValidLevel reports whether level is a known level name.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// parseLevel maps a level name to slog.Level; unknown names are info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
