package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestWithLogger_FromContext(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("test message")

	if buf.Len() == 0 {
		t.Error("logger from context should produce output")
	}
}

func TestFromContext_Default(t *testing.T) {
	if got := FromContext(context.Background()); got != slog.Default() {
		t.Error("FromContext() without logger should return slog.Default()")
	}
}

func TestRunID(t *testing.T) {
	ctx := context.Background()
	if got := RunIDFromContext(ctx); got != "" {
		t.Errorf("RunIDFromContext() = %q, want empty", got)
	}

	ctx = WithRunID(ctx, "01HV0000000000000000000000")
	if got := RunIDFromContext(ctx); got != "01HV0000000000000000000000" {
		t.Errorf("RunIDFromContext() = %q", got)
	}
}

func TestL_AddsRunID(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithRunID(WithLogger(context.Background(), l), "run-1")
	L(ctx).Info("sweep")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log: %v", err)
	}
	if entry["run_id"] != "run-1" {
		t.Errorf("run_id = %v", entry["run_id"])
	}
}
