package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestInitWriter_ServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	l := InitWriter(&buf, "backtest", slog.LevelInfo)
	l.Info("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["service"] != "backtest" {
		t.Errorf("expected service=backtest, got %v", line["service"])
	}
}

func TestRunID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if rid := RunID(ctx); rid != "" {
		t.Errorf("expected empty run id, got %q", rid)
	}

	ctx = WithRunID(ctx, "run-123")
	if rid := RunID(ctx); rid != "run-123" {
		t.Errorf("expected 'run-123', got %q", rid)
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Fatal("expected distinct run ids")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("run id %q is not a uuid: %v", a, err)
	}
}

func TestLogWithRun(t *testing.T) {
	ctx := context.Background()

	if attrs := LogWithRun(ctx); attrs != nil {
		t.Errorf("expected nil attrs when no run id, got %v", attrs)
	}

	ctx = WithRunID(ctx, "abc-123")
	if attrs := LogWithRun(ctx); len(attrs) == 0 {
		t.Fatal("expected non-empty attrs with run id set")
	}
}

func TestForRun(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ForRun(WithRunID(context.Background(), "r-1"), base).Info("x")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal(err)
	}
	if line["run_id"] != "r-1" {
		t.Errorf("expected run_id=r-1, got %v", line["run_id"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "warn": slog.LevelWarn,
		"error": slog.LevelError, "": slog.LevelInfo, "loud": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
