package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"liftmail/internal/logging"
)

func TestRunLogPublishesPointer(t *testing.T) {
	dir := t.TempDir()
	run := logging.NewRunLog(dir, time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC))
	if filepath.Base(run.Path) != "liftmail-20260304T050607.000Z.log" {
		t.Fatalf("unexpected run log name %s", run.Path)
	}

	logger, err := logging.New(logging.Options{Level: "info", OutputPaths: []string{run.Path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := run.Publish(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	logger.Info("hello")

	content, err := os.ReadFile(filepath.Join(dir, logging.CurrentLogName))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if !strings.Contains(string(content), "hello") {
		t.Fatalf("expected message through pointer, got %q", content)
	}

	next := logging.NewRunLog(dir, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	if err := os.WriteFile(next.Path, []byte("second run\n"), 0o644); err != nil {
		t.Fatalf("write next run: %v", err)
	}
	if err := next.Publish(); err != nil {
		t.Fatalf("republish: %v", err)
	}
	content, err = os.ReadFile(next.Pointer)
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(content) != "second run\n" {
		t.Fatalf("expected pointer to follow newest run, got %q", content)
	}
}

func TestWriterOptionAndDurations(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("tick done", logging.Duration("elapsed", 1500*time.Millisecond), logging.MessageUID(42))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["elapsed"] != "1.5s" {
		t.Fatalf("expected go duration string, got %v", entry["elapsed"])
	}
	if entry[logging.FieldMessageUID] != float64(42) {
		t.Fatalf("expected message uid, got %v", entry[logging.FieldMessageUID])
	}
}

func TestConsoleLoggerFormatsComponentAndRecord(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "ingest")
	logger.Info("message processed",
		logging.String(logging.FieldRecordID, "0123456789abcdef"),
		logging.String("lift", "Back Squat"),
		logging.Error(errors.New("boom")),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{"INFO ingest: message processed [01234567]", `lift="Back Squat"`, "error=boom"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONLoggerUsesLowercaseLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("careful", logging.Int("count", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "careful" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key in %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "notify failed", "notify_failed")

	content, _ := os.ReadFile(logPath)
	for _, want := range []string{"event_type=notify_failed", "error_hint=", "impact="} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}

func TestWithContextAddsCorrelationID(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := logging.WithCorrelationID(context.Background(), "tick-1")
	logging.WithContext(ctx, logger).Info("tick")

	content, _ := os.ReadFile(logPath)
	if !strings.Contains(string(content), "correlation_id=tick-1") {
		t.Fatalf("expected correlation id in %q", content)
	}
	if id, ok := logging.CorrelationIDFromContext(context.Background()); ok || id != "" {
		t.Fatal("expected no correlation id on bare context")
	}
}
