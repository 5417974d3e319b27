package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bundlewatch/internal/config"
	"bundlewatch/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("watcher started")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "bundlewatch.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "watcher started") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "watcher")
	logger.Info("update detected", logging.String(logging.FieldRemote, "def456"))

	out := buf.String()
	if !strings.Contains(out, "INFO  watcher  update detected") {
		t.Fatalf("unexpected header: %q", out)
	}
	if !strings.Contains(out, "remote_fingerprint=def456") {
		t.Fatalf("expected key=value field, got %q", out)
	}
	if strings.Contains(out, "component=") {
		t.Fatalf("component should be a column, got %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected a single line, got %q", out)
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("tick")
	if !strings.Contains(buf.String(), "(logger_test.go:") {
		t.Fatalf("expected caller in debug output, got %q", buf.String())
	}
}

func TestJSONLoggerShape(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "remote check failed", "remote_check_failed", logging.Error(errors.New("boom")))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode json line %q: %v", buf.String(), err)
	}
	if line["level"] != "warn" {
		t.Fatalf("unexpected level %v", line["level"])
	}
	if _, ok := line["ts"]; !ok {
		t.Fatal("expected ts key")
	}
	if _, ok := line["time"]; ok {
		t.Fatal("time key should be renamed to ts")
	}
	if line[logging.FieldEventType] != "remote_check_failed" {
		t.Fatalf("unexpected event_type %v", line[logging.FieldEventType])
	}
	if line[logging.FieldErrorHint] == nil || line[logging.FieldImpact] == nil {
		t.Fatalf("expected default hint and impact, got %v", line)
	}
}

func TestConsoleLoggerQuotesAndOverrides(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logger.With(logging.String("page_url", "https://old.example"))
	logger.Info("check", logging.String("page_url", "https://new.example"), logging.String("error", "connection refused"))

	out := buf.String()
	if strings.Contains(out, "old.example") {
		t.Fatalf("expected later attr to win, got %q", out)
	}
	if !strings.Contains(out, `error="connection refused"`) {
		t.Fatalf("expected quoted value, got %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(t.Context(), 0) {
		t.Fatal("expected nop logger to be disabled")
	}
}
