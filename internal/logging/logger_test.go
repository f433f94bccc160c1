package logging

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewCreatesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mediabridge.log")
	logger, err := New(Options{Level: "info", Format: "json", Path: path})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello")
}

func TestConsoleHandlerRendersAttrs(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, level))

	logger.Info("worker ready", Int("worker", 2), String("binary", "media worker"))

	line := buf.String()
	if !strings.Contains(line, "INFO") || !strings.Contains(line, "worker ready") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "worker=2") {
		t.Fatalf("missing int attr: %q", line)
	}
	if !strings.Contains(line, `binary="media worker"`) {
		t.Fatalf("expected quoted value with spaces: %q", line)
	}
}

func TestConsoleHandlerGroupsPrefixKeys(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, level)).WithGroup("pool")

	logger.Warn("degraded", Int("ready", 1))
	if !strings.Contains(buf.String(), "pool.ready=1") {
		t.Fatalf("expected group prefix: %q", buf.String())
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel("verbose"); got != slog.LevelInfo {
		t.Fatalf("unexpected level: %v", got)
	}
	if got := parseLevel("debug"); got != slog.LevelDebug {
		t.Fatalf("unexpected level: %v", got)
	}
}

func TestNewNopDiscards(t *testing.T) {
	NewNop().Error("never shown")
}
