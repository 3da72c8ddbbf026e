package logging_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib/config"
	"github.com/Ahmadinit/complete-app-setup/pkg/lib/logging"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestConsoleFormatPrefixesComponent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.With("component", "backend").Info("Uvicorn running", "stream", "stderr", "err", errors.New("a b"))
	logger.Debug("hidden")

	content := readLog(t, logPath)
	if !strings.Contains(content, "INFO backend: Uvicorn running stream=stderr") {
		t.Fatalf("unexpected console line: %q", content)
	}
	if !strings.Contains(content, `err="a b"`) {
		t.Fatalf("expected quoted error value, got %q", content)
	}
	if strings.Contains(content, "hidden") {
		t.Fatalf("debug record should be filtered at info: %q", content)
	}
	if strings.Contains(content, "\033[") {
		t.Fatalf("file output must not be colorized: %q", content)
	}
}

func TestConsoleFormatIncludesSourceForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.WithGroup("probe").Debug("attempt", "n", 3)

	content := readLog(t, logPath)
	if !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information, got %q", content)
	}
	if !strings.Contains(content, "probe.n=3") {
		t.Fatalf("expected grouped key, got %q", content)
	}
}

func TestAutoFormatUsesJSONForFiles(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "auto.log")
	logger, err := logging.New(logging.Options{Format: "auto", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("backend not ready", "attempts", 30)

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &record); err != nil {
		t.Fatalf("expected JSON record: %v", err)
	}
	if record["level"] != "warn" || record["msg"] != "backend not ready" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key: %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewFromConfigWritesFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "json"
	cfg.Logging.File = filepath.Join(t.TempDir(), "logs", "launcher.log")

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("launcher starting")

	if !strings.Contains(readLog(t, cfg.Logging.File), "launcher starting") {
		t.Fatal("expected record in configured log file")
	}
}

func TestDiscard(t *testing.T) {
	logger := logging.Discard()
	if logger.Enabled(t.Context(), 100) {
		t.Fatal("discard logger should not be enabled")
	}
}
