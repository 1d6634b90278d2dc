// Package logging includes tests for the zap logger helpers.
package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, closeFn, err := New(Config{Development: true})
	if err != nil {
		t.Fatalf("New(dev) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer closeFn() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestRunLogFileFormat ensures file lines start with the date and carry capital levels.
func TestRunLogFileFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "run.log")
	logger, closeFn, err := New(Config{File: path})
	if err != nil {
		t.Fatalf("New(file) error = %v", err)
	}
	logger.Info("starting", zap.String("run_id", "r1"))
	logger.Warn("slow portal")
	logger.Error("boom")
	logger.Debug("hidden")
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), lines)
	}
	today := time.Now().Format("2006-01-02")
	for i, want := range []string{"INFO starting", "WARN slow portal", "ERROR boom"} {
		if !strings.HasPrefix(lines[i], today) {
			t.Fatalf("line %d missing date prefix: %q", i, lines[i])
		}
		if !strings.Contains(lines[i], want) {
			t.Fatalf("line %d = %q, want it to contain %q", i, lines[i], want)
		}
	}
	if !strings.Contains(lines[0], `"run_id": "r1"`) {
		t.Fatalf("expected structured field in %q", lines[0])
	}
}

// TestRunLogAppends checks that reopening the log keeps earlier runs.
func TestRunLogAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.log")
	for i := 0; i < 2; i++ {
		logger, closeFn, err := New(Config{File: path})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		logger.Info("run")
		if err := closeFn(); err != nil {
			t.Fatalf("close error = %v", err)
		}
	}
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got := strings.Count(string(data), "INFO run"); got != 2 {
		t.Fatalf("expected 2 appended lines, got %d", got)
	}
}
