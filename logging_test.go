package main

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"seisattrib/config"
)

func TestLogFileNameForDate(t *testing.T) {
	when := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	if got := logFileNameForDate(when); got != "22-Jan-2026.log" {
		t.Fatalf("expected log filename to be 22-Jan-2026.log, got %q", got)
	}
	parsed, ok := parseLogFileDate("22-Jan-2026.log")
	if !ok || !parsed.Equal(time.Date(2026, time.January, 22, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected parsed date: %v ok=%v", parsed, ok)
	}
	if _, ok := parseLogFileDate("notes.txt"); ok {
		t.Fatalf("expected non-log file to be rejected")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"20-Jan-2026.log", "21-Jan-2026.log", "22-Jan-2026.log", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	now := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	if err := cleanupOldLogs(dir, now, 2); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "20-Jan-2026.log")); !os.IsNotExist(err) {
		t.Fatalf("expected 20-Jan-2026.log to be removed, stat err=%v", err)
	}
	for _, name := range []string{"21-Jan-2026.log", "22-Jan-2026.log", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to remain: %v", name, err)
		}
	}
}

func TestDailyFileSinkRotatesPerDay(t *testing.T) {
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 30)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	day1 := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	sink.WriteLine("first", day1)
	sink.WriteLine("second", day1.Add(24*time.Hour))
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for name, want := range map[string]string{"22-Jan-2026.log": "first", "23-Jan-2026.log": "second"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(data), want) {
			t.Fatalf("%s missing %q: %q", name, want, data)
		}
	}
}

// Purpose: Verify log lines scroll above the status line on a terminal.
// Key aspects: The status is cleared before a log line and redrawn after it.
// Upstream: go test execution.
// Downstream: logFanout.Write, logFanout.SetStatus.
func TestFanoutRedrawsStatusLine(t *testing.T) {
	var out bytes.Buffer
	fanout, err := setupLogging(config.LoggingConfig{}, &out, true)
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	logger := log.New(fanout, "", 0)
	if !fanout.SetStatus("50%") {
		t.Fatalf("expected status support on a terminal")
	}
	logger.Printf("Processor: hello")
	if err := fanout.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got := out.String()
	hello := strings.Index(got, "Processor: hello")
	if hello < 0 {
		t.Fatalf("log line missing: %q", got)
	}
	if !strings.HasPrefix(got, clearLine+"50%"+clearLine) {
		t.Fatalf("status not cleared before the log line: %q", got)
	}
	if !strings.HasSuffix(got, "Processor: hello\n50%\n") {
		t.Fatalf("status not redrawn after the log line: %q", got)
	}
}

func TestFanoutWithoutTerminalIgnoresStatus(t *testing.T) {
	var out bytes.Buffer
	dir := t.TempDir()
	fanout, err := setupLogging(config.LoggingConfig{Enabled: true, Dir: dir, RetentionDays: 3}, &out, false)
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	if fanout.SetStatus("ignored") {
		t.Fatalf("status must be refused without a terminal")
	}
	logger := log.New(fanout, "", 0)
	logger.Printf("Store: opened")
	if err := fanout.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if strings.Contains(out.String(), "ignored") || !strings.Contains(out.String(), "Store: opened") {
		t.Fatalf("unexpected console output %q", out.String())
	}
	data, err := os.ReadFile(filepath.Join(dir, logFileNameForDate(time.Now())))
	if err != nil || !strings.Contains(string(data), "Store: opened") {
		t.Fatalf("file sink missing line: %q err=%v", data, err)
	}
}
