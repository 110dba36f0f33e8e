package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/medicalia/ordonnances-api/config"
)

func currentWeekFile(dir string) string {
	return filepath.Join(dir, "app-"+getWeekKey(time.Now())+".log")
}

func TestGetWeekKey(t *testing.T) {
	// 2025-10-07 falls in ISO week 41.
	weekKey := getWeekKey(time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC))
	if weekKey != "2025-W41" {
		t.Errorf("getWeekKey = %s, want 2025-W41", weekKey)
	}
}

func TestRotatingLoggerWriteAndRotate(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)
	defer func() { _ = rl.Close() }()

	if _, err := rl.Write([]byte("OCR request accepted")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	content, err := os.ReadFile(currentWeekFile(tempDir))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "OCR request accepted") {
		t.Errorf("log file missing message: %s", content)
	}

	// A week change opens a fresh file and leaves the old one in place.
	rl.mu.Lock()
	err = rl.doRotate("2025-W40")
	rl.mu.Unlock()
	if err != nil {
		t.Fatalf("doRotate: %v", err)
	}
	if _, err := rl.Write([]byte("late entry")); err != nil {
		t.Fatalf("Write after rotation: %v", err)
	}
	if _, err := os.Stat(currentWeekFile(tempDir)); err != nil {
		t.Errorf("previous week file disappeared: %v", err)
	}
}

func TestRotatingLoggerSizeRotationNumbersFiles(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 100)
	defer func() { _ = rl.Close() }()

	if _, err := rl.Write([]byte("short entry")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	large := strings.Repeat("request logged with a long structured payload ", 10)
	if _, err := rl.Write([]byte(large)); err != nil {
		t.Fatalf("Write over the limit: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(tempDir, "app-*_[0-9][0-9].log"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) == 0 {
		t.Error("expected a numbered overflow file after the size limit")
	}
}

func TestRotatingLoggerReusesFileBelowLimit(t *testing.T) {
	tempDir := t.TempDir()
	week := getWeekKey(time.Now())
	basePath := filepath.Join(tempDir, fmt.Sprintf("app-%s.log", week))
	if err := os.WriteFile(basePath, []byte(strings.Repeat("x", 512)), 0666); err != nil {
		t.Fatalf("seed log file: %v", err)
	}

	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 1024)
	defer func() { _ = rl.Close() }()

	rl.mu.Lock()
	err := rl.doRotate(week)
	rl.mu.Unlock()
	if err != nil {
		t.Fatalf("doRotate: %v", err)
	}

	if rl.currentFile.Name() != basePath {
		t.Errorf("opened %s, want the existing file below the limit", rl.currentFile.Name())
	}
	if rl.currentSize.Load() != 512 {
		t.Errorf("currentSize = %d, want the seeded size 512", rl.currentSize.Load())
	}
}

func TestRotatingLoggerStartsNumberedFileAtLimit(t *testing.T) {
	tempDir := t.TempDir()
	week := getWeekKey(time.Now())
	basePath := filepath.Join(tempDir, fmt.Sprintf("app-%s.log", week))
	if err := os.WriteFile(basePath, []byte(strings.Repeat("x", 2048)), 0666); err != nil {
		t.Fatalf("seed log file: %v", err)
	}

	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 1024)
	defer func() { _ = rl.Close() }()

	rl.mu.Lock()
	err := rl.doRotate(week)
	rl.mu.Unlock()
	if err != nil {
		t.Fatalf("doRotate: %v", err)
	}

	if !strings.Contains(rl.currentFile.Name(), "_01.") {
		t.Errorf("opened %s, want a _01 overflow file", rl.currentFile.Name())
	}
	if rl.currentSize.Load() != 0 {
		t.Errorf("currentSize = %d, want 0 for a fresh file", rl.currentSize.Load())
	}
}

func TestCleanupOldLogsHonorsRetention(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)

	oldFile := filepath.Join(tempDir, "app-2025-W30.log")
	if err := os.WriteFile(oldFile, []byte("stale"), 0666); err != nil {
		t.Fatalf("seed old file: %v", err)
	}
	threeWeeksAgo := time.Now().AddDate(0, 0, -21)
	if err := os.Chtimes(oldFile, threeWeeksAgo, threeWeeksAgo); err != nil {
		t.Fatalf("age old file: %v", err)
	}

	freshFile := currentWeekFile(tempDir)
	if err := os.WriteFile(freshFile, []byte("fresh"), 0666); err != nil {
		t.Fatalf("seed fresh file: %v", err)
	}

	if err := rl.cleanupOldLogs(); err != nil {
		t.Fatalf("cleanupOldLogs: %v", err)
	}

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("stale log file survived cleanup")
	}
	if _, err := os.Stat(freshFile); err != nil {
		t.Errorf("fresh log file removed: %v", err)
	}
}

func TestRotatingLoggerUnwritableDirectory(t *testing.T) {
	rl := NewRotatingLogger("/nonexistent/ordonnances/logs", 1)

	if _, err := rl.Write([]byte("entry")); err == nil {
		t.Error("expected an error writing into a missing directory")
	}
	if err := rl.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestRotatingLoggerConcurrentWrites(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 4096)
	defer func() { _ = rl.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				line := fmt.Sprintf("worker %d entry %d %s", id, j, strings.Repeat("x", 40))
				if _, err := rl.Write([]byte(line)); err != nil {
					t.Errorf("concurrent Write: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	matches, err := filepath.Glob(filepath.Join(tempDir, "app-*.log"))
	if err != nil || len(matches) == 0 {
		t.Fatalf("no log files after concurrent writes (err=%v)", err)
	}
}

// TestFileHandlerCapturesDebug pins the level split: the file handler keeps
// debug entries even when the console is quiet, so request traces survive
// production incidents.
func TestFileHandlerCapturesDebug(t *testing.T) {
	tempDir := t.TempDir()
	logger := SetupLoggerWithOptions(tempDir, 1, 100*1024*1024, slog.LevelError, GetFileLogLevel())

	logger.Debug("structuring fallback engaged", "reason", "invalid_shape")

	content, err := os.ReadFile(currentWeekFile(tempDir))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	line := strings.TrimSpace(string(content))
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("file entry is not JSON: %v (%s)", err, line)
	}
	if entry["msg"] != "structuring fallback engaged" || entry["reason"] != "invalid_shape" {
		t.Errorf("entry = %v, want the debug record with its attrs", entry)
	}
}

func TestGlobalLoggerWritesToFile(t *testing.T) {
	tempDir := t.TempDir()
	ResetForTest(t, tempDir, config.EnvTest, "", 2, 100*1024*1024)

	if DefaultLoggingService == nil {
		t.Fatal("DefaultLoggingService not initialized")
	}

	Info("ordonnance stored", "id", "ord-1")
	Warn("passport QR disabled")
	Error("webhook unreachable")
	Debug("sweep complete")

	content, err := os.ReadFile(currentWeekFile(tempDir))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, msg := range []string{"ordonnance stored", "passport QR disabled", "webhook unreachable", "sweep complete"} {
		if !strings.Contains(string(content), msg) {
			t.Errorf("log file missing %q", msg)
		}
	}
}

func TestGlobalFunctionsWorkBeforeInit(t *testing.T) {
	previous := DefaultLoggingService
	DefaultLoggingService = nil
	defer func() { DefaultLoggingService = previous }()

	// Must fall back to stderr without panicking.
	Info("boot message before logger setup")
	Warn("warn before setup")
	Error("error before setup")
	Debug("debug before setup")
}

func TestInitLoggerForConfig(t *testing.T) {
	tempDir := t.TempDir()
	previous := DefaultLoggingService
	defer func() {
		DefaultLoggingService = previous
		if previous != nil && previous.Logger != nil {
			slog.SetDefault(previous.Logger)
		}
	}()

	cfg := &config.Config{
		Env:               config.EnvTest,
		LogLevel:          "info",
		LogRetentionWeeks: 2,
		MaxLogFileSize:    100 * 1024 * 1024,
	}
	InitLoggerForConfig(tempDir, cfg)

	if DefaultLoggingService == nil {
		t.Fatal("InitLoggerForConfig did not set the global logger")
	}
	Info("configured logger entry")
	if _, err := os.Stat(currentWeekFile(tempDir)); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestMultiHandlerFansOut(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)
	defer func() { _ = rl.Close() }()

	var console strings.Builder
	multi := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(rl, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}

	// Enabled when any handler accepts the level.
	if !multi.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = false, file handler accepts it")
	}

	record := slog.NewRecord(time.Now(), slog.LevelDebug, "quiet on console", 0)
	if err := multi.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if console.Len() != 0 {
		t.Errorf("console received a debug entry: %s", console.String())
	}
	content, err := os.ReadFile(currentWeekFile(tempDir))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "quiet on console") {
		t.Error("file handler dropped the debug entry")
	}

	if multi.WithAttrs([]slog.Attr{slog.String("request_id", "req-1")}) == nil {
		t.Error("WithAttrs returned nil")
	}
	if multi.WithGroup("request") == nil {
		t.Error("WithGroup returned nil")
	}
}
