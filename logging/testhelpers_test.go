package logging

import (
	"log/slog"
	"testing"

	"github.com/medicalia/ordonnances-api/config"
)

// ResetForTest points the global logger at a temp directory and restores the
// previous logger when the test finishes.
func ResetForTest(t *testing.T, logDir string, env config.Environment, logLevel string, retentionWeeks int, maxFileSize int64) {
	t.Helper()

	previous := DefaultLoggingService

	consoleLevel := GetConsoleLogLevel(env, logLevel, testing.Verbose())
	DefaultLoggingService = &LoggingService{
		Logger: SetupLoggerWithOptions(logDir, retentionWeeks, maxFileSize, consoleLevel, GetFileLogLevel()),
	}
	slog.SetDefault(DefaultLoggingService.Logger)

	t.Cleanup(func() {
		DefaultLoggingService = previous
		if previous != nil && previous.Logger != nil {
			slog.SetDefault(previous.Logger)
		}
	})
}
