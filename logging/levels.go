package logging

import (
	"log/slog"
	"strings"

	"github.com/medicalia/ordonnances-api/config"
)

// parseLogLevel converts a LOG_LEVEL string to a slog level, defaulting to info
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel picks the console log level for the environment.
// Test runs stay quiet unless verbose is set, and ignore LOG_LEVEL overrides.
func GetConsoleLogLevel(env config.Environment, logLevel string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}

	if logLevel != "" {
		return parseLogLevel(logLevel)
	}

	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel returns the level for the rotating file handler. Files
// always capture debug so incidents can be investigated after the fact.
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}
