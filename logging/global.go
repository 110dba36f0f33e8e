package logging

import (
	"log/slog"
	"os"

	"github.com/medicalia/ordonnances-api/config"
)

type LoggingService struct {
	Logger *slog.Logger
}

var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger instance
func InitLogger(logDir string) {
	DefaultLoggingService = &LoggingService{
		Logger: SetupLogger(logDir),
	}
	slog.SetDefault(DefaultLoggingService.Logger)
}

// InitLoggerWithRetention initializes the global logger with a custom retention
func InitLoggerWithRetention(logDir string, retentionWeeks int) {
	DefaultLoggingService = &LoggingService{
		Logger: SetupLoggerWithLevels(logDir, retentionWeeks, slog.LevelInfo, slog.LevelInfo),
	}
	slog.SetDefault(DefaultLoggingService.Logger)
}

// InitLoggerWithRetentionAndSize initializes the global logger with custom
// retention and log file size limit
func InitLoggerWithRetentionAndSize(logDir string, retentionWeeks int, maxFileSize int64) {
	DefaultLoggingService = &LoggingService{
		Logger: SetupLoggerWithOptions(logDir, retentionWeeks, maxFileSize, slog.LevelInfo, slog.LevelInfo),
	}
	slog.SetDefault(DefaultLoggingService.Logger)
}

// InitLoggerForConfig initializes the global logger from the app configuration,
// picking handler levels per environment
func InitLoggerForConfig(logDir string, cfg *config.Config) {
	consoleLevel := GetConsoleLogLevel(cfg.Env, cfg.LogLevel, false)
	DefaultLoggingService = &LoggingService{
		Logger: SetupLoggerWithOptions(logDir, cfg.LogRetentionWeeks, cfg.MaxLogFileSize, consoleLevel, GetFileLogLevel()),
	}
	slog.SetDefault(DefaultLoggingService.Logger)
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		// Fallback to console logger if not initialized
		fallback := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		fallback.Info(msg, args...)
		return
	}
	DefaultLoggingService.Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		// Fallback to console logger if not initialized
		fallback := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		fallback.Error(msg, args...)
		return
	}
	DefaultLoggingService.Logger.Error(msg, args...)
}

func Warn(msg string, args ...any) {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		// Fallback to console logger if not initialized
		fallback := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))
		fallback.Warn(msg, args...)
		return
	}
	DefaultLoggingService.Logger.Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		// Fallback to console logger if not initialized
		fallback := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		fallback.Debug(msg, args...)
		return
	}
	DefaultLoggingService.Logger.Debug(msg, args...)
}
