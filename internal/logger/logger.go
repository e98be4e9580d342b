// Package logger holds the process-wide structured logger. The CLI prints
// its actual results on stdout, so log records go to stderr as JSON lines.
package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// Init builds the shared logger exactly once. The level defaults to Info
// and drops to Debug when BIB_DEBUG is set in the environment.
func Init() {
	once.Do(func() {
		level := slog.LevelInfo
		if os.Getenv("BIB_DEBUG") != "" {
			level = slog.LevelDebug
		}
		defaultLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(defaultLogger)
	})
}

// Get returns the shared logger, initializing it if needed.
func Get() *slog.Logger {
	Init()
	return defaultLogger
}

// Info logs an informational message using the shared logger.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Warn logs a warning message using the shared logger.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs an error message using the shared logger, appending err as a
// structured attribute when non-nil.
func Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	Get().Error(msg, args...)
}

// Debug logs a debug message using the shared logger.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}
