// Package log is the process-wide structured logger for facepipe, a thin
// veneer over slog. Commands pick the level once at startup; packages log
// through the helpers without touching handler setup.
package log

import (
	"log/slog"
	"os"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Init configures the global logger at the given level. The first call wins;
// later calls are no-ops, so lazy initialization from library code cannot
// clobber the command's choice. Output is text for interactive use and JSON
// when FACEPIPE_ENV=production.
func Init(level slog.Level) {
	once.Do(func() {
		opts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
		if os.Getenv("FACEPIPE_ENV") == "production" {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		}
		logger = slog.New(handler)
		slog.SetDefault(logger)
	})
}

// ParseLevel maps a level name ("debug", "info", "warn", "error", any case)
// to its slog value. Unknown names fall back to info.
func ParseLevel(name string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// L returns the global logger, initializing it at info level if no command
// configured it.
func L() *slog.Logger {
	if logger == nil {
		Init(slog.LevelInfo)
	}
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
