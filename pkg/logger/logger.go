package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog with a level configured from a plain string so callers
// don't deal with slog.Level values directly.
type Logger struct {
	*slog.Logger
}

func NewLogger(level string) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return &Logger{slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
