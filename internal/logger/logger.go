// Package logger provides the structured logger shared by every component.
// Lines go to stdout as slog text; the level is fixed at startup from the
// -log-level flag.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the logging interface the rest of the application depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogLogger writes slog text lines to stdout.
type SlogLogger struct {
	logger *slog.Logger
}

// New creates a logger at the named level. Unrecognized names, including the
// empty string, fall back to info.
func New(level string) *SlogLogger {
	return &SlogLogger{
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(level),
		})),
	}
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

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}
