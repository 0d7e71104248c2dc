// Package logging provides a small abstraction over slog so the memory
// subsystem can depend on a minimal interface (Logger) while callers plug in
// any structured logger. Background components (ingestion, compaction, index
// maintenance) log through this interface only; nothing in the library writes
// to stdout directly.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger defines the minimal logging interface used throughout recall.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefault creates a Logger writing JSON at info level to stderr.
// This is what core.Client uses when no logger is injected.
func NewDefault() Logger {
	return NewWriter(os.Stderr, slog.LevelInfo)
}

// NewWriter creates a JSON Logger writing to w at the given level.
func NewWriter(w io.Writer, level slog.Level) Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return NewSlogAdapter(slog.New(handler))
}

// NopLogger discards all log messages. Used in tests and by callers that
// want the memory subsystem to be completely silent.
type NopLogger struct{}

// Debug logs a debug message.
func (NopLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NopLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NopLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NopLogger) Error(string, ...any) {}
