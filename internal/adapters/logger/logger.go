// Package logger implements a logging adapter using log/slog.
package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.trai.ch/forge/internal/core/ports"
)

// Logger implements ports.Logger using log/slog.
type Logger struct {
	logger *slog.Logger
	mu     sync.RWMutex
	output io.Writer
}

// New creates a new Logger instance writing to stderr.
func New() ports.Logger {
	handler := NewPrettyHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &Logger{
		logger: slog.New(handler),
		output: os.Stderr,
	}
}

// SetOutput updates the logger's output destination. If w is nil, stderr is
// used.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w == nil {
		w = os.Stderr
	}
	l.output = w
	l.logger = slog.New(NewPrettyHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Info(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Warn(msg)
}

// Error logs an error with its cause chain rendered hierarchically.
func (l *Logger) Error(err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err == nil {
		return
	}

	messages := collectMessages(err)

	var formatted []string
	for i, msg := range messages {
		lines := strings.Split(msg, "\n")
		switch i {
		case 0:
			formatted = append(formatted, "Error: "+lines[0])
			for _, line := range lines[1:] {
				formatted = append(formatted, "       "+line)
			}
		default:
			if i == 1 {
				formatted = append(formatted, "", "  Caused by:")
			}
			formatted = append(formatted, "    → "+lines[0])
			for _, line := range lines[1:] {
				formatted = append(formatted, "      "+line)
			}
		}
	}

	l.logger.Error(strings.Join(formatted, "\n"))
}

// collectMessages splits a wrapped error into per-level messages. Each level
// renders its own message by trimming the cause's rendering off its Error()
// string; levels that add no message of their own are skipped.
func collectMessages(err error) []string {
	var messages []string
	for current := err; current != nil; current = errors.Unwrap(current) {
		msg := current.Error()
		if next := errors.Unwrap(current); next != nil {
			msg = strings.TrimSuffix(msg, next.Error())
			msg = strings.TrimSuffix(msg, ": ")
		}
		if msg != "" {
			messages = append(messages, msg)
		}
	}
	return messages
}
