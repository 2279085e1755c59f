// Package observability defines logging and metrics hooks.
package observability

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger provides structured logging hooks.
type Logger interface {
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// LogrusLogger logs JSON records through logrus.
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger constructs a logrus-backed logger writing to w. An
// unparseable level falls back to logrus defaults.
func NewLogrusLogger(w io.Writer, level string) *LogrusLogger {
	if w == nil {
		w = io.Discard
	}
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.JSONFormatter{})
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
	return &LogrusLogger{logger: logger}
}

// Info logs an info message.
func (l *LogrusLogger) Info(msg string, fields map[string]any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.WithFields(logrus.Fields(fields)).Info(msg)
}

// Warn logs a warning message.
func (l *LogrusLogger) Warn(msg string, fields map[string]any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.WithFields(logrus.Fields(fields)).Warn(msg)
}

// Error logs an error message.
func (l *LogrusLogger) Error(msg string, fields map[string]any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.WithFields(logrus.Fields(fields)).Error(msg)
}

// NoopLogger discards all log output.
type NoopLogger struct{}

// Info discards the message.
func (NoopLogger) Info(string, map[string]any) {}

// Warn discards the message.
func (NoopLogger) Warn(string, map[string]any) {}

// Error discards the message.
func (NoopLogger) Error(string, map[string]any) {}
