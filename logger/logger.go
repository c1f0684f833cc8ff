package logger

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface used throughout the application.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})
}

// LogrusLogger implements Logger on top of logrus.
type LogrusLogger struct {
	log *logrus.Logger
}

// NewLogrusLogger creates a logrus-backed logger at the given level.
// Unknown levels fall back to info.
func NewLogrusLogger(level string) *LogrusLogger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	return &LogrusLogger{log: l}
}

func (l *LogrusLogger) entry(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		return logrus.NewEntry(l.log)
	}
	return l.log.WithFields(logrus.Fields(fields))
}

// Debug logs at debug level.
func (l *LogrusLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	l.entry(fields).Debug(msg)
}

// Info logs at info level.
func (l *LogrusLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	l.entry(fields).Info(msg)
}

// Warn logs at warn level.
func (l *LogrusLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	l.entry(fields).Warn(msg)
}

// Error logs at error level.
func (l *LogrusLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	l.entry(fields).Error(msg)
}

// NewTestLogger returns a logger that discards all output, for use in tests.
func NewTestLogger() *LogrusLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &LogrusLogger{log: l}
}
