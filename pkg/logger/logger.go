package logger

import (
	"context"
)

type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Fatal(msg string, keysAndValues ...any)
}

type noOpLogger struct{}

func (n *noOpLogger) Debug(msg string, keysAndValues ...any) {}
func (n *noOpLogger) Info(msg string, keysAndValues ...any)  {}
func (n *noOpLogger) Warn(msg string, keysAndValues ...any)  {}
func (n *noOpLogger) Error(msg string, keysAndValues ...any) {}
func (n *noOpLogger) Fatal(msg string, keysAndValues ...any) {}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &noOpLogger{}
}

type contextKey string

const loggerKey contextKey = "logger"

func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return &noOpLogger{}
}

type withLogger interface {
	With(keysAndValues ...any) Logger
}

// With returns a logger that adds keysAndValues to every entry.
func With(l Logger, keysAndValues ...any) Logger {
	if wl, ok := l.(withLogger); ok {
		return wl.With(keysAndValues...)
	}
	return &fieldLogger{next: l, fields: keysAndValues}
}

type fieldLogger struct {
	next   Logger
	fields []any
}

func (f *fieldLogger) merge(keysAndValues []any) []any {
	return append(append(make([]any, 0, len(f.fields)+len(keysAndValues)), f.fields...), keysAndValues...)
}

func (f *fieldLogger) Debug(msg string, keysAndValues ...any) {
	f.next.Debug(msg, f.merge(keysAndValues)...)
}
func (f *fieldLogger) Info(msg string, keysAndValues ...any) {
	f.next.Info(msg, f.merge(keysAndValues)...)
}
func (f *fieldLogger) Warn(msg string, keysAndValues ...any) {
	f.next.Warn(msg, f.merge(keysAndValues)...)
}
func (f *fieldLogger) Error(msg string, keysAndValues ...any) {
	f.next.Error(msg, f.merge(keysAndValues)...)
}
func (f *fieldLogger) Fatal(msg string, keysAndValues ...any) {
	f.next.Fatal(msg, f.merge(keysAndValues)...)
}
