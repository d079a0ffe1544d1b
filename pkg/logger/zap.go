package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/jaennil/guide_helper/backend/terrain/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ZapLogger writes sugared key/value entries to a zap core. Loggers derived
// with With share the level of the logger they came from.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

var _ Logger = (*ZapLogger)(nil)

// NewZapLogger writes to stderr. An unknown level falls back to info and an
// unknown format to console; both are reported through the new logger.
func NewZapLogger(cfg config.Logger) *ZapLogger {
	level, levelErr := ParseLevel(cfg.Level)
	atomic := zap.NewAtomicLevelAt(level)

	encoder, formatErr := newEncoder(cfg.Format)
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), atomic)

	l := newZapLogger(core, atomic)
	if levelErr != nil {
		l.Warn("using info log level", "error", levelErr)
	}
	if formatErr != nil {
		l.Warn("using console log format", "error", formatErr)
	}
	return l
}

// NewZapLoggerWithCore is NewZapLogger for an existing core, whose own level
// still applies on top of the returned logger's.
func NewZapLoggerWithCore(core zapcore.Core, level zapcore.Level) *ZapLogger {
	return newZapLogger(core, zap.NewAtomicLevelAt(level))
}

func newZapLogger(core zapcore.Core, level zap.AtomicLevel) *ZapLogger {
	gated := &levelCore{Core: core, level: level}
	base := zap.New(gated, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	return &ZapLogger{sugar: base.Sugar(), level: level}
}

// ParseLevel accepts zap level names in any case. An empty string is info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	switch format {
	case FormatJSON:
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg), nil
	case "", FormatConsole:
		return zapcore.NewConsoleEncoder(consoleEncoderConfig()), nil
	}
	return zapcore.NewConsoleEncoder(consoleEncoderConfig()), fmt.Errorf("unknown log format %q", format)
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.CallerKey = "caller"
	return cfg
}

// levelCore filters entries by an atomic level before handing them to the
// wrapped core.
type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c *levelCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l) && c.Core.Enabled(l)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c *levelCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.level.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// Level reports the current minimum level.
func (l *ZapLogger) Level() zapcore.Level {
	return l.level.Level()
}

// SetLevel changes the level of l and of every logger derived from it.
func (l *ZapLogger) SetLevel(level zapcore.Level) {
	l.level.SetLevel(level)
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) { l.sugar.Debugw(msg, keysAndValues...) }
func (l *ZapLogger) Info(msg string, keysAndValues ...any)  { l.sugar.Infow(msg, keysAndValues...) }
func (l *ZapLogger) Warn(msg string, keysAndValues ...any)  { l.sugar.Warnw(msg, keysAndValues...) }
func (l *ZapLogger) Error(msg string, keysAndValues ...any) { l.sugar.Errorw(msg, keysAndValues...) }
func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) { l.sugar.Fatalw(msg, keysAndValues...) }

func (l *ZapLogger) With(keysAndValues ...any) Logger {
	return &ZapLogger{sugar: l.sugar.With(keysAndValues...), level: l.level}
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func (l *ZapLogger) Sync() error {
	err := l.sugar.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}
