// Package logging provides the structured logger used across the
// synchronization core. Every component takes a Logger via functional
// option rather than depending on zap directly.
package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured logging field, decoupled from zap's own type
// so call sites never import zap directly.
type Field = zapcore.Field

func String(key, value string) Field        { return zap.String(key, value) }
func Int(key string, value int) Field       { return zap.Int(key, value) }
func Int64(key string, v int64) Field       { return zap.Int64(key, v) }
func Bool(key string, value bool) Field     { return zap.Bool(key, value) }
func Duration(key string, v time.Duration) Field { return zap.Duration(key, v) }
func Time(key string, v time.Time) Field    { return zap.Time(key, v) }
func Err(err error) Field                   { return zap.Error(err) }
func Any(key string, value interface{}) Field { return zap.Any(key, value) }

// Logger is the structured logging interface used throughout the
// synchronization core.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type zapLogger struct {
	l *zap.Logger
}

// New builds a production zap-backed logger with JSON output.
func New() Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a no-op core rather than panic at import time.
		l = zap.NewNop()
	}
	return &zapLogger{l: l}
}

// NewDevelopment builds a human-readable console logger, used by the
// demo binary and by tests that want readable failure output.
func NewDevelopment() Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.OutputPaths = []string{"stdout"}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	return &zapLogger{l: l}
}

// Nop returns a logger that discards everything; used as the default
// for components constructed without an explicit WithLogger option.
func Nop() Logger {
	return &zapLogger{l: zap.NewNop()}
}

func (z *zapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, fields...) }
func (z *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}
