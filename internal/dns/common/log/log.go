// Package log wraps zap behind a small field-map interface shared by every
// layer of the decoy server.
package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface the decoy depends on.
type Logger interface {
	Debug(fields map[string]any, msg string)
	Info(fields map[string]any, msg string)
	Warn(fields map[string]any, msg string)
	Error(fields map[string]any, msg string)
}

var global Logger = build(false, zapcore.InfoLevel, "")

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) { global = l }

// GetLogger returns the process-wide logger.
func GetLogger() Logger { return global }

// Configure installs a logger for env and level as the process-wide logger.
func Configure(env, level string) error {
	l, err := New(env, level, "")
	if err != nil {
		return err
	}
	global = l
	return nil
}

// New builds a standalone logger. "prod" writes JSON; any other env writes
// colored console lines. A non-empty name tags every entry, which keeps the
// screen telemetry sink apart from operational logs.
func New(env, level, name string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return build(env != "prod", lvl, name), nil
}

// Sync flushes the process-wide logger if it buffers.
func Sync() error {
	if s, ok := global.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func Debug(fields map[string]any, msg string) { global.Debug(fields, msg) }
func Info(fields map[string]any, msg string)  { global.Info(fields, msg) }
func Warn(fields map[string]any, msg string)  { global.Warn(fields, msg) }
func Error(fields map[string]any, msg string) { global.Error(fields, msg) }

type zapLogger struct {
	base *zap.Logger
}

func build(dev bool, level zapcore.Level, name string) Logger {
	cfg := zapConfig(dev, level)
	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	if name != "" {
		base = base.Named(name)
	}
	return &zapLogger{base: base}
}

// zapConfig never samples: the screen sink logs one line per query under the
// event type as message, and every one of them must reach the terminal.
func zapConfig(dev bool, level zapcore.Level) zap.Config {
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func (l *zapLogger) Debug(fields map[string]any, msg string) { l.base.Debug(msg, toZap(fields)...) }
func (l *zapLogger) Info(fields map[string]any, msg string)  { l.base.Info(msg, toZap(fields)...) }
func (l *zapLogger) Warn(fields map[string]any, msg string)  { l.base.Warn(msg, toZap(fields)...) }
func (l *zapLogger) Error(fields map[string]any, msg string) { l.base.Error(msg, toZap(fields)...) }

func (l *zapLogger) Sync() error { return l.base.Sync() }

func toZap(m map[string]any) []zap.Field {
	fields := make([]zap.Field, 0, len(m))
	for k, v := range m {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

type noopLogger struct{}

func (noopLogger) Debug(map[string]any, string) {}
func (noopLogger) Info(map[string]any, string)  {}
func (noopLogger) Warn(map[string]any, string)  {}
func (noopLogger) Error(map[string]any, string) {}

// NewNoopLogger returns a Logger that discards everything.
func NewNoopLogger() Logger { return noopLogger{} }
