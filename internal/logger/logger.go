// Package logger wraps zap behind a small interface so packages do not depend on zap directly.
package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
}

type Field struct {
	zap.Field
}

type zapLogger struct {
	z *zap.Logger
}

// New builds a logger for the given environment. "dev" logs human readable
// console lines, everything else logs JSON.
func New(environment, level, service string) Logger {
	var encoder zapcore.Encoder
	if environment == "dev" {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "time"
		cfg.MessageKey = "msg"
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeDuration = zapcore.MillisDurationEncoder
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(parseLevel(level)))
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zap.ErrorLevel)).
		With(zap.String("service", service), zap.String("environment", environment))

	return &zapLogger{z: z}
}

// NewWithCore wraps an existing zap core, e.g. an observer in tests.
func NewWithCore(core zapcore.Core) Logger {
	return &zapLogger{z: zap.New(core)}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &zapLogger{z: zap.NewNop()}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, unwrap(fields)...) }
func (l *zapLogger) Info(msg string, fields ...Field) { l.z.Info(msg, unwrap(fields)...) }
func (l *zapLogger) Warn(msg string, fields ...Field) { l.z.Warn(msg, unwrap(fields)...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, unwrap(fields)...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(unwrap(fields)...)}
}

func (l *zapLogger) Sync() error {
	return l.z.Sync()
}

func unwrap(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = f.Field
	}
	return out
}

func String(key, value string) Field { return Field{zap.String(key, value)} }
func Int(key string, value int) Field { return Field{zap.Int(key, value)} }
func Int64(key string, value int64) Field { return Field{zap.Int64(key, value)} }
func Float64(key string, value float64) Field { return Field{zap.Float64(key, value)} }
func Bool(key string, value bool) Field { return Field{zap.Bool(key, value)} }
func Duration(key string, d time.Duration) Field { return Field{zap.Duration(key, d)} }
func Error(err error) Field { return Field{zap.Error(err)} }
func Any(key string, value interface{}) Field { return Field{zap.Any(key, value)} }
