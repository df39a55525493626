package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger.
type Logger struct {
	*zap.Logger
}

// New creates a logger with the given level ("debug", "info", ...) and
// encoding ("console" or "json").
func New(level, encoding string) (*Logger, error) {
	var config zap.Config

	if encoding == "console" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else { // default to json
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	config.Level = logLevel

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{logger}, nil
}

// NewNop returns a logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return &Logger{zap.NewNop()}
}

// With creates a child logger with the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{l.Logger.With(fields...)}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}

// String creates a zap.Field with a string value.
func String(key, value string) zap.Field {
	return zap.String(key, value)
}

// Int creates a zap.Field with an int value.
func Int(key string, value int) zap.Field {
	return zap.Int(key, value)
}

// Bool creates a zap.Field with a bool value.
func Bool(key string, value bool) zap.Field {
	return zap.Bool(key, value)
}

// Duration creates a zap.Field with a duration value.
func Duration(key string, value time.Duration) zap.Field {
	return zap.Duration(key, value)
}

// Time creates a zap.Field with a time value.
func Time(key string, value time.Time) zap.Field {
	return zap.Time(key, value)
}

// Any creates a zap.Field with an arbitrary value.
func Any(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}

// Err creates a zap.Field from an error.
func Err(err error) zap.Field {
	return zap.Error(err)
}
