// Package logger builds the process-wide zap logger from config.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ShayCichocki/lincoln/internal/config"
)

// Logger wraps a sugared zap logger.
type Logger struct {
	*zap.SugaredLogger
}

// New builds a Logger. Unknown levels fall back to info and unknown encodings to console.
func New(cfg config.LoggingConfig) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoding := cfg.Encoding
	if encoding != "json" {
		encoding = "console"
	}

	levelEncoder := zapcore.CapitalColorLevelEncoder
	if encoding == "json" {
		levelEncoder = zapcore.LowercaseLevelEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	errOutputs := cfg.ErrorOutputPaths
	if len(errOutputs) == 0 {
		errOutputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		OutputPaths:      outputs,
		ErrorOutputPaths: errOutputs,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    levelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
			EncodeName:     zapcore.FullNameEncoder,
		},
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Named returns a child logger for a component.
func (l *Logger) Named(name string) *zap.SugaredLogger {
	return l.SugaredLogger.Named(name)
}

// Sync flushes buffered entries. Errors from syncing terminals are ignored.
func (l *Logger) Sync() error {
	_ = l.SugaredLogger.Sync()
	return nil
}
