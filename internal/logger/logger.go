// Package logger provides structured logging for tabsh
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

// Config represents logger configuration
type Config struct {
	Level       string
	Development bool
	Encoding    string // json or console
	// File, when set, receives log entries through a rotating writer.
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Console is where entries go when File is empty. Defaults to stderr.
	Console io.Writer
}

// Init initializes the global logger
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		globalLogger, err = New(cfg)
	})
	return err
}

// New creates a zap logger from cfg without touching the global logger.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = parsed
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var encoder zapcore.Encoder
	switch cfg.Encoding {
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log encoding: %q", cfg.Encoding)
	}

	core := zapcore.NewCore(encoder, writeSyncer(cfg), zap.NewAtomicLevelAt(level))
	logger := zap.New(core, zap.AddCaller())
	if cfg.Development {
		logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return logger, nil
}

func writeSyncer(cfg Config) zapcore.WriteSyncer {
	if cfg.File != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
		})
	}
	if cfg.Console != nil {
		return zapcore.AddSync(cfg.Console)
	}
	return zapcore.Lock(os.Stderr)
}

// Get returns the global logger
func Get() *zap.Logger {
	if globalLogger == nil {
		if err := Init(Config{Level: "warn"}); err != nil || globalLogger == nil {
			globalLogger = zap.NewNop()
		}
	}
	return globalLogger
}

// Sync flushes any buffered log entries
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
