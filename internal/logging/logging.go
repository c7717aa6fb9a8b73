// Package logging provides structured logging for the screener. Console output
// goes to stderr so command output on stdout stays machine readable; an
// optional rotating file receives the same events as JSON.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig logs info and above to the console only.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Console:    true,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     30,
	}
}

// NewLogger creates a console logger with DefaultLogConfig.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a logger writing to the sinks cfg enables. With
// no sink enabled the logger discards everything.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	sinks := sinksFor(cfg)

	var w io.Writer = io.Discard
	if len(sinks) == 1 {
		w = sinks[0]
	} else if len(sinks) > 1 {
		w = zerolog.MultiLevelWriter(sinks...)
	}

	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

func sinksFor(cfg LogConfig) []io.Writer {
	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	if !cfg.File || cfg.FilePath == "" {
		return sinks
	}
	// A log directory that cannot be created leaves the console sink only.
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return sinks
	}
	return append(sinks, &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	})
}

// ParseLevel maps a level name such as "debug" or "warn" to a zerolog level.
// Empty and unknown names fall back to info.
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

type ctxKey struct{}

// LoggerKey is the context key under which WithLogger stores the logger.
var LoggerKey = ctxKey{}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithRequestID adds a request ID to the logger context.
func WithRequestID(logger zerolog.Logger, requestID string) zerolog.Logger {
	return logger.With().Str("request_id", requestID).Logger()
}

// WithSource adds a data source name to the logger context.
func WithSource(logger zerolog.Logger, source string) zerolog.Logger {
	return logger.With().Str("source", source).Logger()
}

// LogDetection logs the outcome of a pattern detection.
func LogDetection(logger zerolog.Logger, symbol, outcome string, patterns []string, observations, dropped int) {
	logger.Info().
		Str("event", "detection").
		Str("symbol", symbol).
		Str("outcome", outcome).
		Strs("patterns", patterns).
		Int("observations", observations).
		Int("dropped", dropped).
		Msg("Pattern detection completed")
}

// LogFetch logs a price series fetch against a data source.
func LogFetch(logger zerolog.Logger, source, symbol string, count int, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "fetch").
		Str("source", source).
		Str("symbol", symbol).
		Int("count", count).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Fetch failed")
	} else {
		event.Msg("Fetch completed")
	}
}
