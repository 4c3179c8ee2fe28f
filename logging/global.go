package logging

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

type LoggingService struct {
	Logger   *slog.Logger
	rotating *RotatingLogger
}

var (
	defaultService atomic.Pointer[LoggingService]
	serviceMu      sync.Mutex
)

// InitLogger initializes the global logger instance, replacing any previous one
func InitLogger(opts Options) {
	logger, rotating := newLogger(opts)

	serviceMu.Lock()
	previous := defaultService.Swap(&LoggingService{Logger: logger, rotating: rotating})
	serviceMu.Unlock()

	slog.SetDefault(logger)

	if previous != nil && previous.rotating != nil {
		_ = previous.rotating.Close()
	}
}

// InitConsoleLogger initializes the global logger without a log file
func InitConsoleLogger(level slog.Level) {
	InitLogger(Options{Level: level})
}

// Close flushes and closes the log file of the global logger, if any
func Close() error {
	serviceMu.Lock()
	defer serviceMu.Unlock()

	s := defaultService.Load()
	if s == nil || s.rotating == nil {
		return nil
	}
	err := s.rotating.Close()
	s.rotating = nil
	return err
}

// Logger returns the global logger, or a stderr fallback when none is initialized
func Logger() *slog.Logger {
	return current(slog.LevelInfo)
}

func current(level slog.Level) *slog.Logger {
	if s := defaultService.Load(); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	current(slog.LevelInfo).Info(msg, args...)
}

func Error(msg string, args ...any) {
	current(slog.LevelError).Error(msg, args...)
}

func Warn(msg string, args ...any) {
	current(slog.LevelWarn).Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	current(slog.LevelDebug).Debug(msg, args...)
}
