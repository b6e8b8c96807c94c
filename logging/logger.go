// Package logging sets up log/slog for the API: text on the console, JSON
// in weekly rotating files, and package-level helpers that work before
// InitLogger is called.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Options configure InitLogger.
type Options struct {
	Dir            string // empty disables file logging
	ConsoleLevel   slog.Level
	FileLevel      slog.Level
	RetentionWeeks int
	MaxFileSize    int64 // bytes, 0 means unlimited
}

type LoggingService struct {
	Logger *slog.Logger
	file   *RotatingLogger
}

var DefaultLoggingService *LoggingService

var fallback = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// InitLogger replaces the global logger. When the log directory cannot be
// used the service logs to the console only.
func InitLogger(opts Options) {
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: opts.ConsoleLevel})

	service := &LoggingService{Logger: slog.New(console)}
	if opts.Dir != "" {
		file, err := NewRotatingLogger(opts.Dir, opts.RetentionWeeks, opts.MaxFileSize)
		if err != nil {
			service.Logger.Error("File logging disabled", "dir", opts.Dir, "error", err)
		} else {
			service.file = file
			service.Logger = slog.New(&multiHandler{handlers: []slog.Handler{
				console,
				slog.NewJSONHandler(file, &slog.HandlerOptions{Level: opts.FileLevel}),
			}})
		}
	}

	if previous := DefaultLoggingService; previous != nil {
		previous.Close()
	}
	DefaultLoggingService = service
	slog.SetDefault(service.Logger)
}

// Close flushes and closes the log file, if any.
func (s *LoggingService) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Close closes the global logging service.
func Close() error {
	return DefaultLoggingService.Close()
}

// ParseLevel reads debug, info, warn (or warning) and error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ConsoleLevel picks the console level: an explicit LOG_LEVEL wins,
// otherwise tests only print errors and prod/staging only warnings.
func ConsoleLevel(env, configured string) slog.Level {
	if configured != "" {
		if level, err := ParseLevel(configured); err == nil {
			return level
		}
	}
	switch strings.ToLower(env) {
	case "test":
		return slog.LevelError
	case "prod", "staging":
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return fallback
	}
	return DefaultLoggingService.Logger
}

func Info(msg string, args ...any) {
	logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	logger().Debug(msg, args...)
}

// multiHandler fans records out to every handler that accepts the level
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
