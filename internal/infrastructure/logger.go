package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sbpcli/internal/config"
)

var (
	loggerMu   sync.Mutex
	appLogger  *slog.Logger
	appLogFile *os.File
)

// InitializeLogger builds the application logger from the logging
// config and installs it as the slog default. Output is structured
// JSON; depending on cfg.Output it goes to stdout, a log file, or both.
// Calling it again replaces the previous logger and closes any log file
// the previous call opened.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	writer, file, err := resolveWriter(cfg)
	if err != nil {
		return nil, err
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:     levelFromString(cfg.Level),
		AddSource: true,
	})

	if appLogFile != nil {
		appLogFile.Close()
	}
	appLogFile = file
	appLogger = slog.New(&tracedHandler{inner: handler})
	slog.SetDefault(appLogger)
	return appLogger, nil
}

// GetLogger returns the application logger, or slog.Default before
// InitializeLogger has run.
func GetLogger() *slog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if appLogger == nil {
		return slog.Default()
	}
	return appLogger
}

// CloseLogFile closes the log file opened by InitializeLogger, if any.
// Called during graceful shutdown so buffered records reach disk.
func CloseLogFile() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if appLogFile == nil {
		return nil
	}
	err := appLogFile.Close()
	appLogFile = nil
	return err
}

// resolveWriter maps the configured output mode to an io.Writer,
// opening the log file when the mode requires one.
func resolveWriter(cfg config.LoggingConfig) (io.Writer, *os.File, error) {
	switch strings.ToLower(cfg.Output) {
	case "file":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return file, file, nil
	case "both":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return io.MultiWriter(os.Stdout, file), file, nil
	default:
		return os.Stdout, nil, nil
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

// levelFromString parses a config level name, defaulting to info.
func levelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// tracedHandler decorates every record with the trace ID carried by the
// logging call's context, so correlation works without each call site
// attaching the attribute itself.
type tracedHandler struct {
	inner slog.Handler
}

func (h *tracedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *tracedHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	return h.inner.Handle(ctx, r)
}

func (h *tracedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &tracedHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *tracedHandler) WithGroup(name string) slog.Handler {
	return &tracedHandler{inner: h.inner.WithGroup(name)}
}

// resetLoggerForTesting clears the package state between tests.
func resetLoggerForTesting() {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if appLogFile != nil {
		appLogFile.Close()
		appLogFile = nil
	}
	appLogger = nil
}
