package sigptr

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/sigptr/word"
)

// Logger wraps slog.Logger with sigptr-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogMake logs an allocating construction.
func (l *Logger) LogMake(ctx context.Context, typ string, addr uintptr, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "make failed",
			"type", typ,
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "make completed",
			"type", typ,
			"addr", addr,
			"size", size,
		)
	}
}

// LogDestroy logs a destroy that released memory.
func (l *Logger) LogDestroy(ctx context.Context, typ string, addr uintptr, err error) {
	if err != nil {
		l.ErrorContext(ctx, "destroy failed",
			"type", typ,
			"addr", addr,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "destroy completed",
			"type", typ,
			"addr", addr,
		)
	}
}

// LogTamper logs a pointer that failed validation.
func (l *Logger) LogTamper(ctx context.Context, op, typ string, w word.Word, reason error) {
	l.WarnContext(ctx, "pointer failed validation",
		"op", op,
		"type", typ,
		"word", w.String(),
		"reason", reason,
	)
}

// LogClose logs a heap shutdown.
func (l *Logger) LogClose(ctx context.Context, live uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "heap close failed",
			"live", live,
			"error", err,
		)
	} else if live > 0 {
		l.WarnContext(ctx, "heap closed with live allocations",
			"live", live,
		)
	} else {
		l.InfoContext(ctx, "heap closed")
	}
}
