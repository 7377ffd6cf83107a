// Package logger provides a structured, levelled logger built on log/slog.
//
// The key extension over plain slog is WithCtx: it returns the logger that
// middleware stored in the context, so every log line from a handler carries
// the request ID:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("sync triggered", "async", true)
//	// → time=... level=INFO msg="sync triggered" request_id=a1b2c3d4 async=true
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/shashiranjanraj/catalogsync/config"
)

var L *slog.Logger

func init() {
	L = New(os.Stdout, config.AppEnv(), config.LogLevel())
	slog.SetDefault(L)
}

// New builds a logger for env. Production environments get JSON at INFO,
// everything else gets human-readable text at DEBUG. level overrides the
// environment default when set ("debug", "info", "warn", "error").
func New(w io.Writer, env, level string) *slog.Logger {
	production := env == "production" || env == "prod"

	var lvl slog.Level = slog.LevelDebug
	if production {
		lvl = slog.LevelInfo
	}
	if level != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(level)); err == nil {
			lvl = parsed
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if production {
		return slog.New(slog.NewJSONHandler(w, opts)) // structured JSON for log aggregators
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ─────────────────────────────────────────────
// Context-aware logger
// ─────────────────────────────────────────────

type ctxKey struct{}

// WithCtx returns the *slog.Logger stored in ctx by InjectLogger, or the
// base logger when none is present.
func WithCtx(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// FromCtx returns the logger stored by InjectLogger, if any.
func FromCtx(ctx context.Context) (*slog.Logger, bool) {
	log, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	return log, ok && log != nil
}

// InjectLogger stores a *slog.Logger (pre-tagged with request_id) into ctx.
// Called by the Logger middleware.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// Discard is a logger that drops everything. Handy for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs at INFO level.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs at WARN level.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs at ERROR level.
func Error(msg string, args ...any) { L.Error(msg, args...) }
