// Package logging carries the process logger and the claim audit trail
// through context.Context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
)

type loggerKey struct{}

type auditKey struct{}

var (
	defaultLogger atomic.Pointer[slog.Logger]
	discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func init() {
	defaultLogger.Store(New("info", os.Stderr))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		if l := defaultLogger.Load(); l != nil {
			l.Warn("invalid log level, falling back to info", "level", level)
		}
		return slog.LevelInfo
	}
}

// New creates the console logger. level is one of debug, info, warn
// (or warning) and error, case-insensitive. Unknown levels mean info.
func New(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	handler := clog.New(
		clog.WithWriter(w),
		clog.WithLevel(parseLevel(level)),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
		clog.WithAttrHook(clog.GoerrHook),
	)
	return slog.New(handler)
}

// NewAudit creates the audit trail logger. Every record is one JSON line so
// the trail can be shipped and queried as is.
func NewAudit(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if err, ok := attr.Value.Any().(error); ok {
				if ge := goerr.Unwrap(err); ge != nil {
					return slog.Group(attr.Key,
						slog.String("message", ge.Error()),
						slog.Any("values", ge.Values()),
					)
				}
				return slog.String(attr.Key, err.Error())
			}
			return attr
		},
	})
	return slog.New(handler).With("audit", true)
}

func Default() *slog.Logger {
	return defaultLogger.Load()
}

func SetDefault(logger *slog.Logger) {
	defaultLogger.Store(logger)
}

// With returns a new context with the logger attached
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// From returns the logger attached to ctx, or the default logger.
func From(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return Default()
}

// WithAudit attaches the audit trail logger. Claim analysis outcomes are
// written there in addition to the regular log.
func WithAudit(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, auditKey{}, logger)
}

// Audit returns the audit trail logger. Audit lines are dropped when none is attached.
func Audit(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(auditKey{}).(*slog.Logger); ok {
		return logger
	}
	return discardLogger
}
