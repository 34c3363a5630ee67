// Package logging wraps slog with trace/span correlation, so a log line
// emitted under a context that carries a span can be tied back to that
// span.
package logging

import (
	"context"
	"io"
	"log/slog"

	"protoflight/telemetry/tracing"
)

// Logger is the minimal interface the runtime core logs through.
type Logger interface {
	InfoCtx(ctx context.Context, msg string, attrs ...any)
	WarnCtx(ctx context.Context, msg string, attrs ...any)
	ErrorCtx(ctx context.Context, msg string, attrs ...any)
}

type correlatedLogger struct{ base *slog.Logger }

// New wraps base (or slog.Default if nil) with trace/span correlation.
func New(base *slog.Logger) Logger {
	if base == nil {
		base = slog.Default()
	}
	return &correlatedLogger{base: base}
}

// NewDiscard returns a Logger that drops everything, mirroring
// metrics.NewNoopProvider for modules (em) that only want to log when a
// caller has explicitly wired one in.
func NewDiscard() Logger {
	return &correlatedLogger{base: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *correlatedLogger) InfoCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.InfoContext(ctx, msg, l.correlate(ctx, attrs)...)
}

func (l *correlatedLogger) WarnCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.WarnContext(ctx, msg, l.correlate(ctx, attrs)...)
}

func (l *correlatedLogger) ErrorCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.ErrorContext(ctx, msg, l.correlate(ctx, attrs)...)
}

func (l *correlatedLogger) correlate(ctx context.Context, attrs []any) []any {
	traceID, spanID := tracing.ExtractIDs(ctx)
	if traceID == "" && spanID == "" {
		return attrs
	}
	return append(attrs, slog.String("trace_id", traceID), slog.String("span_id", spanID))
}
