// Package observability carries cycle-scoped logging context.
package observability

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/kart/internal/logfields"
)

// LogContext holds the structured logging context of a build cycle.
type LogContext struct {
	CycleID string
	Kind    string
	Stage   string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithCycle tags ctx with a cycle ID and kind (build or rebuild).
func WithCycle(ctx context.Context, cycleID, kind string) context.Context {
	lc := extractLogContext(ctx)
	lc.CycleID = cycleID
	lc.Kind = kind
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStage adds a stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	lc := extractLogContext(ctx)
	lc.Stage = stage
	return context.WithValue(ctx, logContextKey, lc)
}

// GetContext returns the structured log context carried by ctx.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func logAttrs(ctx context.Context, attrs []slog.Attr) []slog.Attr {
	lc := extractLogContext(ctx)
	out := make([]slog.Attr, 0, len(attrs)+3)
	if lc.CycleID != "" {
		out = append(out, logfields.Cycle(lc.CycleID))
	}
	if lc.Kind != "" {
		out = append(out, slog.String("kind", lc.Kind))
	}
	if lc.Stage != "" {
		out = append(out, logfields.Stage(lc.Stage))
	}
	return append(out, attrs...)
}

// InfoContext logs at info level with the context's cycle attributes.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelInfo, msg, logAttrs(ctx, attrs)...)
}

// WarnContext logs at warn level with the context's cycle attributes.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelWarn, msg, logAttrs(ctx, attrs)...)
}

// ErrorContext logs at error level with the context's cycle attributes.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelError, msg, logAttrs(ctx, attrs)...)
}

// DebugContext logs at debug level with the context's cycle attributes.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelDebug, msg, logAttrs(ctx, attrs)...)
}
