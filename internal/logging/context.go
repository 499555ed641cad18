package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	definitionIDKey
	surfaceKey
)

// WithSessionID returns a context with the designer session ID set.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// WithDefinitionID returns a context with the workflow definition ID set.
func WithDefinitionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, definitionIDKey, id)
}

// WithSurface returns a context with the render surface handle set.
func WithSurface(ctx context.Context, handle string) context.Context {
	return context.WithValue(ctx, surfaceKey, handle)
}

// SessionID extracts the session ID from the context, or "" if absent.
func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// DefinitionID extracts the definition ID from the context, or "" if absent.
func DefinitionID(ctx context.Context) string {
	v, _ := ctx.Value(definitionIDKey).(string)
	return v
}

// Surface extracts the surface handle from the context, or "" if absent.
func Surface(ctx context.Context) string {
	v, _ := ctx.Value(surfaceKey).(string)
	return v
}

// WithIDs sets every correlation value at once. Empty values are skipped.
func WithIDs(ctx context.Context, sessionID, definitionID, surface string) context.Context {
	for key, v := range map[ctxKey]string{sessionIDKey: sessionID, definitionIDKey: definitionID, surfaceKey: surface} {
		if v != "" {
			ctx = context.WithValue(ctx, key, v)
		}
	}
	return ctx
}

// correlated lists the context values copied onto log records, in output order.
var correlated = []struct {
	attr string
	key  ctxKey
}{
	{"session_id", sessionIDKey},
	{"definition_id", definitionIDKey},
	{"surface", surfaceKey},
}

func attrs(ctx context.Context) []slog.Attr {
	var out []slog.Attr
	for _, c := range correlated {
		if v, _ := ctx.Value(c.key).(string); v != "" {
			out = append(out, slog.String(c.attr, v))
		}
	}
	return out
}

// LogWith binds the correlation values of ctx to logger, for code that logs
// without passing a context.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	a := attrs(ctx)
	if len(a) == 0 {
		return logger
	}
	args := make([]any, len(a))
	for i := range a {
		args[i] = a[i]
	}
	return logger.With(args...)
}

// CorrelationHandler adds the correlation values of the record's context to
// every record, so logger.InfoContext(ctx, ...) carries the session,
// definition and surface of the caller.
type CorrelationHandler struct {
	inner slog.Handler
}

func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(attrs(ctx)...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// NewLogger builds the process logger: a text or JSON handler on w wrapped
// in a CorrelationHandler.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var inner slog.Handler
	if strings.EqualFold(format, "json") {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewCorrelationHandler(inner))
}
