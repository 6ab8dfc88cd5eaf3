// Package logger carries request-scoped log fields through context.Context.
package logger

import (
	"context"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"go.opentelemetry.io/otel/trace"
)

type contextKey int

const (
	fieldsKey contextKey = iota
	loggerKey
)

// Field names shared by the middleware chain and the handlers.
const (
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
	FieldSession   = "session"
)

// fields 保持插入顺序，便于日志输出稳定。
type fields struct {
	keys   []string
	values map[string]any
}

func (f *fields) clone() *fields {
	out := &fields{
		keys:   make([]string, len(f.keys), len(f.keys)+2),
		values: make(map[string]any, len(f.values)+2),
	}
	copy(out.keys, f.keys)
	for k, v := range f.values {
		out.values[k] = v
	}
	return out
}

func (f *fields) set(key string, value any) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func fromContext(ctx context.Context) *fields {
	if f, ok := ctx.Value(fieldsKey).(*fields); ok {
		return f
	}
	return &fields{values: map[string]any{}}
}

// WithFields 以键值对形式追加字段，奇数个参数时忽略最后一个，非字符串键被跳过。
func WithFields(ctx context.Context, keysAndValues ...any) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}
	f := fromContext(ctx).clone()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok && key != "" {
			f.set(key, keysAndValues[i+1])
		}
	}
	return context.WithValue(ctx, fieldsKey, f)
}

// WithRequestID adds request_id to the context fields.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return WithFields(ctx, FieldRequestID, requestID)
}

// WithSession adds the conversation session to the context fields.
func WithSession(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return WithFields(ctx, FieldSession, sessionID)
}

// ExtractOpenTelemetryFields copies trace_id and span_id of the active span.
// Contexts without a valid span are returned unchanged.
func ExtractOpenTelemetryFields(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ctx
	}
	return WithFields(ctx,
		FieldTraceID, sc.TraceID().String(),
		FieldSpanID, sc.SpanID().String(),
	)
}

// ContextFields returns the stored fields as a key-value slice.
func ContextFields(ctx context.Context) []any {
	f := fromContext(ctx)
	if len(f.keys) == 0 {
		return nil
	}
	out := make([]any, 0, len(f.keys)*2)
	for _, k := range f.keys {
		out = append(out, k, f.values[k])
	}
	return out
}

// GetLogger returns a logger carrying every context field.
// A logger stored with WithLogger takes precedence.
func GetLogger(ctx context.Context) core.Logger {
	if l, ok := ctx.Value(loggerKey).(core.Logger); ok {
		return l
	}
	base := logger.Global()
	if kv := ContextFields(ctx); len(kv) > 0 {
		return base.With(kv...)
	}
	return base
}

// WithLogger stores a pre-configured logger in ctx.
func WithLogger(ctx context.Context, l core.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}
