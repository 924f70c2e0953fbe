package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/lexivox"

// Tracer is the lexivox tracer of the global TracerProvider. It follows
// later otel.SetTracerProvider calls.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on [Tracer]. End it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID is the trace ID of the span in ctx, or "" outside a span.
// It ties the log lines of one spoken answer together.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// spanAttrs returns trace_id and span_id for the span in ctx, or nil.
func spanAttrs(ctx context.Context) []slog.Attr {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return nil
	}
	return []slog.Attr{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
}

// Logger is slog.Default carrying the span ids of ctx.
func Logger(ctx context.Context) *slog.Logger {
	attrs := spanAttrs(ctx)
	if attrs == nil {
		return slog.Default()
	}
	return slog.New(slog.Default().Handler().WithAttrs(attrs))
}

// ContextHandler stamps the span ids of the record's context onto every
// record, so slog.InfoContext needs no [Logger] call. main installs it
// around the configured handler.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler wraps h.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(spanAttrs(ctx)...)
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewContextHandler(h.Handler.WithAttrs(attrs))
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return NewContextHandler(h.Handler.WithGroup(name))
}
