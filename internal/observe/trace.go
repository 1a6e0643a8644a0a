package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the chattrigger tracer.
const tracerName = "github.com/MrWong99/chattrigger"

// Tracer returns the package-level [trace.Tracer]. It resolves the globally
// registered [trace.TracerProvider] on every call so tests can swap it.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartEventSpan starts an internal span for one inbound chat event. The
// session and event kind are attached as span attributes.
func StartEventSpan(ctx context.Context, session, event string) (context.Context, trace.Span) {
	return StartSpan(ctx, "event "+event,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("chattrigger.session", session),
			attribute.String("chattrigger.event", event),
		),
	)
}

// CorrelationID extracts the trace ID from the span context in ctx. Returns
// the empty string when ctx carries no valid trace ID.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns base enriched with trace_id and span_id from the span
// context in ctx. A nil base falls back to [slog.Default].
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return base
	}
	return base.With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
