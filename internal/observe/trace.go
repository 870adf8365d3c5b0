package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const scope = "github.com/MrWong99/irum"

// Tracer is the tracer every irum span is started from. It resolves the
// global provider on each call, so providers installed later are honoured.
func Tracer() trace.Tracer { return otel.Tracer(scope) }

// StartSpan starts a span named name beneath any span in ctx. End it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// TraceID is the hex trace id carried by ctx, or "".
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns [slog.Default], tagged with the trace_id and span_id of
// the span in ctx. Request and conversion paths log through it so their
// records can be joined with exported spans.
func Logger(ctx context.Context) *slog.Logger {
	return slog.Default().With(spanAttrs(ctx)...)
}

func spanAttrs(ctx context.Context) []any {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []any{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
}
