package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for minutespa components.
const defaultTracerName = "minutespa"

// Tracer returns the named tracer from the global provider, or the
// "minutespa" tracer when name is empty. Without a configured provider the
// global tracer is a no-op.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = defaultTracerName
	}
	return otel.Tracer(name)
}

// StartNavigation starts a span for a navigation pass to path.
func StartNavigation(ctx context.Context, tracer trace.Tracer, path string, pushed bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "minutespa.navigate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("minutespa.path", path),
			attribute.Bool("minutespa.history_push", pushed),
		),
	)
}

// StartRequest starts a server span for an HTTP request, continuing any
// trace propagated in the request headers.
func StartRequest(ctx context.Context, tracer trace.Tracer, method, target string, header propagation.TextMapCarrier) (context.Context, trace.Span) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, header)
	return tracer.Start(ctx, "minutespa.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.target", target),
		),
	)
}

// EndSpan records the outcome and error (if any) and ends the span.
func EndSpan(span trace.Span, outcome string, err error) {
	if outcome != "" {
		span.SetAttributes(attribute.String("minutespa.outcome", outcome))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
