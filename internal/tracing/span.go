package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func orNoop(tracer trace.Tracer) trace.Tracer {
	if tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return tracer
}

// StartSearchSpan starts the root span of one search run.
func StartSearchSpan(ctx context.Context, tracer trace.Tracer, strategy, runID string) (context.Context, trace.Span) {
	ctx, span := orNoop(tracer).Start(ctx, "search "+strategy)
	span.SetAttributes(
		attribute.String("flywheel.strategy", strategy),
		attribute.String("flywheel.run_id", runID),
	)
	return ctx, span
}

// StartFrameSpan starts a span covering one simulation frame.
func StartFrameSpan(ctx context.Context, tracer trace.Tracer, index int, label string) (context.Context, trace.Span) {
	ctx, span := orNoop(tracer).Start(ctx, "frame "+label)
	span.SetAttributes(
		attribute.Int("flywheel.frame.index", index),
		attribute.String("flywheel.frame.reason", label),
	)
	return ctx, span
}

// StartRequestSpan starts a new span for a workload request.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, protocol, endpoint string) (context.Context, trace.Span) {
	spanName := protocol + " request"
	if endpoint != "" {
		spanName = protocol + " " + endpoint
	}
	ctx, span := orNoop(tracer).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	if endpoint != "" {
		span.SetAttributes(attribute.String("flywheel.endpoint", endpoint))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
