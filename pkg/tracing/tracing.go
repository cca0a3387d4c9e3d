// Package tracing holds the process tracer and the span helpers used across fern.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer installs the tracer. nil turns StartSpan into a no-op.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan opens a child span of whatever ctx carries.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName)
}

// activeSpan is the valid span context in ctx, if tracing is on.
func activeSpan(ctx context.Context) (trace.SpanContext, bool) {
	if tracer == nil {
		return trace.SpanContext{}, false
	}
	sc := trace.SpanContextFromContext(ctx)
	return sc, sc.IsValid()
}

// GetTraceParent renders the W3C traceparent for message headers.
func GetTraceParent(ctx context.Context) string {
	if _, ok := activeSpan(ctx); !ok {
		return ""
	}
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier.Get("traceparent")
}

func GetTraceID(ctx context.Context) string {
	if sc, ok := activeSpan(ctx); ok {
		return sc.TraceID().String()
	}
	return ""
}

func GetSpanID(ctx context.Context) string {
	if sc, ok := activeSpan(ctx); ok {
		return sc.SpanID().String()
	}
	return ""
}
