// Package otel provides OpenTelemetry instrumentation utilities shared by the
// sync engine, the storage backends and the job queues.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys used across the application.
const (
	AttrEntityType  = attribute.Key("entity.type")
	AttrCategory    = attribute.Key("entity.category")
	AttrSourceID    = attribute.Key("entity.source_id")
	AttrTargetCount = attribute.Key("entity.target_count")
	AttrFullSync    = attribute.Key("sync.full")
	AttrScope       = attribute.Key("sync.scope")
	AttrQueue       = attribute.Key("queue.name")
	AttrJobID       = attribute.Key("queue.job_id")
	AttrResultCount = attribute.Key("result.count")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the
// span already carried by ctx (a no-op span when there is none).
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span as failed.
// The status description stays generic so queries and tokens never end up in
// span status; the error itself is kept as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
