// Package telemetry's linked-span helper restores trace continuity across
// the orchestrator's async boundary: Submit returns immediately and the
// actual work runs on a detached worker goroutine, so a worker that wants
// to join the submitting request's trace has to re-attach to it rather
// than inherit it through ctx propagation. core.Job carries no trace
// identifiers, so the generation worker passes empty IDs and gets an
// unlinked span.
//
// Usage:
//
//	// traceID and parentSpanID captured by the caller at submit time
//	ctx, endSpan := telemetry.StartLinkedSpan(
//	    context.Background(),
//	    "job.process",
//	    traceID,
//	    parentSpanID,
//	    map[string]string{"job.id": job.JobID},
//	)
//	defer endSpan()
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StartLinkedSpan creates a span linked to a stored trace context. If
// traceID or parentSpanID are empty or invalid, it still creates a valid
// span, just without the link, so callers degrade gracefully when no trace
// context was captured at Submit time.
func StartLinkedSpan(
	ctx context.Context,
	name string,
	traceID string,
	parentSpanID string,
	attributes map[string]string,
) (context.Context, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	return startLinkedSpan(ctx, name, traceID, parentSpanID, attributes, nil)
}

// StartLinkedSpanWithOptions is StartLinkedSpan plus an explicit span kind,
// such as trace.SpanKindConsumer for a span that consumes a submitted
// request off the job table.
func StartLinkedSpanWithOptions(
	ctx context.Context,
	name string,
	traceID string,
	parentSpanID string,
	attributes map[string]string,
	spanKind trace.SpanKind,
) (context.Context, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	return startLinkedSpan(ctx, name, traceID, parentSpanID, attributes, []trace.SpanStartOption{
		trace.WithSpanKind(spanKind),
	})
}

func startLinkedSpan(
	ctx context.Context,
	name string,
	traceID string,
	parentSpanID string,
	attributes map[string]string,
	extraOpts []trace.SpanStartOption,
) (context.Context, func()) {
	tracer := otel.Tracer("forge-generation")

	opts := append([]trace.SpanStartOption{}, extraOpts...)

	if traceID != "" && parentSpanID != "" {
		tid, tidErr := trace.TraceIDFromHex(traceID)
		sid, sidErr := trace.SpanIDFromHex(parentSpanID)

		if tidErr == nil && sidErr == nil {
			parentSC := trace.NewSpanContext(trace.SpanContextConfig{
				TraceID: tid,
				SpanID:  sid,
				Remote:  true,
			})
			opts = append(opts, trace.WithLinks(trace.Link{
				SpanContext: parentSC,
				Attributes: []attribute.KeyValue{
					attribute.String("link.type", "job_worker"),
				},
			}))
		}
	}

	ctx, span := tracer.Start(ctx, name, opts...)
	for k, v := range attributes {
		span.SetAttributes(attribute.String(k, v))
	}

	return ctx, func() { span.End() }
}
