package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceCarrier travels inside job payloads so a redrive issued from the CLI
// joins the caller's trace.
type TraceCarrier struct {
	TraceParent string `json:"trace_parent,omitempty"`
	TraceState  string `json:"trace_state,omitempty"`
}

func InjectTraceContext(ctx context.Context) TraceCarrier {
	mapCarrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, mapCarrier)

	return TraceCarrier{
		TraceParent: mapCarrier.Get("traceparent"),
		TraceState:  mapCarrier.Get("tracestate"),
	}
}

func ExtractTraceContext(ctx context.Context, carrier TraceCarrier) context.Context {
	if carrier.TraceParent == "" {
		return ctx
	}
	return ExtractFromAttributes(ctx, map[string]string{
		"traceparent": carrier.TraceParent,
		"tracestate":  carrier.TraceState,
	})
}

// ExtractFromAttributes reads W3C trace headers from queue message attributes.
func ExtractFromAttributes(ctx context.Context, attrs map[string]string) context.Context {
	if attrs["traceparent"] == "" {
		return ctx
	}
	return propagation.TraceContext{}.Extract(ctx, propagation.MapCarrier(attrs))
}

func StartMessageSpan(ctx context.Context, messageID string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "queue.message.handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	span.SetAttributes(
		attribute.String("messaging.system", "aws_sqs"),
		attribute.String("messaging.message.id", messageID),
	)
	return ctx, span
}

func StartProcessorSpan(ctx context.Context, uploadType, key string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "processor."+uploadType)
	span.SetAttributes(
		attribute.String("media.upload_type", uploadType),
		attribute.String("media.s3_key", key),
	)
	return ctx, span
}

func StartJobSpan(ctx context.Context, jobType, jobID string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "job.process."+jobType,
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	span.SetAttributes(
		attribute.String("job.type", jobType),
		attribute.String("job.id", jobID),
	)
	return ctx, span
}
