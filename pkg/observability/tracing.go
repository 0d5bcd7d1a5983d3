package observability

import (
	"context"

	"github.com/aretw0/callflow/pkg/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("callflow")

// StartFlowSpan starts a span for an operation on one flow.
func StartFlowSpan(ctx context.Context, operation, flowID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "callflow."+operation,
		trace.WithAttributes(
			attribute.String("flow.id", flowID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartPreviewSpan starts a span for a preview session step.
func StartPreviewSpan(ctx context.Context, action, sessionID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "callflow.preview."+action,
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan completes a span, optionally recording an error.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// TraceHooks records node enter and leave as events on the span in ctx.
func TraceHooks() domain.LifecycleHooks {
	nodeEvent := func(name string) func(context.Context, *domain.NodeEvent) {
		return func(ctx context.Context, e *domain.NodeEvent) {
			AddSpanEvent(ctx, name,
				attribute.String("node.id", e.NodeID),
				attribute.String("node.type", string(e.NodeType)),
			)
		}
	}
	return domain.LifecycleHooks{
		OnNodeEnter: nodeEvent("node.enter"),
		OnNodeLeave: nodeEvent("node.leave"),
	}
}
