package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/dexter/internal/orchestrator"

func defaultTracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

func (o *Orchestrator) startSpan(ctx context.Context, name string, r *run) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("run.id", r.id),
		attribute.Int("run.steps", r.steps),
	}
	if r.ledger != nil && r.active >= 0 {
		attrs = append(attrs, attribute.Int("task.id", r.ledger.Task(r.active).ID))
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
