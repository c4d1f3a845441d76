package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobtrack/job"
)

// tracerName is the instrumentation scope name for jobtrack tracing.
const tracerName = "github.com/xraph/jobtrack"

// Tracing returns middleware that wraps job execution in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used
// and this middleware becomes a pass-through.
//
// Span attributes: jobtrack.job.id, jobtrack.job.name, jobtrack.job.timeout_ms.
// On error the span status is codes.Error and jobtrack.failure.kind is set.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, r *job.Record, next Handler) error {
		ctx, span := tracer.Start(ctx, "jobtrack.job.execute",
			trace.WithAttributes(
				attribute.String("jobtrack.job.id", r.ID.String()),
				attribute.String("jobtrack.job.name", r.Name),
				attribute.Int64("jobtrack.job.timeout_ms", r.Timeout.Milliseconds()),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("jobtrack.failure.kind", string(job.FailureFromError(err).Kind)))
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
