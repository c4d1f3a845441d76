package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobtrack/job"
)

// meterName is the instrumentation scope name for jobtrack metrics.
const meterName = "github.com/xraph/jobtrack"

// Metrics returns middleware that records per-job execution metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - jobtrack.job.duration (Float64Histogram): execution time in seconds,
//     with attributes: job_name, status ("ok" or "error")
//   - jobtrack.job.executions (Int64Counter): total executions,
//     with attributes: job_name, status, and kind on failures
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"jobtrack.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"jobtrack.job.executions",
		metric.WithDescription("Total number of job executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, r *job.Record, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		attrs := []attribute.KeyValue{
			attribute.String("job_name", r.Name),
			attribute.String("status", "ok"),
		}
		if err != nil {
			attrs[1] = attribute.String("status", "error")
			attrs = append(attrs, attribute.String("kind", string(job.FailureFromError(err).Kind)))
		}

		// The handler may have been cancelled; record against a live context.
		rctx := context.WithoutCancel(ctx)
		duration.Record(rctx, elapsed, metric.WithAttributes(attrs[:2]...))
		executions.Add(rctx, 1, metric.WithAttributes(attrs...))

		return err
	}
}
