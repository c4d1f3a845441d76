package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobtrack/ext"
	"github.com/xraph/jobtrack/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.JobSubmitted  = (*MetricsExtension)(nil)
	_ ext.JobProgressed = (*MetricsExtension)(nil)
	_ ext.JobSucceeded  = (*MetricsExtension)(nil)
	_ ext.JobFailed     = (*MetricsExtension)(nil)
	_ ext.JobsSwept     = (*MetricsExtension)(nil)
)

const meterName = "github.com/xraph/jobtrack/observability"

// MetricsExtension records system-wide lifecycle metrics through an OTel
// meter. Register it as an extension to track submission rates, progress
// traffic, outcomes by failure kind, and evictions.
type MetricsExtension struct {
	JobSubmitted  metric.Int64Counter
	JobProgressed metric.Int64Counter
	JobSucceeded  metric.Int64Counter
	JobFailed     metric.Int64Counter
	JobElapsed    metric.Float64Histogram
	JobsSwept     metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. On instrument errors the OTel API hands back noop instruments.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	submitted, _ := meter.Int64Counter("jobtrack.job.submitted", //nolint:errcheck // noop fallback
		metric.WithDescription("Jobs accepted for execution"))
	progressed, _ := meter.Int64Counter("jobtrack.job.progress", //nolint:errcheck // noop fallback
		metric.WithDescription("Progress reports stored"))
	succeeded, _ := meter.Int64Counter("jobtrack.job.succeeded", //nolint:errcheck // noop fallback
		metric.WithDescription("Jobs that reached SUCCESS"))
	failed, _ := meter.Int64Counter("jobtrack.job.failed", //nolint:errcheck // noop fallback
		metric.WithDescription("Jobs that reached FAILURE, by kind"))
	elapsed, _ := meter.Float64Histogram("jobtrack.job.elapsed", //nolint:errcheck // noop fallback
		metric.WithDescription("Time from start to success"), metric.WithUnit("s"))
	swept, _ := meter.Int64Counter("jobtrack.job.swept", //nolint:errcheck // noop fallback
		metric.WithDescription("Records evicted by the retention sweeper"))

	return &MetricsExtension{
		JobSubmitted:  submitted,
		JobProgressed: progressed,
		JobSucceeded:  succeeded,
		JobFailed:     failed,
		JobElapsed:    elapsed,
		JobsSwept:     swept,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobSubmitted implements ext.JobSubmitted.
func (m *MetricsExtension) OnJobSubmitted(ctx context.Context, r *job.Record) error {
	m.JobSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("job_name", r.Name)))
	return nil
}

// OnJobProgressed implements ext.JobProgressed.
func (m *MetricsExtension) OnJobProgressed(ctx context.Context, r *job.Record, _ job.Progress) error {
	m.JobProgressed.Add(ctx, 1, metric.WithAttributes(attribute.String("job_name", r.Name)))
	return nil
}

// OnJobSucceeded implements ext.JobSucceeded.
func (m *MetricsExtension) OnJobSucceeded(ctx context.Context, r *job.Record, elapsed time.Duration) error {
	attrs := metric.WithAttributes(attribute.String("job_name", r.Name))
	m.JobSucceeded.Add(ctx, 1, attrs)
	m.JobElapsed.Record(ctx, elapsed.Seconds(), attrs)
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, r *job.Record, f job.Failure) error {
	m.JobFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_name", r.Name),
		attribute.String("kind", string(f.Kind)),
	))
	return nil
}

// ── Other hooks ─────────────────────────────────────

// OnJobsSwept implements ext.JobsSwept.
func (m *MetricsExtension) OnJobsSwept(ctx context.Context, removed int) error {
	m.JobsSwept.Add(ctx, int64(removed))
	return nil
}
