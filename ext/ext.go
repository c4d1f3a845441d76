package ext

import (
	"context"
	"time"

	"github.com/xraph/jobtrack/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobSubmitted is called after a job is recorded and queued.
type JobSubmitted interface {
	OnJobSubmitted(ctx context.Context, r *job.Record) error
}

// JobStarted is called when a worker begins executing a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, r *job.Record) error
}

// JobProgressed is called after a progress report is stored.
type JobProgressed interface {
	OnJobProgressed(ctx context.Context, r *job.Record, p job.Progress) error
}

// JobSucceeded is called after a job reaches SUCCESS.
type JobSucceeded interface {
	OnJobSucceeded(ctx context.Context, r *job.Record, elapsed time.Duration) error
}

// JobFailed is called after a job reaches FAILURE.
type JobFailed interface {
	OnJobFailed(ctx context.Context, r *job.Record, f job.Failure) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// JobsSwept is called after a retention sweep removed at least one record.
type JobsSwept interface {
	OnJobsSwept(ctx context.Context, removed int) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
