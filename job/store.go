package job

import (
	"context"
	"time"

	"github.com/xraph/jobtrack/id"
)

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// State filters by job state. Empty means all states.
	State State
}

// Store defines the persistence contract for job records. Implementations
// must be safe for concurrent use, must not contend across different IDs
// and must serialize updates to the same ID.
type Store interface {
	// CreateJob persists a new record in PENDING state. Returns
	// ErrJobAlreadyExists if a retained record has the same ID.
	CreateJob(ctx context.Context, r *Record) error

	// UpdateJob atomically applies the transition to status and bumps
	// UpdatedAt. Returns ErrJobNotFound if the record is absent (never
	// created or evicted) and ErrInvalidTransition if the move is not
	// allowed from the stored state. On success it returns the new snapshot.
	UpdateJob(ctx context.Context, jobID id.JobID, status Status) (*Record, error)

	// GetJob returns a snapshot of the record. Mutating it does not affect
	// the store.
	GetJob(ctx context.Context, jobID id.JobID) (*Record, error)

	// DeleteJob removes a record by ID.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// SweepJobs removes every record whose UpdatedAt is before cutoff and
	// returns how many were removed.
	SweepJobs(ctx context.Context, cutoff time.Time) (int, error)

	// CountJobs returns the number of records matching opts.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)
}
