package store

import (
	"context"

	"github.com/xraph/jobtrack/job"
)

// Store is the persistence interface the engine runs against: the job
// contract plus connection lifecycle.
type Store interface {
	job.Store

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
