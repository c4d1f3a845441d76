package jobtrack

import (
	"errors"
	"fmt"
)

var (
	// Store errors.
	ErrNoStore          = errors.New("jobtrack: no store configured")
	ErrStoreUnavailable = errors.New("jobtrack: store unavailable")

	// Not found errors.
	ErrJobNotFound = errors.New("jobtrack: job not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("jobtrack: job already exists")

	// State errors.
	ErrInvalidTransition = errors.New("jobtrack: invalid state transition")

	// Submission errors.
	ErrUnknownTask    = errors.New("jobtrack: unknown task")
	ErrInvalidPayload = errors.New("jobtrack: invalid payload")
	ErrRejected       = errors.New("jobtrack: submission rejected")
)

// Rejection reasons. Each wraps ErrRejected.
var (
	ErrQueueFull   = fmt.Errorf("%w: queue full", ErrRejected)
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrRejected)
	ErrPoolStopped = fmt.Errorf("%w: worker pool stopped", ErrRejected)
)
