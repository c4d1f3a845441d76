package job

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies why a job failed.
type FailureKind string

const (
	// FailureExecution means the task returned an error.
	FailureExecution FailureKind = "execution"
	// FailureTimeout means the task exceeded its deadline.
	FailureTimeout FailureKind = "timeout"
	// FailurePanic means the task panicked.
	FailurePanic FailureKind = "panic"
	// FailureCancelled means the job was cancelled or the pool stopped.
	FailureCancelled FailureKind = "cancelled"
)

// Failure is the structured error stored on a FAILURE record.
type Failure struct {
	Kind  FailureKind `json:"kind"`
	Cause string      `json:"cause"`
	// RetryAfter is a hint for callers that resubmit. Zero means none.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// String returns the cause, which is what status readers show.
func (f Failure) String() string { return f.Cause }

// PanicError is returned by recovery middleware when a task panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// RetryableError attaches a retry hint to a task error.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// RetryAfter wraps err with a hint that resubmitting after d may succeed.
func RetryAfter(err error, d time.Duration) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, After: d}
}

// FailureFromError converts a task error into a Failure.
func FailureFromError(err error) Failure {
	f := Failure{Kind: FailureExecution, Cause: err.Error()}

	var pe *PanicError
	switch {
	case errors.As(err, &pe):
		f.Kind = FailurePanic
	case errors.Is(err, context.DeadlineExceeded):
		f.Kind = FailureTimeout
	case errors.Is(err, context.Canceled):
		f.Kind = FailureCancelled
	}

	var re *RetryableError
	if errors.As(err, &re) {
		f.RetryAfter = re.After
	}
	return f
}

// Cancelled returns the Failure recorded for a cancelled job.
func Cancelled(cause string) Failure {
	return Failure{Kind: FailureCancelled, Cause: cause}
}
