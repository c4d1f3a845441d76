package job

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/jobtrack"
	"github.com/xraph/jobtrack/id"
)

// Record is one submitted unit of work and its current state.
type Record struct {
	ID         id.JobID
	Name       string
	Payload    json.RawMessage
	Status     Status
	Timeout    time.Duration
	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// NewRecord creates a PENDING record with a fresh ID.
func NewRecord(name string, payload []byte, opts Options, now time.Time) *Record {
	return &Record{
		ID:        id.NewJobID(),
		Name:      name,
		Payload:   bytes.Clone(payload),
		Status:    Pending{},
		Timeout:   opts.Timeout,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// State returns the state of the current status. A record without a
// status is treated as pending.
func (r *Record) State() State {
	if r.Status == nil {
		return StatePending
	}
	return r.Status.State()
}

// Progress returns the latest progress if the job is running.
func (r *Record) Progress() (Progress, bool) {
	s, ok := r.Status.(InProgress)
	return s.Progress, ok
}

// Result returns the encoded result if the job succeeded.
func (r *Record) Result() (json.RawMessage, bool) {
	s, ok := r.Status.(Succeeded)
	return s.Result, ok
}

// Failure returns the failure if the job failed.
func (r *Record) Failure() (Failure, bool) {
	s, ok := r.Status.(Failed)
	return s.Failure, ok
}

// Transition moves the record to next, stamping timestamps. It returns
// ErrInvalidTransition if the move would leave a terminal state or go
// backwards.
func (r *Record) Transition(next Status, now time.Time) error {
	from, to := r.State(), next.State()
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", jobtrack.ErrInvalidTransition, from, to)
	}

	if from == StatePending && to == StateProgress {
		started := now
		r.StartedAt = &started
	}
	if to.IsTerminal() {
		finished := now
		r.FinishedAt = &finished
	}
	r.Status = next
	r.UpdatedAt = now
	return nil
}

// Clone returns a deep copy that shares no mutable memory with r.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Payload = bytes.Clone(r.Payload)
	if s, ok := r.Status.(Succeeded); ok {
		cp.Status = Succeeded{Result: bytes.Clone(s.Result)}
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		cp.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
