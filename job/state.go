package job

import "encoding/json"

// State is the externally visible lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting in the queue.
	StatePending State = "PENDING"
	// StateProgress means a worker is executing the job.
	StateProgress State = "PROGRESS"
	// StateSuccess means the job finished and holds a result.
	StateSuccess State = "SUCCESS"
	// StateFailure means the job failed and holds a Failure.
	StateFailure State = "FAILURE"
)

// IsTerminal reports whether no further transitions can leave s.
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFailure
}

// CanTransition reports whether a record in state from may move to state to.
func CanTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateProgress || to == StateFailure
	case StateProgress:
		return to == StateProgress || to == StateSuccess || to == StateFailure
	default:
		return false
	}
}

// Status is the tagged union of job states. The concrete type tells the
// state; each variant carries only the payload that state allows.
type Status interface {
	State() State
	isStatus()
}

// Pending is the status of a queued job.
type Pending struct{}

// InProgress is the status of a running job with its latest progress.
type InProgress struct {
	Progress Progress
}

// Succeeded is the status of a completed job.
type Succeeded struct {
	Result json.RawMessage
}

// Failed is the status of a job that did not complete.
type Failed struct {
	Failure Failure
}

func (Pending) State() State    { return StatePending }
func (InProgress) State() State { return StateProgress }
func (Succeeded) State() State  { return StateSuccess }
func (Failed) State() State     { return StateFailure }

func (Pending) isStatus()    {}
func (InProgress) isStatus() {}
func (Succeeded) isStatus()  {}
func (Failed) isStatus()     {}
