package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobtrack/ext"
	"github.com/xraph/jobtrack/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*Extension)(nil)
	_ ext.JobSubmitted = (*Extension)(nil)
	_ ext.JobStarted   = (*Extension)(nil)
	_ ext.JobSucceeded = (*Extension)(nil)
	_ ext.JobFailed    = (*Extension)(nil)
	_ ext.JobsSwept    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry in the audit trail.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges jobtrack lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// OnJobSubmitted implements ext.JobSubmitted.
func (e *Extension) OnJobSubmitted(ctx context.Context, r *job.Record) error {
	return e.record(ctx, ActionJobSubmitted, SeverityInfo, OutcomeSuccess,
		ResourceJob, r.ID.String(), CategoryJob, "",
		"job_name", r.Name,
	)
}

// OnJobStarted implements ext.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, r *job.Record) error {
	return e.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess,
		ResourceJob, r.ID.String(), CategoryJob, "",
		"job_name", r.Name,
	)
}

// OnJobSucceeded implements ext.JobSucceeded.
func (e *Extension) OnJobSucceeded(ctx context.Context, r *job.Record, elapsed time.Duration) error {
	return e.record(ctx, ActionJobSucceeded, SeverityInfo, OutcomeSuccess,
		ResourceJob, r.ID.String(), CategoryJob, "",
		"job_name", r.Name,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements ext.JobFailed. Cancellations are recorded under
// their own action with warning severity.
func (e *Extension) OnJobFailed(ctx context.Context, r *job.Record, f job.Failure) error {
	action, severity := ActionJobFailed, SeverityCritical
	if f.Kind == job.FailureCancelled {
		action, severity = ActionJobCancelled, SeverityWarning
	}
	return e.record(ctx, action, severity, OutcomeFailure,
		ResourceJob, r.ID.String(), CategoryJob, f.Cause,
		"job_name", r.Name,
		"kind", string(f.Kind),
	)
}

// OnJobsSwept implements ext.JobsSwept.
func (e *Extension) OnJobsSwept(ctx context.Context, removed int) error {
	return e.record(ctx, ActionJobsSwept, SeverityInfo, OutcomeSuccess,
		ResourceStore, "", CategoryRetention, "",
		"removed", removed,
	)
}

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	reason string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}
	if reason != "" {
		meta["error"] = reason
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
