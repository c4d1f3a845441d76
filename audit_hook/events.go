package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobSubmitted = "job.submitted"
	ActionJobStarted   = "job.started"
	ActionJobSucceeded = "job.succeeded"
	ActionJobFailed    = "job.failed"
	ActionJobCancelled = "job.cancelled"
	ActionJobsSwept    = "jobs.swept"
)

// Audit event categories group related actions.
const (
	CategoryJob       = "jobtrack.job"
	CategoryRetention = "jobtrack.retention"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob   = "job"
	ResourceStore = "job_store"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobSubmitted,
		ActionJobStarted,
		ActionJobSucceeded,
		ActionJobFailed,
		ActionJobCancelled,
		ActionJobsSwept,
	}
}
