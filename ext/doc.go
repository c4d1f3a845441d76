// Package ext defines the extension system for jobtrack.
//
// Extensions are notified of lifecycle events and can react to them by
// recording metrics, writing audit logs, pushing notifications and so on.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobSucceeded(ctx context.Context, r *job.Record, elapsed time.Duration) error {
//	    log.Printf("job %s succeeded in %s", r.ID, elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobSubmitted]: job was recorded as PENDING and queued
//   - [JobStarted]: a worker moved the job to PROGRESS
//   - [JobProgressed]: the task reported progress
//   - [JobSucceeded]: job reached SUCCESS
//   - [JobFailed]: job reached FAILURE (error, panic, timeout, cancel)
//
// # Other Hooks
//
//   - [JobsSwept]: the retention sweeper evicted records
//   - [Shutdown]: the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged and
// never affect the job.
package ext
