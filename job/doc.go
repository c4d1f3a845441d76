// Package job defines the job record, its status sum type and state
// machine, typed task definitions, and the store interface.
//
// # Lifecycle
//
// A [Record] moves through a one-directional state machine:
//
//	PENDING → PROGRESS → PROGRESS … → SUCCESS
//	PENDING → PROGRESS → … → FAILURE
//	PENDING → FAILURE              (cancelled or pool stopped before start)
//
// Its [Status] is one of [Pending], [InProgress], [Succeeded] or [Failed].
// Each variant carries only the data valid for its state, so a record can
// never hold a result and an error at the same time.
//
// # Defining a Task
//
// Use [Definition] with a typed handler. The payload is JSON-decoded before
// the handler runs and the result is JSON-encoded afterwards:
//
//	var Thumbnail = job.NewDefinition("thumbnail",
//	    func(ctx context.Context, in ThumbInput, report job.Reporter) (ThumbOutput, error) {
//	        _ = report.Report(ctx, job.Step(1, 2, "resizing"))
//	        ...
//	    },
//	)
//
// [Registry] maps task names to type-erased [HandlerFunc] values.
package job
