// Package audithook is a jobtrack extension that turns job lifecycle events
// into an audit trail.
//
// Every submission, start, outcome and retention sweep emits a structured
// audit event through the [Recorder] interface. Severity is info for normal
// operations, warning for cancellations and critical for failures.
//
// # Logging to slog
//
//	eng, _ := engine.New(s,
//	    engine.WithExtension(audithook.New(audithook.NewSlogRecorder(logger))),
//	)
//
// # Custom backends
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return auditDB.Insert(ctx, evt)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionJobCancelled,
//	    ),
//	)
package audithook
