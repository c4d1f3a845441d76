// Package jobtrack runs units of work outside the request/response path and
// tracks their lifecycle so callers can poll for progress and results.
//
// A job is submitted, stored as PENDING, picked up by a fixed-size worker
// pool, moved to PROGRESS while its task reports steps, and finished as
// SUCCESS or FAILURE. Records are kept for a retention window and then
// evicted.
//
// # Quick Start
//
//	s := memory.New()
//	eng, err := engine.New(s,
//	    engine.WithConfig(jobtrack.Config{Concurrency: 4, Retention: time.Hour}),
//	)
//	engine.Register(eng, report.Definition(time.Second))
//	_ = eng.Start(ctx)
//
//	jobID, err := engine.Submit(ctx, eng, report.TaskName, report.Request{ReportType: "monthly"})
//	rec, err := eng.Status(ctx, jobID.String())
//
// # Architecture
//
// The job package owns the record model and the Store contract. Backends
// live under store/ (memory and Redis). The worker package executes jobs
// through a middleware chain and finalizes their state. The engine package
// wires store, queue, pool and retention sweeper together and exposes
// Submit, Status and Cancel.
//
// All job IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers in the form "job_01h2xcejqtf2nbrexx3vqjhp41".
package jobtrack
