// # Building an Engine
//
//	eng, err := engine.New(memory.New(),
//	    engine.WithConfig(jobtrack.Config{
//	        Concurrency:   8,
//	        QueueSize:     1000,
//	        Retention:     time.Hour,
//	        SweepInterval: time.Minute,
//	    }),
//	    engine.WithLogger(logger),
//	    engine.WithExtension(myExtension),
//	    engine.WithMiddleware(myMiddleware),
//	)
//
// # Registering Tasks
//
//	engine.Register(eng, report.Definition(time.Second))
//
// # Submitting and Polling
//
//	jobID, err := engine.Submit(ctx, eng, report.TaskName, report.Request{ReportType: "weekly"})
//	if errors.Is(err, jobtrack.ErrRejected) {
//	    // queue full, rate limited or shutting down
//	}
//
//	rec, err := eng.Status(ctx, jobID.String())
//	switch rec.State() {
//	case job.StateProgress:
//	    p, _ := rec.Progress()
//	    fmt.Println(p.Percent)
//	case job.StateSuccess:
//	    res, _ := rec.Result()
//	    fmt.Println(string(res))
//	}
//
// # Options
//
//   - [WithConfig]: pool size, admission limits, retention, timeouts
//   - [WithLogger]: structured logger shared by all components
//   - [WithClock]: time source for timestamps and the retention cutoff
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware to the execution chain
//   - [WithBackoff]: retry strategy for terminal status writes
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithMeterProvider]: set the OpenTelemetry meter provider
package engine
