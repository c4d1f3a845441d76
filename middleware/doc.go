// Package middleware provides composable middleware for job execution.
//
// A [Middleware] is a function that wraps a task handler. Middleware are
// composed into a chain using [Chain] and applied around every execution.
// They are applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs job name, duration, and outcome at each execution
//   - [Recover]: catches panics and converts them to *job.PanicError
//   - [Timeout]: cancels the job context after the job's timeout
//   - [Tracing]: wraps execution in an OpenTelemetry span
//   - [Metrics]: records per-job duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, r *job.Record, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
