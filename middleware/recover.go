package middleware

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/jobtrack/job"
)

// Recover returns middleware that recovers from panics in the handler chain.
// A panic becomes a *job.PanicError and is logged with a stack trace; the
// worker that ran it stays alive.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, r *job.Record, next Handler) (retErr error) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("job handler panicked",
					slog.String("job_name", r.Name),
					slog.String("job_id", r.ID.String()),
					slog.Any("panic", p),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = &job.PanicError{Value: p}
			}
		}()
		return next(ctx)
	}
}
