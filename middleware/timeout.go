package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobtrack/job"
)

// Timeout returns middleware that enforces a per-job execution deadline.
// The record's own Timeout wins; fallback applies when it is zero. With
// neither set the job may run indefinitely.
//
// When the deadline passes the job fails with an error wrapping
// context.DeadlineExceeded, whether or not the task honours its context.
// A task that ignores ctx keeps running in the background until it
// returns; its result is discarded.
func Timeout(logger *slog.Logger, fallback time.Duration) Middleware {
	return func(ctx context.Context, r *job.Record, next Handler) error {
		d := r.Timeout
		if d <= 0 {
			d = fallback
		}
		if d <= 0 {
			return next(ctx)
		}

		logger.Debug("job timeout set",
			slog.String("job_id", r.ID.String()),
			slog.Duration("timeout", d),
		)
		tctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					done <- &job.PanicError{Value: p}
				}
			}()
			done <- next(tctx)
		}()

		var err error
		select {
		case err = <-done:
		case <-tctx.Done():
			if ctx.Err() != nil {
				// Cancelled from outside: let the task wind down.
				err = <-done
				break
			}
			logger.Warn("job exceeded timeout",
				slog.String("job_id", r.ID.String()),
				slog.Duration("timeout", d),
			)
			return timeoutError(d)
		}

		if err == nil && ctx.Err() == nil && tctx.Err() != nil {
			return timeoutError(d)
		}
		return err
	}
}

func timeoutError(d time.Duration) error {
	return fmt.Errorf("job exceeded timeout of %s: %w", d, context.DeadlineExceeded)
}
