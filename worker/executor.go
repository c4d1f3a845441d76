package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobtrack"
	"github.com/xraph/jobtrack/backoff"
	"github.com/xraph/jobtrack/ext"
	"github.com/xraph/jobtrack/job"
	"github.com/xraph/jobtrack/middleware"
)

// defaultWriteAttempts bounds retries of the terminal status write.
const defaultWriteAttempts = 5

// Executor runs a single job through middleware and the registered handler,
// and records every state change in the store.
type Executor struct {
	registry   *job.Registry
	extensions *ext.Registry
	store      job.Store
	backoff    backoff.Strategy
	attempts   int
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *job.Registry,
	extensions *ext.Registry,
	store job.Store,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if bo == nil {
		bo = backoff.DefaultStrategy()
	}
	return &Executor{
		registry:   registry,
		extensions: extensions,
		store:      store,
		backoff:    bo,
		attempts:   defaultWriteAttempts,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs rec to completion.
//
// The record moves to PROGRESS before the handler is invoked. If that
// transition is refused the job was cancelled (or evicted) while queued and
// is skipped. Progress reports are best-effort store updates. The outcome
// is written with retries so a transient store failure does not strand the
// job in PROGRESS.
func (e *Executor) Execute(ctx context.Context, rec *job.Record) error {
	// Store writes outlive the job context so cancellation can be recorded.
	sctx := context.WithoutCancel(ctx)

	if ctx.Err() != nil {
		return e.Abandon(sctx, rec, failureFor(ctx, ctx.Err()))
	}

	task, ok := e.registry.Get(rec.Name)
	if !ok {
		f := job.Failure{Kind: job.FailureExecution, Cause: fmt.Sprintf("no handler registered for task %q", rec.Name)}
		return e.Abandon(sctx, rec, f)
	}

	running, err := e.store.UpdateJob(sctx, rec.ID, job.InProgress{})
	if err != nil {
		if errors.Is(err, jobtrack.ErrInvalidTransition) || errors.Is(err, jobtrack.ErrJobNotFound) {
			e.logger.Debug("skipping job that is no longer pending",
				slog.String("job_id", rec.ID.String()),
				slog.String("reason", err.Error()),
			)
			return nil
		}
		e.logger.Error("failed to mark job as started",
			slog.String("job_id", rec.ID.String()),
			slog.String("error", err.Error()),
		)
		return e.Abandon(sctx, rec, job.Failure{Kind: job.FailureExecution, Cause: err.Error()})
	}
	e.extensions.EmitJobStarted(sctx, running)

	reporter := job.ReporterFunc(func(_ context.Context, p job.Progress) error {
		snap, uerr := e.store.UpdateJob(sctx, rec.ID, job.InProgress{Progress: p})
		if uerr != nil {
			e.logger.Debug("progress report dropped",
				slog.String("job_id", rec.ID.String()),
				slog.String("error", uerr.Error()),
			)
			return uerr
		}
		e.extensions.EmitJobProgressed(sctx, snap, p)
		return nil
	})

	var result json.RawMessage
	terminal := func(ctx context.Context) error {
		res, herr := task.Handler(ctx, running.Payload, reporter)
		result = res
		return herr
	}

	start := time.Now()
	runErr := e.mw(ctx, running, terminal)
	elapsed := time.Since(start)

	if runErr != nil {
		f := failureFor(ctx, runErr)
		if err := e.finish(sctx, rec, job.Failed{Failure: f}, elapsed); err != nil {
			return err
		}
		return runErr
	}
	return e.finish(sctx, rec, job.Succeeded{Result: result}, elapsed)
}

// Abandon records f as the outcome of a job that will not run, for example
// one left in the queue when the pool stopped.
func (e *Executor) Abandon(ctx context.Context, rec *job.Record, f job.Failure) error {
	return e.finish(ctx, rec, job.Failed{Failure: f}, 0)
}

// finish writes the terminal status, retrying transient store errors, and
// emits the matching lifecycle event.
func (e *Executor) finish(ctx context.Context, rec *job.Record, status job.Status, elapsed time.Duration) error {
	var final *job.Record
	err := backoff.Retry(ctx, e.backoff, e.attempts, func(attempt int) error {
		snap, uerr := e.store.UpdateJob(ctx, rec.ID, status)
		switch {
		case uerr == nil:
			final = snap
			return nil
		case errors.Is(uerr, jobtrack.ErrInvalidTransition), errors.Is(uerr, jobtrack.ErrJobNotFound):
			return backoff.Permanent(uerr)
		default:
			e.logger.Warn("terminal status write failed",
				slog.String("job_id", rec.ID.String()),
				slog.Int("attempt", attempt),
				slog.String("error", uerr.Error()),
			)
			return uerr
		}
	})
	if err != nil {
		if errors.Is(err, jobtrack.ErrInvalidTransition) || errors.Is(err, jobtrack.ErrJobNotFound) {
			// Already terminal (cancelled concurrently) or evicted.
			e.logger.Debug("terminal status not recorded",
				slog.String("job_id", rec.ID.String()),
				slog.String("state", string(status.State())),
				slog.String("reason", err.Error()),
			)
			return nil
		}
		e.logger.Error("failed to record job outcome",
			slog.String("job_id", rec.ID.String()),
			slog.String("state", string(status.State())),
			slog.String("error", err.Error()),
		)
		return err
	}

	switch s := status.(type) {
	case job.Succeeded:
		e.extensions.EmitJobSucceeded(ctx, final, elapsed)
	case job.Failed:
		e.extensions.EmitJobFailed(ctx, final, s.Failure)
	}
	return nil
}

// failureFor converts err into a Failure, replacing the generic
// "context canceled" text with the reason given to the cancel func.
func failureFor(ctx context.Context, err error) job.Failure {
	f := job.FailureFromError(err)
	if f.Kind == job.FailureCancelled {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			f.Cause = cause.Error()
		}
	}
	return f
}
