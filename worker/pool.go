package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/xraph/jobtrack/id"
	"github.com/xraph/jobtrack/job"
	"github.com/xraph/jobtrack/queue"
)

// StopCause is the failure cause recorded for jobs cut short by Stop.
const StopCause = "worker pool stopped"

var errPoolStopped = errors.New(StopCause)

// Pool manages a fixed set of worker goroutines that pop records from the
// queue and execute them through the Executor.
type Pool struct {
	queue       *queue.Queue
	executor    *Executor
	concurrency int
	workerID    id.WorkerID
	logger      *slog.Logger

	// baseCtx parents every job context; cancelling it aborts them all.
	baseCtx    context.Context
	baseCancel context.CancelCauseFunc

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stopped bool

	activeJobs map[string]context.CancelCauseFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
// Values below 1 are ignored.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewPool creates a worker pool reading from q.
func NewPool(q *queue.Queue, executor *Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	baseCtx, baseCancel := context.WithCancelCause(context.Background())
	p := &Pool{
		queue:       q,
		executor:    executor,
		concurrency: 10,
		workerID:    id.NewWorkerID(),
		logger:      logger,
		baseCtx:     baseCtx,
		baseCancel:  baseCancel,
		stopCh:      make(chan struct{}),
		activeJobs:  make(map[string]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Concurrency returns the number of worker goroutines.
func (p *Pool) Concurrency() int { return p.concurrency }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.stopped {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.work()
	}
	return nil
}

// Stop closes the queue to new submissions and lets workers drain what is
// queued. If ctx ends first, running jobs are cancelled and every job still
// queued is recorded as a cancelled failure. Stop returns once all workers
// have exited.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	running := p.running
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))
	p.queue.Close()

	if running {
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Info("worker pool stopped gracefully")
		case <-ctx.Done():
			p.logger.Warn("worker pool shutdown timed out, cancelling active jobs",
				slog.Int("active", p.ActiveCount()),
				slog.Int("queued", p.queue.Len()),
			)
			close(p.stopCh)
			p.baseCancel(errPoolStopped)
			<-done
		}
	}
	p.baseCancel(errPoolStopped)

	p.failQueued(context.WithoutCancel(ctx))
	return nil
}

// Cancel cancels the running job with the given ID, recording reason as
// the failure cause. It reports whether the job was running in this pool.
func (p *Pool) Cancel(jobID id.JobID, reason string) bool {
	p.activeMu.Lock()
	cancel, ok := p.activeJobs[jobID.String()]
	p.activeMu.Unlock()
	if ok {
		cancel(errors.New(reason))
	}
	return ok
}

// ActiveCount returns the number of jobs currently executing.
func (p *Pool) ActiveCount() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return len(p.activeJobs)
}

// work is run by each worker goroutine.
func (p *Pool) work() {
	defer p.wg.Done()

	for {
		rec, ok := p.queue.Pop(p.stopCh)
		if !ok {
			return
		}
		p.run(rec)
	}
}

func (p *Pool) run(rec *job.Record) {
	key := rec.ID.String()
	ctx, cancel := context.WithCancelCause(p.baseCtx)
	p.trackJob(key, cancel)
	defer func() {
		p.untrackJob(key)
		cancel(nil)
	}()

	if err := p.executor.Execute(ctx, rec); err != nil {
		p.logger.Debug("job execution failed",
			slog.String("job_id", key),
			slog.String("job_name", rec.Name),
			slog.String("error", err.Error()),
		)
	}
}

// failQueued records every record left in the queue as cancelled.
func (p *Pool) failQueued(ctx context.Context) {
	left := p.queue.Drain()
	if len(left) == 0 {
		return
	}
	p.logger.Warn("failing jobs left in queue", slog.Int("count", len(left)))
	for _, rec := range left {
		if err := p.executor.Abandon(ctx, rec, job.Cancelled(StopCause)); err != nil {
			p.logger.Error("failed to record abandoned job",
				slog.String("job_id", rec.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelCauseFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}
