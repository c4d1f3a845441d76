// Package engine wires all jobtrack subsystems together. It creates the
// extension registry, task registry, queue, middleware chain, worker pool
// and retention sweeper, and provides Register/Submit/Status/Cancel.
//
// This package exists to break the import cycle: the root jobtrack package
// defines the sentinel errors and Config (imported by job, queue, store)
// and so cannot import those packages back. The engine package sits above
// all subsystem packages and below the application layer.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobtrack"
	"github.com/xraph/jobtrack/backoff"
	"github.com/xraph/jobtrack/ext"
	"github.com/xraph/jobtrack/id"
	"github.com/xraph/jobtrack/job"
	mw "github.com/xraph/jobtrack/middleware"
	"github.com/xraph/jobtrack/observability"
	"github.com/xraph/jobtrack/queue"
	"github.com/xraph/jobtrack/store"
	"github.com/xraph/jobtrack/worker"
)

// CancelCause is the failure cause recorded for jobs cancelled through
// Engine.Cancel.
const CancelCause = "cancelled by user"

// Engine owns the job lifecycle: admission, execution, status reads and
// retention.
type Engine struct {
	config     jobtrack.Config
	logger     *slog.Logger
	now        func() time.Time
	store      store.Store
	extensions *ext.Registry
	registry   *job.Registry
	queue      *queue.Queue
	pool       *worker.Pool
	bo         backoff.Strategy
	mws        []mw.Middleware
	pending    []ext.Extension

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu          sync.Mutex
	started     bool
	stopped     bool
	janitorStop chan struct{}
	janitorDone chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg jobtrack.Config) Option {
	return func(eng *Engine) {
		eng.config = cfg
	}
}

// WithLogger sets the logger for the engine and every component it builds.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) {
		if l != nil {
			eng.logger = l
		}
	}
}

// WithClock sets the time source used for record timestamps and the
// retention cutoff.
func WithClock(now func() time.Time) Option {
	return func(eng *Engine) {
		if now != nil {
			eng.now = now
		}
	}
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.pending = append(eng.pending, e)
	}
}

// WithMiddleware adds middleware to the engine's chain. Custom middleware
// runs inside the default stack, closest to the task handler.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the retry strategy for terminal status writes.
// If not set, backoff.DefaultStrategy() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// New creates an Engine backed by s.
func New(s store.Store, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, jobtrack.ErrNoStore
	}

	eng := &Engine{
		config:   jobtrack.DefaultConfig(),
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		store:    s,
		registry: job.NewRegistry(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if err := eng.config.Validate(); err != nil {
		return nil, err
	}
	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	logger := eng.logger
	eng.extensions = ext.NewRegistry(logger)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/xraph/jobtrack"))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware and observability extension.
	var (
		metricsMw mw.Middleware
		obsExt    *observability.MetricsExtension
	)
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/xraph/jobtrack"))
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter("github.com/xraph/jobtrack/observability"))
	} else {
		metricsMw = mw.Metrics()
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)
	for _, e := range eng.pending {
		eng.extensions.Register(e)
	}
	eng.pending = nil

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(logger, eng.config.JobTimeout),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	eng.queue = queue.New(
		queue.WithCapacity(eng.config.QueueSize),
		queue.WithRateLimit(eng.config.SubmitRate, eng.config.SubmitBurst),
	)

	executor := worker.NewExecutor(eng.registry, eng.extensions, eng.store, eng.bo, logger, allMws...)
	eng.pool = worker.NewPool(eng.queue, executor, logger,
		worker.WithPoolConcurrency(eng.config.Concurrency),
	)

	return eng, nil
}

// Register registers a typed task definition with the engine.
func Register[T, R any](eng *Engine, def *job.Definition[T, R]) {
	job.RegisterDefinition(eng.registry, def)
}

// Submit encodes payload and submits a job for the named task.
func Submit[T any](ctx context.Context, eng *Engine, name string, payload T, opts ...job.Option) (id.JobID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return id.JobID{}, fmt.Errorf("marshal payload for task %q: %w", name, err)
	}
	return eng.SubmitRaw(ctx, name, data, opts...)
}

// SubmitRaw submits a job with a pre-serialized JSON payload and returns its
// ID as soon as the PENDING record exists. A rejected submission never
// creates a record.
func (eng *Engine) SubmitRaw(ctx context.Context, name string, payload []byte, opts ...job.Option) (id.JobID, error) {
	task, ok := eng.registry.Get(name)
	if !ok {
		return id.JobID{}, fmt.Errorf("%w: %q", jobtrack.ErrUnknownTask, name)
	}
	if len(payload) > 0 && !json.Valid(payload) {
		return id.JobID{}, fmt.Errorf("%w: payload for task %q is not valid JSON", jobtrack.ErrInvalidPayload, name)
	}

	jobOpts := task.Opts
	for _, opt := range opts {
		opt(&jobOpts)
	}

	res, err := eng.queue.Reserve()
	if err != nil {
		eng.logger.Warn("job rejected",
			slog.String("job_name", name),
			slog.String("error", err.Error()),
		)
		return id.JobID{}, err
	}

	rec := job.NewRecord(name, payload, jobOpts, eng.now())
	if err := eng.store.CreateJob(ctx, rec); err != nil {
		res.Cancel()
		return id.JobID{}, fmt.Errorf("create job: %w", err)
	}

	if err := res.Commit(rec); err != nil {
		// The queue closed between reserve and commit. Nothing will run
		// the record, so remove it.
		if delErr := eng.store.DeleteJob(context.WithoutCancel(ctx), rec.ID); delErr != nil {
			eng.logger.Error("failed to remove unqueued job",
				slog.String("job_id", rec.ID.String()),
				slog.String("error", delErr.Error()),
			)
		}
		return id.JobID{}, err
	}

	eng.logger.Debug("job submitted",
		slog.String("job_id", rec.ID.String()),
		slog.String("job_name", name),
	)
	eng.extensions.EmitJobSubmitted(ctx, rec)
	return rec.ID, nil
}

// Status returns a snapshot of the job's record. Malformed, unknown and
// evicted IDs all yield ErrJobNotFound.
func (eng *Engine) Status(ctx context.Context, jobID string) (*job.Record, error) {
	jid, err := id.ParseJobID(jobID)
	if err != nil {
		return nil, jobtrack.ErrJobNotFound
	}
	return eng.store.GetJob(ctx, jid)
}

// Cancel stops a job. A PENDING job is failed in the store and skipped when
// a worker reaches it. A running job has its context cancelled and the
// worker records the failure. Finished jobs return ErrInvalidTransition.
func (eng *Engine) Cancel(ctx context.Context, jobID string) error {
	jid, err := id.ParseJobID(jobID)
	if err != nil {
		return jobtrack.ErrJobNotFound
	}

	rec, err := eng.store.GetJob(ctx, jid)
	if err != nil {
		return err
	}
	if st := rec.State(); st.IsTerminal() {
		return fmt.Errorf("%w: job already %s", jobtrack.ErrInvalidTransition, st)
	}

	if rec.State() == job.StateProgress && eng.pool.Cancel(jid, CancelCause) {
		eng.logger.Info("job cancellation requested", slog.String("job_id", jobID))
		return nil
	}

	f := job.Cancelled(CancelCause)
	updated, err := eng.store.UpdateJob(ctx, jid, job.Failed{Failure: f})
	if err != nil {
		return err
	}
	// A worker may have claimed it after the read above.
	eng.pool.Cancel(jid, CancelCause)

	eng.logger.Info("job cancelled", slog.String("job_id", jobID))
	eng.extensions.EmitJobFailed(ctx, updated, f)
	return nil
}

// Stats is a point-in-time summary of the engine's jobs.
type Stats struct {
	Pending     int64 `json:"pending"`
	Progress    int64 `json:"progress"`
	Success     int64 `json:"success"`
	Failure     int64 `json:"failure"`
	Queued      int   `json:"queued"`
	Active      int   `json:"active"`
	Concurrency int   `json:"concurrency"`
}

// Stats counts retained records per state and reports queue and pool load.
func (eng *Engine) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		Queued:      eng.queue.Len(),
		Active:      eng.pool.ActiveCount(),
		Concurrency: eng.pool.Concurrency(),
	}
	for _, c := range []struct {
		state job.State
		dst   *int64
	}{
		{job.StatePending, &st.Pending},
		{job.StateProgress, &st.Progress},
		{job.StateSuccess, &st.Success},
		{job.StateFailure, &st.Failure},
	} {
		n, err := eng.store.CountJobs(ctx, job.CountOpts{State: c.state})
		if err != nil {
			return Stats{}, fmt.Errorf("count %s jobs: %w", c.state, err)
		}
		*c.dst = n
	}
	return st, nil
}

// Sweep evicts records last updated before now minus the retention window
// and returns how many were removed.
func (eng *Engine) Sweep(ctx context.Context) (int, error) {
	cutoff := eng.now().Add(-eng.config.Retention)
	n, err := eng.store.SweepJobs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep jobs: %w", err)
	}
	if n > 0 {
		eng.logger.Debug("expired jobs swept", slog.Int("removed", n))
		eng.extensions.EmitJobsSwept(ctx, n)
	}
	return n, nil
}

// Start begins job processing and the retention sweeper.
func (eng *Engine) Start(ctx context.Context) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	if eng.started {
		return errors.New("jobtrack: engine already started")
	}
	if eng.stopped {
		return errors.New("jobtrack: engine stopped")
	}
	if err := eng.pool.Start(ctx); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	eng.janitorStop = make(chan struct{})
	eng.janitorDone = make(chan struct{})
	go eng.janitor(eng.config.SweepInterval)

	eng.started = true
	eng.logger.Info("jobtrack engine started",
		slog.String("worker_id", eng.pool.WorkerID().String()),
		slog.Int("concurrency", eng.pool.Concurrency()),
	)
	return nil
}

// Stop drains the worker pool, stops the sweeper, notifies extensions and
// closes the store. Jobs still queued or running when ctx expires are
// failed.
func (eng *Engine) Stop(ctx context.Context) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	if eng.stopped {
		return nil
	}
	eng.stopped = true

	var errs []error
	if err := eng.pool.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop worker pool: %w", err))
	}
	if eng.started {
		close(eng.janitorStop)
		<-eng.janitorDone
	}

	eng.extensions.EmitShutdown(ctx)

	if err := eng.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	eng.logger.Info("jobtrack engine stopped")
	return errors.Join(errs...)
}

func (eng *Engine) janitor(interval time.Duration) {
	defer close(eng.janitorDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-eng.janitorStop:
			return
		case <-ticker.C:
			if _, err := eng.Sweep(context.Background()); err != nil {
				eng.logger.Warn("retention sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Config returns the engine configuration.
func (eng *Engine) Config() jobtrack.Config { return eng.config }

// Logger returns the engine logger.
func (eng *Engine) Logger() *slog.Logger { return eng.logger }

// Store returns the job store.
func (eng *Engine) Store() store.Store { return eng.store }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the task registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }
