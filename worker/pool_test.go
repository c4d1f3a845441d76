package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/jobtrack"
	"github.com/xraph/jobtrack/backoff"
	"github.com/xraph/jobtrack/ext"
	"github.com/xraph/jobtrack/id"
	"github.com/xraph/jobtrack/job"
	"github.com/xraph/jobtrack/middleware"
	"github.com/xraph/jobtrack/queue"
	"github.com/xraph/jobtrack/store/memory"
	"github.com/xraph/jobtrack/worker"
)

type harness struct {
	pool  *worker.Pool
	store job.Store
	queue *queue.Queue
	reg   *job.Registry
}

func setupTestPool(t *testing.T, concurrency int, s job.Store) *harness {
	t.Helper()
	logger := slog.Default()
	if s == nil {
		s = memory.New()
	}
	reg := job.NewRegistry()
	extensions := ext.NewRegistry(logger)
	q := queue.New()

	executor := worker.NewExecutor(
		reg, extensions, s, backoff.NewConstant(time.Millisecond), logger,
		middleware.Recover(logger),
		middleware.Timeout(logger, 0),
	)
	pool := worker.NewPool(q, executor, logger, worker.WithPoolConcurrency(concurrency))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})
	return &harness{pool: pool, store: s, queue: q, reg: reg}
}

func (h *harness) submit(t *testing.T, name string, payload any, opts ...job.Option) *job.Record {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	o := job.DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	rec := job.NewRecord(name, raw, o, time.Now().UTC())

	res, err := h.queue.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := h.store.CreateJob(context.Background(), rec); err != nil {
		res.Cancel()
		t.Fatalf("CreateJob: %v", err)
	}
	if err := res.Commit(rec); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return rec
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

// waitFor polls the store until cond holds for the record or the deadline
// passes.
func waitFor(t *testing.T, s job.Store, jobID id.JobID, cond func(*job.Record) bool) *job.Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, err := s.GetJob(context.Background(), jobID)
		if err == nil && cond(rec) {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for job %s (last: %+v, err: %v)", jobID, rec, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func terminal(r *job.Record) bool { return r.State().IsTerminal() }

type greeting struct {
	Name string `json:"name"`
}

func TestPool_StartStop(t *testing.T) {
	h := setupTestPool(t, 2, nil)
	h.start(t)

	// Double start should be no-op.
	h.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	// Double stop should be no-op.
	if err := h.pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected double-stop error: %v", err)
	}
}

func TestPool_ProcessesJob(t *testing.T) {
	h := setupTestPool(t, 1, nil)
	job.RegisterDefinition(h.reg, job.NewDefinition("greet",
		func(_ context.Context, p greeting, _ job.Reporter) (string, error) {
			return "hello " + p.Name, nil
		}))
	h.start(t)

	rec := h.submit(t, "greet", greeting{Name: "Alice"})
	got := waitFor(t, h.store, rec.ID, terminal)

	res, ok := got.Result()
	if !ok {
		t.Fatalf("state = %s, want SUCCESS", got.State())
	}
	if string(res) != `"hello Alice"` {
		t.Errorf("result = %s", res)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("lifecycle timestamps not set")
	}
}

func TestPool_HandlerError(t *testing.T) {
	h := setupTestPool(t, 1, nil)
	job.RegisterDefinition(h.reg, job.NewDefinition("fail",
		func(_ context.Context, _ greeting, _ job.Reporter) (string, error) {
			return "", errors.New("disk full")
		}))
	h.start(t)

	rec := h.submit(t, "fail", greeting{})
	got := waitFor(t, h.store, rec.ID, terminal)

	f, ok := got.Failure()
	if !ok {
		t.Fatalf("state = %s, want FAILURE", got.State())
	}
	if f.Kind != job.FailureExecution || f.Cause != "disk full" {
		t.Errorf("failure = %+v", f)
	}
}

func TestPool_PanicIsRecorded(t *testing.T) {
	h := setupTestPool(t, 1, nil)
	job.RegisterDefinition(h.reg, job.NewDefinition("boom",
		func(_ context.Context, _ greeting, _ job.Reporter) (string, error) {
			panic("kaboom")
		}))
	job.RegisterDefinition(h.reg, job.NewDefinition("greet",
		func(_ context.Context, p greeting, _ job.Reporter) (string, error) {
			return p.Name, nil
		}))
	h.start(t)

	bad := h.submit(t, "boom", greeting{})
	got := waitFor(t, h.store, bad.ID, terminal)
	if f, _ := got.Failure(); f.Kind != job.FailurePanic {
		t.Fatalf("failure = %+v, want panic", f)
	}

	// The single worker survived the panic.
	good := h.submit(t, "greet", greeting{Name: "still alive"})
	if got := waitFor(t, h.store, good.ID, terminal); got.State() != job.StateSuccess {
		t.Fatalf("state = %s, want SUCCESS", got.State())
	}
}

func TestPool_ProgressVisible(t *testing.T) {
	h := setupTestPool(t, 1, nil)
	release := make(chan struct{})
	job.RegisterDefinition(h.reg, job.NewDefinition("steps",
		func(ctx context.Context, _ greeting, report job.Reporter) (int, error) {
			_ = report.Report(ctx, job.Step(2, 5, "Processing data..."))
			<-release
			return 5, nil
		}))
	h.start(t)

	rec := h.submit(t, "steps", greeting{})
	got := waitFor(t, h.store, rec.ID, func(r *job.Record) bool {
		p, ok := r.Progress()
		return ok && p.CurrentStep == 2
	})
	p, _ := got.Progress()
	if p.TotalSteps != 5 || p.Percent != "40.0%" || p.Status != "Processing data..." {
		t.Errorf("progress = %+v", p)
	}

	close(release)
	if got := waitFor(t, h.store, rec.ID, terminal); got.State() != job.StateSuccess {
		t.Fatalf("state = %s, want SUCCESS", got.State())
	}
}

func TestPool_ConcurrencyBound(t *testing.T) {
	const k = 2
	h := setupTestPool(t, k, nil)

	var (
		running atomic.Int32
		peak    atomic.Int32
	)
	release := make(chan struct{})
	job.RegisterDefinition(h.reg, job.NewDefinition("block",
		func(_ context.Context, _ greeting, _ job.Reporter) (bool, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return true, nil
		}))
	h.start(t)

	recs := make([]*job.Record, 6)
	for i := range recs {
		recs[i] = h.submit(t, "block", greeting{})
	}

	// Wait until k are running; the rest must stay PENDING.
	deadline := time.Now().Add(5 * time.Second)
	for running.Load() < k {
		if time.Now().After(deadline) {
			t.Fatal("workers never became busy")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	pending, err := h.store.CountJobs(context.Background(), job.CountOpts{State: job.StatePending})
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if pending != int64(len(recs)-k) {
		t.Errorf("pending = %d, want %d", pending, len(recs)-k)
	}
	if h.pool.ActiveCount() != k {
		t.Errorf("ActiveCount = %d, want %d", h.pool.ActiveCount(), k)
	}

	close(release)
	for _, r := range recs {
		waitFor(t, h.store, r.ID, terminal)
	}
	if peak.Load() != k {
		t.Errorf("peak concurrency = %d, want %d", peak.Load(), k)
	}
}

func TestPool_CancelRunningJob(t *testing.T) {
	h := setupTestPool(t, 1, nil)
	started := make(chan struct{})
	job.RegisterDefinition(h.reg, job.NewDefinition("wait",
		func(ctx context.Context, _ greeting, _ job.Reporter) (bool, error) {
			close(started)
			<-ctx.Done()
			return false, ctx.Err()
		}))
	h.start(t)

	rec := h.submit(t, "wait", greeting{})
	<-started

	if !h.pool.Cancel(rec.ID, "cancelled by user") {
		t.Fatal("Cancel reported job not running")
	}
	got := waitFor(t, h.store, rec.ID, terminal)
	f, ok := got.Failure()
	if !ok || f.Kind != job.FailureCancelled || f.Cause != "cancelled by user" {
		t.Fatalf("failure = %+v (state %s)", f, got.State())
	}

	if h.pool.Cancel(id.NewJobID(), "x") {
		t.Error("Cancel of unknown job should report false")
	}
}

func TestPool_SkipsJobCancelledWhileQueued(t *testing.T) {
	h := setupTestPool(t, 1, nil)
	var calls atomic.Int32
	job.RegisterDefinition(h.reg, job.NewDefinition("count",
		func(_ context.Context, _ greeting, _ job.Reporter) (bool, error) {
			calls.Add(1)
			return true, nil
		}))

	rec := h.submit(t, "count", greeting{})
	if _, err := h.store.UpdateJob(context.Background(), rec.ID, job.Failed{Failure: job.Cancelled("cancelled by user")}); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	marker := h.submit(t, "count", greeting{})
	h.start(t)

	waitFor(t, h.store, marker.ID, terminal)
	if calls.Load() != 1 {
		t.Errorf("handler ran %d times, want 1", calls.Load())
	}
	got, _ := h.store.GetJob(context.Background(), rec.ID)
	if f, _ := got.Failure(); f.Kind != job.FailureCancelled {
		t.Errorf("cancelled job overwritten: %+v", got.Status)
	}
}

func TestPool_Timeout(t *testing.T) {
	h := setupTestPool(t, 1, nil)
	job.RegisterDefinition(h.reg, job.NewDefinition("slow",
		func(ctx context.Context, _ greeting, _ job.Reporter) (bool, error) {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(5 * time.Second):
				return true, nil
			}
		}))
	h.start(t)

	rec := h.submit(t, "slow", greeting{}, job.WithTimeout(20*time.Millisecond))
	got := waitFor(t, h.store, rec.ID, terminal)
	if f, _ := got.Failure(); f.Kind != job.FailureTimeout {
		t.Fatalf("failure = %+v, want timeout", f)
	}
}

func TestPool_StopDrainsQueue(t *testing.T) {
	h := setupTestPool(t, 1, nil)
	job.RegisterDefinition(h.reg, job.NewDefinition("quick",
		func(_ context.Context, _ greeting, _ job.Reporter) (bool, error) {
			time.Sleep(5 * time.Millisecond)
			return true, nil
		}))

	recs := make([]*job.Record, 4)
	for i := range recs {
		recs[i] = h.submit(t, "quick", greeting{})
	}
	h.start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.pool.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for _, r := range recs {
		got, err := h.store.GetJob(context.Background(), r.ID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.State() != job.StateSuccess {
			t.Errorf("job %s state = %s, want SUCCESS", r.ID, got.State())
		}
	}

	if _, err := h.queue.Reserve(); !errors.Is(err, jobtrack.ErrPoolStopped) {
		t.Errorf("Reserve after stop: err = %v, want ErrPoolStopped", err)
	}
}

func TestPool_StopDeadlineCancelsAndFailsLeftovers(t *testing.T) {
	h := setupTestPool(t, 1, nil)
	started := make(chan struct{}, 1)
	job.RegisterDefinition(h.reg, job.NewDefinition("wait",
		func(ctx context.Context, _ greeting, _ job.Reporter) (bool, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-ctx.Done()
			return false, ctx.Err()
		}))
	h.start(t)

	recs := make([]*job.Record, 3)
	for i := range recs {
		recs[i] = h.submit(t, "wait", greeting{})
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.pool.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for _, r := range recs {
		got, err := h.store.GetJob(context.Background(), r.ID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		f, ok := got.Failure()
		if !ok || f.Kind != job.FailureCancelled || f.Cause != worker.StopCause {
			t.Errorf("job %s: state %s failure %+v", r.ID, got.State(), f)
		}
	}
}

// flakyStore fails the first n terminal writes with a transient error.
type flakyStore struct {
	job.Store
	mu    sync.Mutex
	fails int
}

func (f *flakyStore) UpdateJob(ctx context.Context, jobID id.JobID, st job.Status) (*job.Record, error) {
	if st.State().IsTerminal() {
		f.mu.Lock()
		if f.fails > 0 {
			f.fails--
			f.mu.Unlock()
			return nil, jobtrack.ErrStoreUnavailable
		}
		f.mu.Unlock()
	}
	return f.Store.UpdateJob(ctx, jobID, st)
}

func TestExecutor_RetriesTerminalWrite(t *testing.T) {
	fs := &flakyStore{Store: memory.New(), fails: 3}
	h := setupTestPool(t, 1, fs)
	job.RegisterDefinition(h.reg, job.NewDefinition("greet",
		func(_ context.Context, p greeting, _ job.Reporter) (string, error) {
			return p.Name, nil
		}))
	h.start(t)

	rec := h.submit(t, "greet", greeting{Name: "Bob"})
	got := waitFor(t, h.store, rec.ID, terminal)
	if got.State() != job.StateSuccess {
		t.Fatalf("state = %s, want SUCCESS", got.State())
	}
}

func TestExecutor_UnknownTaskFails(t *testing.T) {
	h := setupTestPool(t, 1, nil)
	h.start(t)

	rec := h.submit(t, "nobody-home", greeting{})
	got := waitFor(t, h.store, rec.ID, terminal)
	if f, ok := got.Failure(); !ok || f.Kind != job.FailureExecution {
		t.Fatalf("failure = %+v, %v", f, ok)
	}
}
