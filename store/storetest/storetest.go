// Package storetest is a conformance suite that every job.Store backend
// runs from its own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/jobtrack"
	"github.com/xraph/jobtrack/id"
	"github.com/xraph/jobtrack/job"
)

// Clock is a manually advanced time source shared by a test and the store
// under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock set to start.
func NewClock(start time.Time) *Clock { return &Clock{now: start} }

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Factory builds a fresh, empty store that reads time from clock.
type Factory func(t *testing.T, clock *Clock) job.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(*testing.T, job.Store, *Clock)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CreateDuplicate", testCreateDuplicate},
		{"GetUnknown", testGetUnknown},
		{"SnapshotIsolation", testSnapshotIsolation},
		{"Lifecycle", testLifecycle},
		{"RejectsRegression", testRejectsRegression},
		{"UpdateUnknown", testUpdateUnknown},
		{"Delete", testDelete},
		{"Sweep", testSweep},
		{"Count", testCount},
		{"ConcurrentTerminal", testConcurrentTerminal},
		{"ConcurrentDistinctJobs", testConcurrentDistinctJobs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
			tt.fn(t, newStore(t, clock), clock)
		})
	}
}

func create(t *testing.T, s job.Store, clock *Clock, payload string) *job.Record {
	t.Helper()
	r := job.NewRecord("report", []byte(payload), job.Options{Timeout: time.Minute}, clock.Now())
	if err := s.CreateJob(context.Background(), r); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return r
}

func testCreateAndGet(t *testing.T, s job.Store, clock *Clock) {
	r := create(t, s, clock, `{"report_type":"monthly"}`)

	got, err := s.GetJob(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ID.String() != r.ID.String() {
		t.Errorf("ID = %s, want %s", got.ID, r.ID)
	}
	if got.Name != "report" {
		t.Errorf("Name = %q", got.Name)
	}
	if string(got.Payload) != `{"report_type":"monthly"}` {
		t.Errorf("Payload = %s", got.Payload)
	}
	if got.State() != job.StatePending {
		t.Errorf("State = %s, want PENDING", got.State())
	}
	if got.Timeout != time.Minute {
		t.Errorf("Timeout = %v", got.Timeout)
	}
	if !got.CreatedAt.Equal(r.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, r.CreatedAt)
	}
}

func testCreateDuplicate(t *testing.T, s job.Store, clock *Clock) {
	r := create(t, s, clock, `{}`)
	err := s.CreateJob(context.Background(), r)
	if !errors.Is(err, jobtrack.ErrJobAlreadyExists) {
		t.Fatalf("err = %v, want ErrJobAlreadyExists", err)
	}
}

func testGetUnknown(t *testing.T, s job.Store, _ *Clock) {
	_, err := s.GetJob(context.Background(), id.NewJobID())
	if !errors.Is(err, jobtrack.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func testSnapshotIsolation(t *testing.T, s job.Store, clock *Clock) {
	ctx := context.Background()
	r := create(t, s, clock, `{"a":1}`)

	got, err := s.GetJob(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	got.Payload[0] = 'X'
	got.Status = job.Failed{Failure: job.Failure{Cause: "tampered"}}

	again, err := s.GetJob(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if again.Payload[0] != '{' || again.State() != job.StatePending {
		t.Fatal("mutating a snapshot changed the stored record")
	}
}

func testLifecycle(t *testing.T, s job.Store, clock *Clock) {
	ctx := context.Background()
	r := create(t, s, clock, `{}`)

	clock.Advance(time.Second)
	got, err := s.UpdateJob(ctx, r.ID, job.InProgress{Progress: job.Step(1, 5, "Processing data...")})
	if err != nil {
		t.Fatalf("to progress: %v", err)
	}
	if got.State() != job.StateProgress || got.StartedAt == nil {
		t.Fatalf("unexpected snapshot after progress: %+v", got)
	}
	if !got.UpdatedAt.After(r.UpdatedAt) {
		t.Error("UpdatedAt was not bumped")
	}

	clock.Advance(time.Second)
	if _, err := s.UpdateJob(ctx, r.ID, job.InProgress{Progress: job.Step(2, 5, "Processing data...")}); err != nil {
		t.Fatalf("progress update: %v", err)
	}
	read, _ := s.GetJob(ctx, r.ID)
	p, ok := read.Progress()
	if !ok || p.CurrentStep != 2 || p.Percent != "40.0%" || p.Status != "Processing data..." {
		t.Fatalf("progress = %+v, %v", p, ok)
	}

	clock.Advance(time.Second)
	if _, err := s.UpdateJob(ctx, r.ID, job.Succeeded{Result: []byte(`{"status":"Completed"}`)}); err != nil {
		t.Fatalf("to success: %v", err)
	}
	read, _ = s.GetJob(ctx, r.ID)
	res, ok := read.Result()
	if !ok || string(res) != `{"status":"Completed"}` {
		t.Fatalf("result = %s, %v", res, ok)
	}
	if read.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	if _, ok := read.Progress(); ok {
		t.Error("terminal record still exposes progress")
	}

	// Idempotent terminal reads.
	again, _ := s.GetJob(ctx, r.ID)
	res2, _ := again.Result()
	if again.State() != job.StateSuccess || string(res2) != string(res) {
		t.Error("terminal read is not stable")
	}
}

func testRejectsRegression(t *testing.T, s job.Store, clock *Clock) {
	ctx := context.Background()
	r := create(t, s, clock, `{}`)

	if _, err := s.UpdateJob(ctx, r.ID, job.Succeeded{}); !errors.Is(err, jobtrack.ErrInvalidTransition) {
		t.Fatalf("PENDING -> SUCCESS: err = %v, want ErrInvalidTransition", err)
	}

	failure := job.Failure{Kind: job.FailureCancelled, Cause: "cancelled by user"}
	if _, err := s.UpdateJob(ctx, r.ID, job.Failed{Failure: failure}); err != nil {
		t.Fatalf("PENDING -> FAILURE: %v", err)
	}
	for _, next := range []job.Status{job.InProgress{}, job.Succeeded{}, job.Failed{}} {
		if _, err := s.UpdateJob(ctx, r.ID, next); !errors.Is(err, jobtrack.ErrInvalidTransition) {
			t.Fatalf("FAILURE -> %s: err = %v, want ErrInvalidTransition", next.State(), err)
		}
	}

	read, _ := s.GetJob(ctx, r.ID)
	f, ok := read.Failure()
	if !ok || f != failure {
		t.Fatalf("failure = %+v, %v; want %+v", f, ok, failure)
	}
}

func testUpdateUnknown(t *testing.T, s job.Store, _ *Clock) {
	_, err := s.UpdateJob(context.Background(), id.NewJobID(), job.InProgress{})
	if !errors.Is(err, jobtrack.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func testDelete(t *testing.T, s job.Store, clock *Clock) {
	ctx := context.Background()
	r := create(t, s, clock, `{}`)

	if err := s.DeleteJob(ctx, r.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := s.GetJob(ctx, r.ID); !errors.Is(err, jobtrack.ErrJobNotFound) {
		t.Fatalf("after delete: err = %v, want ErrJobNotFound", err)
	}
	if err := s.DeleteJob(ctx, r.ID); !errors.Is(err, jobtrack.ErrJobNotFound) {
		t.Fatalf("second delete: err = %v, want ErrJobNotFound", err)
	}
}

func testSweep(t *testing.T, s job.Store, clock *Clock) {
	ctx := context.Background()
	old := create(t, s, clock, `{}`)

	clock.Advance(30 * time.Minute)
	fresh := create(t, s, clock, `{}`)

	clock.Advance(31 * time.Minute)
	removed, err := s.SweepJobs(ctx, clock.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("SweepJobs: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := s.GetJob(ctx, old.ID); !errors.Is(err, jobtrack.ErrJobNotFound) {
		t.Errorf("old record: err = %v, want ErrJobNotFound", err)
	}
	if _, err := s.GetJob(ctx, fresh.ID); err != nil {
		t.Errorf("fresh record evicted: %v", err)
	}
}

func testCount(t *testing.T, s job.Store, clock *Clock) {
	ctx := context.Background()
	a := create(t, s, clock, `{}`)
	create(t, s, clock, `{}`)
	create(t, s, clock, `{}`)
	if _, err := s.UpdateJob(ctx, a.ID, job.InProgress{}); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	tests := []struct {
		state job.State
		want  int64
	}{
		{"", 3},
		{job.StatePending, 2},
		{job.StateProgress, 1},
		{job.StateSuccess, 0},
	}
	for _, tt := range tests {
		got, err := s.CountJobs(ctx, job.CountOpts{State: tt.state})
		if err != nil {
			t.Fatalf("CountJobs(%q): %v", tt.state, err)
		}
		if got != tt.want {
			t.Errorf("CountJobs(%q) = %d, want %d", tt.state, got, tt.want)
		}
	}
}

// Many writers racing to finish the same job: exactly one terminal
// transition wins and the others see ErrInvalidTransition.
func testConcurrentTerminal(t *testing.T, s job.Store, clock *Clock) {
	ctx := context.Background()
	r := create(t, s, clock, `{}`)
	if _, err := s.UpdateJob(ctx, r.ID, job.InProgress{}); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	const writers = 16
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var next job.Status = job.Succeeded{Result: []byte(`1`)}
			if i%2 == 1 {
				next = job.Failed{Failure: job.Failure{Kind: job.FailureExecution, Cause: "boom"}}
			}
			_, err := s.UpdateJob(ctx, r.ID, next)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, jobtrack.ErrInvalidTransition):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("%d terminal transitions succeeded, want exactly 1", wins.Load())
	}
}

func testConcurrentDistinctJobs(t *testing.T, s job.Store, clock *Clock) {
	ctx := context.Background()
	const n = 32

	records := make([]*job.Record, n)
	for i := range records {
		records[i] = create(t, s, clock, `{}`)
	}

	var wg sync.WaitGroup
	for _, r := range records {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for step := 1; step <= 5; step++ {
				if _, err := s.UpdateJob(ctx, r.ID, job.InProgress{Progress: job.Step(step, 5, "")}); err != nil {
					t.Errorf("progress %d: %v", step, err)
					return
				}
				if _, err := s.GetJob(ctx, r.ID); err != nil {
					t.Errorf("get: %v", err)
					return
				}
			}
			if _, err := s.UpdateJob(ctx, r.ID, job.Succeeded{Result: []byte(`true`)}); err != nil {
				t.Errorf("success: %v", err)
			}
		}()
	}
	wg.Wait()

	count, err := s.CountJobs(ctx, job.CountOpts{State: job.StateSuccess})
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if count != n {
		t.Errorf("succeeded = %d, want %d", count, n)
	}
}
