package queue_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/jobtrack"
	"github.com/xraph/jobtrack/job"
	"github.com/xraph/jobtrack/queue"
)

func newRecord(name string) *job.Record {
	return job.NewRecord(name, nil, job.Options{}, time.Now().UTC())
}

func push(t *testing.T, q *queue.Queue, rec *job.Record) {
	t.Helper()
	res, err := q.Reserve()
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := res.Commit(rec); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestQueue_FIFO(t *testing.T) {
	q := queue.New()
	a, b, c := newRecord("a"), newRecord("b"), newRecord("c")
	push(t, q, a)
	push(t, q, b)
	push(t, q, c)

	if q.Len() != 3 {
		t.Fatalf("Len = %d, want 3", q.Len())
	}
	for _, want := range []*job.Record{a, b, c} {
		got, ok := q.Pop(nil)
		if !ok {
			t.Fatal("expected a record")
		}
		if got != want {
			t.Errorf("popped %s, want %s", got.Name, want.Name)
		}
	}
}

func TestQueue_CapacityCountsReservations(t *testing.T) {
	q := queue.New(queue.WithCapacity(2))

	r1, err := q.Reserve()
	if err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if _, err := q.Reserve(); err != nil {
		t.Fatalf("second reserve: %v", err)
	}

	_, err = q.Reserve()
	if !errors.Is(err, jobtrack.ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if !errors.Is(err, jobtrack.ErrRejected) {
		t.Fatal("ErrQueueFull must wrap ErrRejected")
	}

	r1.Cancel()
	if _, err := q.Reserve(); err != nil {
		t.Fatalf("reserve after cancel: %v", err)
	}
}

func TestQueue_RateLimit(t *testing.T) {
	q := queue.New(queue.WithRateLimit(0.001, 2))

	for i := range 2 {
		res, err := q.Reserve()
		if err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
		res.Cancel()
	}

	_, err := q.Reserve()
	if !errors.Is(err, jobtrack.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestQueue_CloseRejectsAndDrains(t *testing.T) {
	q := queue.New()
	pending, err := q.Reserve()
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	queued := newRecord("queued")
	push(t, q, queued)

	q.Close()
	q.Close() // idempotent

	if _, err := q.Reserve(); !errors.Is(err, jobtrack.ErrPoolStopped) {
		t.Fatalf("reserve after close: err = %v, want ErrPoolStopped", err)
	}
	if err := pending.Commit(newRecord("late")); !errors.Is(err, jobtrack.ErrPoolStopped) {
		t.Fatalf("commit after close: err = %v, want ErrPoolStopped", err)
	}

	got, ok := q.Pop(nil)
	if !ok || got != queued {
		t.Fatal("records queued before close must still be poppable")
	}
	if _, ok := q.Pop(nil); ok {
		t.Fatal("expected Pop to report closed and empty")
	}
}

func TestQueue_DrainEmptiesQueue(t *testing.T) {
	q := queue.New()
	push(t, q, newRecord("a"))
	push(t, q, newRecord("b"))

	drained := q.Drain()
	if len(drained) != 2 {
		t.Fatalf("drained %d, want 2", len(drained))
	}
	if q.Len() != 0 {
		t.Errorf("Len after drain = %d", q.Len())
	}
}

func TestQueue_PopUnblocksOnStop(t *testing.T) {
	q := queue.New()
	stop := make(chan struct{})
	done := make(chan bool)

	go func() {
		_, ok := q.Pop(stop)
		done <- ok
	}()

	close(stop)
	select {
	case ok := <-done:
		if ok {
			t.Error("expected Pop to return false on stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not return after stop")
	}
}

func TestQueue_EachRecordPoppedOnce(t *testing.T) {
	const n = 200
	q := queue.New()

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				rec, ok := q.Pop(nil)
				if !ok {
					return
				}
				mu.Lock()
				seen[rec.ID.String()]++
				mu.Unlock()
			}
		}()
	}

	for range n {
		push(t, q, newRecord("x"))
	}
	q.Close()
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("popped %d distinct records, want %d", len(seen), n)
	}
	for jobID, count := range seen {
		if count != 1 {
			t.Errorf("%s popped %d times", jobID, count)
		}
	}
}
