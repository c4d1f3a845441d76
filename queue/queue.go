package queue

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/jobtrack"
	"github.com/xraph/jobtrack/job"
)

// Queue is a FIFO of records waiting for a worker. It is safe for
// concurrent use.
type Queue struct {
	mu       sync.Mutex
	items    []*job.Record
	reserved int
	capacity int
	limiter  *rate.Limiter
	closed   bool

	notify chan struct{}
	done   chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithCapacity bounds the number of waiting jobs, counting reservations
// not yet committed. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(q *Queue) { q.capacity = n }
}

// WithRateLimit caps sustained reservations per second. Burst defaults to
// 1 when zero. A non-positive perSecond disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(q *Queue) {
		if perSecond <= 0 {
			q.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		q.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Reservation is a claimed slot in the queue. Exactly one of Commit or
// Cancel must be called.
type Reservation struct {
	q    *Queue
	used bool
}

// Reserve claims a slot for a new job. It fails with ErrPoolStopped after
// Close, ErrQueueFull at capacity and ErrRateLimited when the token bucket
// is empty. All three wrap jobtrack.ErrRejected.
func (q *Queue) Reserve() (*Reservation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, jobtrack.ErrPoolStopped
	}
	if q.capacity > 0 && len(q.items)+q.reserved >= q.capacity {
		return nil, jobtrack.ErrQueueFull
	}
	if q.limiter != nil && !q.limiter.Allow() {
		return nil, jobtrack.ErrRateLimited
	}
	q.reserved++
	return &Reservation{q: q}, nil
}

// Commit appends rec to the queue. It fails with ErrPoolStopped if the
// queue was closed after the slot was reserved; the caller then owns rec.
func (r *Reservation) Commit(rec *job.Record) error {
	q := r.q
	q.mu.Lock()
	if r.used {
		q.mu.Unlock()
		return nil
	}
	r.used = true
	q.reserved--
	if q.closed {
		q.mu.Unlock()
		return jobtrack.ErrPoolStopped
	}
	q.items = append(q.items, rec)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Cancel releases the slot without enqueuing anything.
func (r *Reservation) Cancel() {
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if r.used {
		return
	}
	r.used = true
	q.reserved--
}

// Pop blocks until a record is available and returns it. It returns false
// when the queue is closed and empty, or when stop is closed.
func (q *Queue) Pop(stop <-chan struct{}) (*job.Record, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			rec := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return rec, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, false
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-stop:
			return nil, false
		}
	}
}

// Close stops new reservations. Records already queued remain poppable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Drain removes and returns every queued record.
func (q *Queue) Drain() []*job.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
