// Package memory implements job.Store in process memory.
//
// Records are spread over a fixed number of shards, each with its own
// RWMutex, so reads and writes of different jobs rarely touch the same
// lock while updates of one job always serialize on its shard. Nothing
// survives a restart.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/xraph/jobtrack"
	"github.com/xraph/jobtrack/id"
	"github.com/xraph/jobtrack/job"
	"github.com/xraph/jobtrack/store"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

const defaultShards = 32

type shard struct {
	mu   sync.RWMutex
	jobs map[string]*job.Record
}

// Store is an in-memory job.Store. Safe for concurrent access.
type Store struct {
	shards    []*shard
	now       func() time.Time
	retention time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithShards sets the number of lock shards. Values below 1 are ignored.
func WithShards(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// WithClock replaces time.Now, mainly for retention tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRetention enables lazy eviction: GetJob and UpdateJob treat a record
// older than d as already gone. SweepJobs still reclaims the memory.
func WithRetention(d time.Duration) Option {
	return func(s *Store) { s.retention = d }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		shards: make([]*shard, defaultShards),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{jobs: make(map[string]*job.Record)}
	}
	return s
}

// Ping always succeeds for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *Store) expired(r *job.Record) bool {
	return s.retention > 0 && r.UpdatedAt.Before(s.now().Add(-s.retention))
}

// CreateJob persists a new record in PENDING state.
func (s *Store) CreateJob(_ context.Context, r *job.Record) error {
	key := r.ID.String()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if existing, ok := sh.jobs[key]; ok && !s.expired(existing) {
		return jobtrack.ErrJobAlreadyExists
	}
	cp := r.Clone()
	cp.Status = job.Pending{}
	sh.jobs[key] = cp
	return nil
}

// UpdateJob validates and applies a transition under the shard lock.
func (s *Store) UpdateJob(_ context.Context, jobID id.JobID, status job.Status) (*job.Record, error) {
	key := jobID.String()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, ok := sh.jobs[key]
	if !ok {
		return nil, jobtrack.ErrJobNotFound
	}
	if s.expired(r) {
		delete(sh.jobs, key)
		return nil, jobtrack.ErrJobNotFound
	}

	if res, isSuccess := status.(job.Succeeded); isSuccess {
		status = job.Succeeded{Result: append([]byte(nil), res.Result...)}
	}
	if err := r.Transition(status, s.now()); err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

// GetJob returns a snapshot of the record.
func (s *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Record, error) {
	key := jobID.String()
	sh := s.shardFor(key)

	sh.mu.RLock()
	r, ok := sh.jobs[key]
	if ok && !s.expired(r) {
		cp := r.Clone()
		sh.mu.RUnlock()
		return cp, nil
	}
	sh.mu.RUnlock()

	if ok {
		sh.mu.Lock()
		if r, still := sh.jobs[key]; still && s.expired(r) {
			delete(sh.jobs, key)
		}
		sh.mu.Unlock()
	}
	return nil, jobtrack.ErrJobNotFound
}

// DeleteJob removes a record by ID.
func (s *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	key := jobID.String()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.jobs[key]; !ok {
		return jobtrack.ErrJobNotFound
	}
	delete(sh.jobs, key)
	return nil
}

// SweepJobs removes records last updated before cutoff.
func (s *Store) SweepJobs(_ context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, r := range sh.jobs {
			if r.UpdatedAt.Before(cutoff) {
				delete(sh.jobs, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// CountJobs returns the number of retained records matching opts.
func (s *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	var count int64
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, r := range sh.jobs {
			if s.expired(r) {
				continue
			}
			if opts.State != "" && r.State() != opts.State {
				continue
			}
			count++
		}
		sh.mu.RUnlock()
	}
	return count, nil
}
