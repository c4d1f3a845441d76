package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobtrack"
	"github.com/xraph/jobtrack/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// maxTxRetries bounds optimistic retries when a watched key changes.
const maxTxRetries = 64

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTTL sets the key TTL applied on every write. Zero disables expiry
// and leaves eviction to SweepJobs.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// WithCodec sets the codec for state details. Defaults to JSONCodec.
func WithCodec(c Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithKeyPrefix namespaces every key. Defaults to "jobtrack:".
func WithKeyPrefix(p string) Option {
	return func(s *Store) { s.prefix = p }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store implements store.Store backed by Redis.
type Store struct {
	client goredis.UniversalClient
	logger *slog.Logger
	codec  Codec
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// New creates a Redis-backed store. The caller owns the client lifecycle.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		logger: slog.Default(),
		codec:  JSONCodec{},
		prefix: defaultKeyPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.UniversalClient { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close is a no-op; the caller owns the Redis client.
func (s *Store) Close() error { return nil }

// unavailable wraps a backend failure so callers can match
// ErrStoreUnavailable without losing the cause.
func unavailable(op string, err error) error {
	return fmt.Errorf("jobtrack/redis: %s: %w: %w", op, jobtrack.ErrStoreUnavailable, err)
}

// watch runs fn in an optimistic transaction on keys, retrying while
// another client modifies them first.
func (s *Store) watch(ctx context.Context, op string, fn func(*goredis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		var fnErr error
		err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
			fnErr = fn(tx)
			return fnErr
		}, keys...)
		switch {
		case errors.Is(err, goredis.TxFailedErr):
			continue
		case err == nil, err == fnErr: //nolint:errorlint // identity check on fn's own error
			return err
		default:
			// WATCH itself failed before fn ran.
			return unavailable(op, err)
		}
	}
	return unavailable(op, errors.New("transaction retries exhausted"))
}
