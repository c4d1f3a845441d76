// Package store defines the persistence interface used by the engine.
//
// A backend implements [job.Store] plus Ping and Close:
//
//	type Store interface {
//	    job.Store
//
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory: sharded in-memory store for a single process
//   - store/redis: Redis backend shared by several processes
//
// # Usage
//
//	import "github.com/xraph/jobtrack/store/redis"
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client, redis.WithTTL(time.Hour))
//	defer s.Close()
//
//	eng, err := engine.New(s)
//
// # Retention
//
// Records are kept for a retention window counted from their last update.
// The engine calls SweepJobs periodically; the Redis backend additionally
// sets a key TTL so records expire even if no sweeper runs.
//
// Backends are verified against the shared suite in store/storetest.
package store
