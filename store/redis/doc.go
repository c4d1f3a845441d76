// Package redis implements store.Store on Redis so that several processes
// can share one view of job state.
//
// Each job is a Hash at "<prefix>job:<id>" holding its fields, with the
// state-specific payload (progress, result or failure) encoded by a Codec.
// Every write refreshes the key TTL to the retention window, so records
// expire even when no sweeper runs. A Sorted Set at "<prefix>jobs" scored
// by last-update time indexes the hashes for SweepJobs and CountJobs.
//
// Updates run inside WATCH/MULTI transactions and retry on conflict, which
// serializes concurrent writers to the same job without a server-side lock.
//
// The caller owns the client lifecycle:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client, redis.WithTTL(time.Hour))
//	if err := s.Ping(ctx); err != nil { ... }
package redis
