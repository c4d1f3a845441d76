package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobtrack"
	"github.com/xraph/jobtrack/id"
	"github.com/xraph/jobtrack/job"
)

// CreateJob stores the record as a Hash in PENDING state and indexes it.
func (s *Store) CreateJob(ctx context.Context, r *job.Record) error {
	rec := r.Clone()
	rec.Status = job.Pending{}
	key := s.jobKey(rec.ID.String())

	fields, err := s.recordToMap(rec)
	if err != nil {
		return fmt.Errorf("jobtrack/redis: create job encode: %w", err)
	}

	return s.watch(ctx, "create job", func(tx *goredis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return unavailable("create job exists", err)
		}
		if exists > 0 {
			return jobtrack.ErrJobAlreadyExists
		}
		if _, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			s.write(ctx, pipe, key, rec, fields)
			return nil
		}); err != nil {
			return unavailable("create job", err)
		}
		return nil
	}, key)
}

// UpdateJob reads the record, validates the transition and writes it back
// in one optimistic transaction.
func (s *Store) UpdateJob(ctx context.Context, jobID id.JobID, status job.Status) (*job.Record, error) {
	key := s.jobKey(jobID.String())

	var updated *job.Record
	err := s.watch(ctx, "update job", func(tx *goredis.Tx) error {
		vals, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return unavailable("update job get", err)
		}
		if len(vals) == 0 {
			return jobtrack.ErrJobNotFound
		}
		rec, err := s.mapToRecord(vals)
		if err != nil {
			return err
		}
		if err := rec.Transition(status, s.now()); err != nil {
			return err
		}
		fields, err := s.recordToMap(rec)
		if err != nil {
			return fmt.Errorf("jobtrack/redis: update job encode: %w", err)
		}
		if _, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			s.write(ctx, pipe, key, rec, fields)
			return nil
		}); err != nil {
			return unavailable("update job write", err)
		}
		updated = rec
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// GetJob retrieves a record by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Record, error) {
	vals, err := s.client.HGetAll(ctx, s.jobKey(jobID.String())).Result()
	if err != nil {
		return nil, unavailable("get job", err)
	}
	if len(vals) == 0 {
		return nil, jobtrack.ErrJobNotFound
	}
	return s.mapToRecord(vals)
}

// DeleteJob removes a record and its index entry.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.jobKey(jID))
	pipe.ZRem(ctx, s.indexKey(), jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable("delete job", err)
	}
	if del.Val() == 0 {
		return jobtrack.ErrJobNotFound
	}
	return nil
}

// SweepJobs removes records last updated before cutoff. Index entries
// whose Hash already expired through its TTL are dropped without being
// counted.
func (s *Store) SweepJobs(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return 0, unavailable("sweep range", err)
	}

	removed := 0
	for _, jID := range ids {
		key := s.jobKey(jID)
		var deleted bool
		err := s.watch(ctx, "sweep job", func(tx *goredis.Tx) error {
			deleted = false
			raw, err := tx.HGet(ctx, key, "updated_at").Result()
			if err != nil && !errors.Is(err, goredis.Nil) {
				return unavailable("sweep get", err)
			}
			if err == nil {
				updatedAt, perr := time.Parse(time.RFC3339Nano, raw)
				if perr == nil && !updatedAt.Before(cutoff) {
					return nil
				}
			}
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.ZRem(ctx, s.indexKey(), jID)
				return nil
			})
			if err != nil {
				return unavailable("sweep delete", err)
			}
			deleted = raw != ""
			return nil
		}, key)
		if err != nil {
			return removed, err
		}
		if deleted {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("redis: swept jobs", slog.Int("removed", removed))
	}
	return removed, nil
}

// CountJobs counts indexed records matching opts, pruning index entries
// whose Hash has expired.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, unavailable("count range", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	cmds := make([]*goredis.StringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, jID := range ids {
			cmds[i] = pipe.HGet(ctx, s.jobKey(jID), "state")
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return 0, unavailable("count states", err)
	}

	var (
		count    int64
		dangling []any
	)
	for i, cmd := range cmds {
		state, err := cmd.Result()
		if errors.Is(err, goredis.Nil) {
			dangling = append(dangling, ids[i])
			continue
		}
		if err != nil {
			return 0, unavailable("count state", err)
		}
		if opts.State != "" && job.State(state) != opts.State {
			continue
		}
		count++
	}

	if len(dangling) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), dangling...).Err(); err != nil {
			s.logger.Warn("redis: prune job index failed", slog.String("error", err.Error()))
		}
	}
	return count, nil
}

// ── helpers ──

// write queues the Hash, TTL and index updates for rec on pipe.
func (s *Store) write(ctx context.Context, pipe goredis.Pipeliner, key string, rec *job.Record, fields map[string]any) {
	pipe.HSet(ctx, key, fields)
	if s.ttl > 0 {
		pipe.PExpire(ctx, key, s.ttl)
	}
	pipe.ZAdd(ctx, s.indexKey(), goredis.Z{
		Score:  float64(rec.UpdatedAt.UnixMicro()),
		Member: rec.ID.String(),
	})
}

func (s *Store) recordToMap(r *job.Record) (map[string]any, error) {
	detail, err := encodeStatus(s.codec, r.Status)
	if err != nil {
		return nil, err
	}
	m := map[string]any{
		"id":          r.ID.String(),
		"name":        r.Name,
		"payload":     string(r.Payload),
		"state":       string(r.State()),
		"detail":      string(detail),
		"codec":       s.codec.Name(),
		"timeout":     strconv.FormatInt(int64(r.Timeout), 10),
		"created_at":  r.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":  r.UpdatedAt.Format(time.RFC3339Nano),
		"started_at":  "",
		"finished_at": "",
	}
	if r.StartedAt != nil {
		m["started_at"] = r.StartedAt.Format(time.RFC3339Nano)
	}
	if r.FinishedAt != nil {
		m["finished_at"] = r.FinishedAt.Format(time.RFC3339Nano)
	}
	return m, nil
}

func (s *Store) mapToRecord(m map[string]string) (*job.Record, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("jobtrack/redis: parse job id: %w", err)
	}

	state := job.State(m["state"])
	status, err := decodeStatus(s.codecFor(m["codec"]), state, []byte(m["detail"]))
	if err != nil {
		return nil, fmt.Errorf("jobtrack/redis: decode %s detail: %w", m["codec"], err)
	}

	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64)          //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	r := &job.Record{
		ID:        jID,
		Name:      m["name"],
		Payload:   []byte(m["payload"]),
		Status:    status,
		Timeout:   time.Duration(timeout),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		r.StartedAt = &t
	}
	if v := m["finished_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		r.FinishedAt = &t
	}
	return r, nil
}
