package redis

// Key naming. All keys share the store's prefix ("jobtrack:" by default).

const defaultKeyPrefix = "jobtrack:"

// jobKey returns the Hash key for a job: {prefix}job:{id}
func (s *Store) jobKey(id string) string { return s.prefix + "job:" + id }

// indexKey is the Sorted Set of job IDs scored by UpdatedAt in microseconds.
func (s *Store) indexKey() string { return s.prefix + "jobs" }
