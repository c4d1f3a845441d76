package jobtrack

import (
	"errors"
	"time"
)

// Config holds configuration for the job engine.
type Config struct {
	// Concurrency is the number of jobs executed at the same time.
	Concurrency int `mapstructure:"concurrency"`

	// QueueSize bounds the number of jobs waiting for a worker.
	// Zero means unbounded.
	QueueSize int `mapstructure:"queue_size"`

	// SubmitRate is the sustained submissions per second accepted before
	// new jobs are rejected. Zero disables rate limiting.
	SubmitRate float64 `mapstructure:"submit_rate"`

	// SubmitBurst is the token-bucket burst for SubmitRate.
	SubmitBurst int `mapstructure:"submit_burst"`

	// Retention is how long a record is kept after its last update.
	Retention time.Duration `mapstructure:"retention"`

	// SweepInterval is how often expired records are evicted.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// JobTimeout is the default per-job execution deadline. Zero means
	// tasks bound their own execution time.
	JobTimeout time.Duration `mapstructure:"job_timeout"`

	// ShutdownTimeout is the maximum time to wait for running and queued
	// jobs to drain on Stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     10,
		QueueSize:       0,
		Retention:       time.Hour,
		SweepInterval:   time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Concurrency <= 0:
		return errors.New("jobtrack: concurrency must be greater than 0")
	case c.QueueSize < 0:
		return errors.New("jobtrack: queue_size must not be negative")
	case c.SubmitRate < 0:
		return errors.New("jobtrack: submit_rate must not be negative")
	case c.Retention <= 0:
		return errors.New("jobtrack: retention must be greater than 0")
	case c.SweepInterval <= 0:
		return errors.New("jobtrack: sweep_interval must be greater than 0")
	case c.JobTimeout < 0:
		return errors.New("jobtrack: job_timeout must not be negative")
	}
	return nil
}
