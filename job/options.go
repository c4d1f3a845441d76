package job

import "time"

// Options configures per-task behaviour.
type Options struct {
	// Timeout is the maximum duration a job may run before it fails with
	// a timeout. Zero defers to the engine default.
	Timeout time.Duration
}

// DefaultOptions returns Options with no per-task overrides.
func DefaultOptions() Options {
	return Options{}
}

// Option is a functional option for configuring a task definition or a
// single submission.
type Option func(*Options)

// WithTimeout sets the maximum execution duration.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}
