package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/jobtrack/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type jobSubmittedEntry struct {
	name string
	hook JobSubmitted
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobProgressedEntry struct {
	name string
	hook JobProgressed
}

type jobSucceededEntry struct {
	name string
	hook JobSucceeded
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobsSweptEntry struct {
	name string
	hook JobsSwept
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register all extensions before the engine starts; emits run
// concurrently from workers and are not synchronized with Register.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobSubmitted  []jobSubmittedEntry
	jobStarted    []jobStartedEntry
	jobProgressed []jobProgressedEntry
	jobSucceeded  []jobSucceededEntry
	jobFailed     []jobFailedEntry
	jobsSwept     []jobsSweptEntry
	shutdown      []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobSubmitted); ok {
		r.jobSubmitted = append(r.jobSubmitted, jobSubmittedEntry{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, h})
	}
	if h, ok := e.(JobProgressed); ok {
		r.jobProgressed = append(r.jobProgressed, jobProgressedEntry{name, h})
	}
	if h, ok := e.(JobSucceeded); ok {
		r.jobSucceeded = append(r.jobSucceeded, jobSucceededEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobsSwept); ok {
		r.jobsSwept = append(r.jobsSwept, jobsSweptEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobSubmitted notifies all extensions that implement JobSubmitted.
func (r *Registry) EmitJobSubmitted(ctx context.Context, rec *job.Record) {
	for _, e := range r.jobSubmitted {
		if err := e.hook.OnJobSubmitted(ctx, rec); err != nil {
			r.logHookError("OnJobSubmitted", e.name, err)
		}
	}
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, rec *job.Record) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, rec); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitJobProgressed notifies all extensions that implement JobProgressed.
func (r *Registry) EmitJobProgressed(ctx context.Context, rec *job.Record, p job.Progress) {
	for _, e := range r.jobProgressed {
		if err := e.hook.OnJobProgressed(ctx, rec, p); err != nil {
			r.logHookError("OnJobProgressed", e.name, err)
		}
	}
}

// EmitJobSucceeded notifies all extensions that implement JobSucceeded.
func (r *Registry) EmitJobSucceeded(ctx context.Context, rec *job.Record, elapsed time.Duration) {
	for _, e := range r.jobSucceeded {
		if err := e.hook.OnJobSucceeded(ctx, rec, elapsed); err != nil {
			r.logHookError("OnJobSucceeded", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, rec *job.Record, f job.Failure) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, rec, f); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitJobsSwept notifies all extensions that implement JobsSwept.
func (r *Registry) EmitJobsSwept(ctx context.Context, removed int) {
	for _, e := range r.jobsSwept {
		if err := e.hook.OnJobsSwept(ctx, removed); err != nil {
			r.logHookError("OnJobsSwept", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
