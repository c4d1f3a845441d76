package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// HandlerFunc is a type-erased task handler working on raw JSON.
type HandlerFunc func(ctx context.Context, payload []byte, report Reporter) (json.RawMessage, error)

// Task is a registered handler together with its default options.
type Task struct {
	Handler HandlerFunc
	Opts    Options
}

// Registry maps task names to handlers. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]Task),
	}
}

// RegisterDefinition registers a typed definition. The handler is wrapped
// in a closure that decodes the payload into T and encodes the result R.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T, R any](r *Registry, def *Definition[T, R]) {
	handler := func(ctx context.Context, payload []byte, report Reporter) (json.RawMessage, error) {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return nil, fmt.Errorf("unmarshal payload for task %q: %w", def.Name, err)
			}
		}
		res, err := def.Handler(ctx, t, report)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("marshal result for task %q: %w", def.Name, err)
		}
		return out, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[def.Name] = Task{Handler: handler, Opts: def.Opts}
}

// Get returns the task registered under name.
func (r *Registry) Get(name string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	return t, ok
}

// Names returns all registered task names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	return names
}
