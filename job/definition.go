package job

import "context"

// Definition is a typed task definition.
// T is the payload type and R the result type; both must be
// JSON-serializable.
type Definition[T, R any] struct {
	// Name is the unique identifier for this task type.
	Name string

	// Handler processes the payload, reporting progress through report.
	Handler func(ctx context.Context, payload T, report Reporter) (R, error)

	// Opts configures the default timeout for jobs of this task.
	Opts Options
}

// NewDefinition creates a typed task definition.
func NewDefinition[T, R any](
	name string,
	handler func(ctx context.Context, payload T, report Reporter) (R, error),
	opts ...Option,
) *Definition[T, R] {
	def := &Definition[T, R]{
		Name:    name,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}
