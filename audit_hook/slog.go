package audithook

import (
	"context"
	"log/slog"
)

// SlogRecorder writes audit events as structured log records.
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder returns a Recorder that logs each event with a level
// matching its severity.
func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	return &SlogRecorder{logger: logger}
}

// Record implements Recorder.
func (r *SlogRecorder) Record(ctx context.Context, evt *AuditEvent) error {
	level := slog.LevelInfo
	switch evt.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityCritical:
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("action", evt.Action),
		slog.String("category", evt.Category),
		slog.String("resource", evt.Resource),
		slog.String("outcome", evt.Outcome),
	}
	if evt.ResourceID != "" {
		attrs = append(attrs, slog.String("resource_id", evt.ResourceID))
	}
	if len(evt.Metadata) > 0 {
		meta := make([]any, 0, len(evt.Metadata))
		for k, v := range evt.Metadata {
			meta = append(meta, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", meta...))
	}

	r.logger.LogAttrs(ctx, level, "audit", attrs...)
	return nil
}
