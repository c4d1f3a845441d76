package job

import (
	"context"
	"strconv"
)

// Progress describes in-flight execution. It is overwritten on every
// report and never kept as history.
type Progress struct {
	CurrentStep int    `json:"current_step"`
	TotalSteps  int    `json:"total_steps"`
	Percent     string `json:"percent"`
	Status      string `json:"status,omitempty"`
}

// Step builds a Progress for step current of total, with the percentage
// formatted to one decimal place ("20.0%").
func Step(current, total int, status string) Progress {
	return Progress{
		CurrentStep: current,
		TotalSteps:  total,
		Percent:     FormatPercent(current, total),
		Status:      status,
	}
}

// FormatPercent renders current/total as a percentage string.
func FormatPercent(current, total int) string {
	if total <= 0 {
		return "0.0%"
	}
	pct := float64(current) / float64(total) * 100
	return strconv.FormatFloat(pct, 'f', 1, 64) + "%"
}

// Reporter is handed to every task so it can publish progress. Reports are
// best-effort: an error means the update was not stored, and the task may
// ignore it and carry on.
type Reporter interface {
	Report(ctx context.Context, p Progress) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, p Progress) error

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, p Progress) error { return f(ctx, p) }

// NopReporter discards every report.
var NopReporter Reporter = ReporterFunc(func(context.Context, Progress) error { return nil })
