// Package report provides the "generate-report" task: a simulated report
// build that runs a fixed number of steps and reports progress after each.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/jobtrack/job"
)

const (
	// TaskName is the name the report task is registered under.
	TaskName = "generate-report"

	// TotalSteps is the number of steps a report build takes.
	TotalSteps = 5

	// DefaultType is used when a request names no report type.
	DefaultType = "monthly"

	// DownloadURL is where the finished report is served.
	DownloadURL = "/downloads/report_final.pdf"

	stepStatus = "Processing data..."
)

// Request is the task payload.
type Request struct {
	ReportType string `json:"report_type"`
}

// Result is returned when the report is ready.
type Result struct {
	Status      string `json:"status"`
	DownloadURL string `json:"download_url"`
	Message     string `json:"message"`
}

// Definition returns the report task, waiting stepDelay per step. A
// cancelled or timed-out context aborts the wait immediately.
func Definition(stepDelay time.Duration, opts ...job.Option) *job.Definition[Request, Result] {
	return job.NewDefinition(TaskName, func(ctx context.Context, req Request, report job.Reporter) (Result, error) {
		return generate(ctx, req, report, stepDelay)
	}, opts...)
}

func generate(ctx context.Context, req Request, report job.Reporter, stepDelay time.Duration) (Result, error) {
	reportType := req.ReportType
	if reportType == "" {
		reportType = DefaultType
	}

	timer := time.NewTimer(stepDelay)
	defer timer.Stop()

	for i := 1; i <= TotalSteps; i++ {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.C:
		}
		// Progress is best-effort; a failed write does not stop the build.
		_ = report.Report(ctx, job.Step(i, TotalSteps, stepStatus))
		timer.Reset(stepDelay)
	}

	return Result{
		Status:      "Completed",
		DownloadURL: DownloadURL,
		Message:     fmt.Sprintf("%s Report generated successfully.", reportType),
	}, nil
}
