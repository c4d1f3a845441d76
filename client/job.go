package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/xraph/jobtrack/job"
)

// Status is a job status as reported by the server. Exactly one of Info,
// Result or Error is set, depending on State.
type Status struct {
	TaskID    string          `json:"task_id"`
	State     job.State       `json:"state"`
	Info      json.RawMessage `json:"info,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind job.FailureKind `json:"error_kind,omitempty"`
}

// Progress decodes Info for a running job.
func (s *Status) Progress() (job.Progress, bool) {
	var p job.Progress
	if s.State != job.StateProgress || len(s.Info) == 0 {
		return p, false
	}
	if err := json.Unmarshal(s.Info, &p); err != nil {
		return p, false
	}
	return p, true
}

// DecodeResult unmarshals the result of a successful job into v.
func (s *Status) DecodeResult(v any) error {
	if s.State != job.StateSuccess {
		return fmt.Errorf("jobtrack/client: job is %s, not SUCCESS", s.State)
	}
	return json.Unmarshal(s.Result, v)
}

// Stats mirrors the server's /v1/stats body.
type Stats struct {
	Pending     int64 `json:"pending"`
	Progress    int64 `json:"progress"`
	Success     int64 `json:"success"`
	Failure     int64 `json:"failure"`
	Queued      int   `json:"queued"`
	Active      int   `json:"active"`
	Concurrency int   `json:"concurrency"`
}

// Submit encodes payload as JSON, submits a job for the named task and
// returns the new job ID.
func (c *Client) Submit(ctx context.Context, name string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return c.SubmitRaw(ctx, name, raw)
}

// SubmitRaw submits a pre-encoded JSON payload.
func (c *Client) SubmitRaw(ctx context.Context, name string, payload []byte) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/tasks/"+url.PathEscape(name)+"/jobs", payload, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// Status returns the current status of a job.
func (c *Client) Status(ctx context.Context, jobID string) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Cancel cancels a pending or running job.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/v1/jobs/"+url.PathEscape(jobID)+"/cancel", nil, nil)
}

// Stats returns job counts and pool load.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Wait polls until the job reaches SUCCESS or FAILURE, or ctx ends.
func (c *Client) Wait(ctx context.Context, jobID string) (*Status, error) {
	for attempt := 1; ; attempt++ {
		st, err := c.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if st.State.IsTerminal() {
			return st, nil
		}

		delay := c.poll.Delay(attempt)
		c.logger.Debug("job not finished, polling again",
			slog.String("job_id", jobID),
			slog.String("state", string(st.State)),
			slog.Duration("delay", delay),
		)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
