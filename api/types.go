package api

import (
	"encoding/json"

	"github.com/xraph/jobtrack/job"
)

// pendingInfo is shown for jobs that no worker has picked up yet.
const pendingInfo = "Task is waiting in queue..."

// StatusResponse is the body returned for a status read. Exactly one of
// Info, Result or Error is populated, depending on State.
type StatusResponse struct {
	TaskID    string          `json:"task_id"`
	State     job.State       `json:"state"`
	Info      any             `json:"info,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind job.FailureKind `json:"error_kind,omitempty"`
}

// SubmitResponse is returned when a job is accepted.
type SubmitResponse struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

// ReportSubmitResponse is returned by POST /generate-report.
type ReportSubmitResponse struct {
	Message        string `json:"message"`
	TaskID         string `json:"task_id"`
	CheckStatusURL string `json:"check_status_url"`
}

func statusResponse(rec *job.Record) StatusResponse {
	resp := StatusResponse{
		TaskID: rec.ID.String(),
		State:  rec.State(),
	}
	switch s := rec.Status.(type) {
	case job.InProgress:
		p := s.Progress
		if p.Percent == "" {
			p.Percent = job.FormatPercent(p.CurrentStep, p.TotalSteps)
		}
		resp.Info = p
	case job.Succeeded:
		resp.Result = s.Result
	case job.Failed:
		resp.Error = s.Failure.Cause
		resp.ErrorKind = s.Failure.Kind
	default:
		resp.Info = pendingInfo
	}
	return resp
}
