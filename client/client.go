// Package client provides a Go client for a remote jobtrack HTTP API.
//
// Usage:
//
//	c := client.New("http://localhost:8000")
//
//	// Submit a job.
//	jobID, err := c.Submit(ctx, "generate-report", map[string]string{"report_type": "weekly"})
//
//	// Poll until it finishes.
//	st, err := c.Wait(ctx, jobID)
//	if st.State == job.StateSuccess {
//	    fmt.Println(string(st.Result))
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xraph/jobtrack"
	"github.com/xraph/jobtrack/backoff"
)

// Client talks to a jobtrack server over HTTP. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	poll    backoff.Strategy
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  slog.Default(),
		poll:    defaultPoll(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the server. It unwraps to the
// matching jobtrack sentinel error so callers can use errors.Is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jobtrack/client: %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code (and message where one code covers several
// errors) back to a sentinel.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return jobtrack.ErrJobNotFound
	case http.StatusTooManyRequests:
		return jobtrack.ErrRateLimited
	case http.StatusConflict:
		return jobtrack.ErrInvalidTransition
	case http.StatusServiceUnavailable:
		if e.Message == jobtrack.ErrStoreUnavailable.Error() {
			return jobtrack.ErrStoreUnavailable
		}
		return jobtrack.ErrRejected
	case http.StatusBadRequest:
		switch {
		case strings.HasPrefix(e.Message, jobtrack.ErrUnknownTask.Error()):
			return jobtrack.ErrUnknownTask
		case strings.HasPrefix(e.Message, jobtrack.ErrInvalidPayload.Error()):
			return jobtrack.ErrInvalidPayload
		}
	}
	return nil
}

// do sends a request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("jobtrack/client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jobtrack/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&e); decodeErr != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("jobtrack/client: decode response: %w", err)
	}
	return nil
}

// IsRejected reports whether err means the server refused a submission and
// the caller should back off and retry.
func IsRejected(err error) bool {
	return errors.Is(err, jobtrack.ErrRejected)
}
