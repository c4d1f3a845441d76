package client

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/jobtrack/backoff"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithPollBackoff sets the delay between status polls in Wait.
func WithPollBackoff(s backoff.Strategy) Option {
	return func(c *Client) {
		if s != nil {
			c.poll = s
		}
	}
}

func defaultPoll() backoff.Strategy {
	return backoff.NewExponential(100*time.Millisecond, 2*time.Second)
}
