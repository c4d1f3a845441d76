package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/jobtrack"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an engine error to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, jobtrack.ErrRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, jobtrack.ErrRejected):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, jobtrack.ErrJobNotFound):
		return http.StatusNotFound, jobtrack.ErrJobNotFound.Error()
	case errors.Is(err, jobtrack.ErrUnknownTask), errors.Is(err, jobtrack.ErrInvalidPayload):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, jobtrack.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, jobtrack.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, jobtrack.ErrStoreUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (a *API) abort(c *gin.Context, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	c.AbortWithStatusJSON(code, ErrorResponse{Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
