package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxPayloadBytes bounds submitted job payloads.
const maxPayloadBytes = 1 << 20

func (a *API) submitJob(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes+1))
	if err != nil {
		badRequest(c, "failed to read request body")
		return
	}
	if len(body) > maxPayloadBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"})
		return
	}
	body = bytes.TrimSpace(body)

	jobID, err := a.eng.SubmitRaw(c.Request.Context(), c.Param("name"), body)
	if err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SubmitResponse{
		JobID:     jobID.String(),
		StatusURL: "/v1/jobs/" + jobID.String(),
	})
}

func (a *API) getJob(c *gin.Context) {
	rec, err := a.eng.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		a.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse(rec))
}

func (a *API) cancelJob(c *gin.Context) {
	if err := a.eng.Cancel(c.Request.Context(), c.Param("jobId")); err != nil {
		a.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) stats(c *gin.Context) {
	st, err := a.eng.Stats(c.Request.Context())
	if err != nil {
		a.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
