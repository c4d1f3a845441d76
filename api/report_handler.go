package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/jobtrack/engine"
	"github.com/xraph/jobtrack/report"
)

func (a *API) generateReport(c *gin.Context) {
	req := report.Request{ReportType: report.DefaultType}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return
	}

	jobID, err := engine.Submit(c.Request.Context(), a.eng, report.TaskName, req)
	if err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, ReportSubmitResponse{
		Message:        "Report generation started",
		TaskID:         jobID.String(),
		CheckStatusURL: "/report-status/" + jobID.String(),
	})
}

func (a *API) reportStatus(c *gin.Context) {
	rec, err := a.eng.Status(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		a.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse(rec))
}
