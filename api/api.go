// Package api exposes the job engine over HTTP using gin.
//
// Routes:
//
//	POST /v1/tasks/:name/jobs     submit a job with a raw JSON payload
//	GET  /v1/jobs/:jobId          read job status
//	POST /v1/jobs/:jobId/cancel   cancel a pending or running job
//	GET  /v1/stats                job counts and pool load
//	GET  /healthz                 store connectivity
//	POST /generate-report         submit a report build
//	GET  /report-status/:taskId   read report status
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xraph/jobtrack/engine"
)

// API wires the HTTP handlers to an Engine.
type API struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// New creates an API from a jobtrack Engine.
func New(eng *engine.Engine, logger *slog.Logger) *API {
	if logger == nil {
		logger = eng.Logger()
	}
	return &API{eng: eng, logger: logger}
}

// Handler returns a gin engine with recovery, request logging and every
// route registered.
func (a *API) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(a.logger))
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all jobtrack routes on router.
func (a *API) RegisterRoutes(router gin.IRouter) {
	router.GET("/healthz", a.health)

	v1 := router.Group("/v1")
	{
		v1.POST("/tasks/:name/jobs", a.submitJob)
		v1.GET("/jobs/:jobId", a.getJob)
		v1.POST("/jobs/:jobId/cancel", a.cancelJob)
		v1.GET("/stats", a.stats)
	}

	router.POST("/generate-report", a.generateReport)
	router.GET("/report-status/:taskId", a.reportStatus)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("http request",
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

func (a *API) health(c *gin.Context) {
	if err := a.eng.Store().Ping(c.Request.Context()); err != nil {
		a.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
