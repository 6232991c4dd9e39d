// Package api exposes the HTTP surface: catch-up submission and
// status, chunked uploads, health, and metrics.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamlens/catchup/cmd/server/internal/audit"
	"github.com/streamlens/catchup/cmd/server/internal/catchup"
	"github.com/streamlens/catchup/cmd/server/internal/middleware"
	"github.com/streamlens/catchup/cmd/server/internal/upload"
)

// Deps carries everything the routes need.
type Deps struct {
	Orchestrator *catchup.Orchestrator
	Registry     *catchup.Registry
	Uploads      *upload.Store
	Audit        *audit.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	router.GET("/", HandleHealth(deps.Registry))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/catchup", HandleSubmitCatchup(deps.Orchestrator))
		apiGroup.POST("/catchup/upload", HandleSubmitUploadCatchup(deps.Orchestrator))
		apiGroup.GET("/catchup/:id/status", HandleCatchupStatus(deps.Orchestrator))
		apiGroup.GET("/tasks", HandleListTasks(deps.Registry))

		apiGroup.POST("/upload/init", HandleUploadInit(deps.Uploads))
		apiGroup.PUT("/upload/:id/chunks/:index", HandleUploadChunk(deps.Uploads))
		apiGroup.POST("/upload/:id/finalize", HandleUploadFinalize(deps.Uploads, deps.Audit))
	}

	return router
}
