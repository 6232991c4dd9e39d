package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamlens/catchup/cmd/server/internal/catchup"
)

// catchup.go - Catch-up submission and status operations
// Handles: SubmitCatchup, SubmitUploadCatchup, CatchupStatus, ListTasks, Health

type submitCatchupRequest struct {
	StreamURL       string `json:"stream_url" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"required"`
	UserID          string `json:"user_id"`
}

type submitUploadCatchupRequest struct {
	UploadID        string `json:"upload_id" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"required"`
	UserID          string `json:"user_id"`
}

// requestUser prefers an explicit body user_id over the request context.
func requestUser(c *gin.Context, bodyUserID string) string {
	if bodyUserID != "" {
		return bodyUserID
	}
	return currentUser(c)
}

// HandleSubmitCatchup POST /api/catchup
// Validates the submission, charges the credit gate, and starts the
// background pipeline. Returns the task id for status polling.
func HandleSubmitCatchup(o *catchup.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitCatchupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request body: "+err.Error())
			return
		}

		taskID, err := o.Submit(c.Request.Context(), catchup.SubmitRequest{
			StreamURL:       req.StreamURL,
			DurationMinutes: req.DurationMinutes,
			UserID:          requestUser(c, req.UserID),
		})
		if err != nil {
			pipelineErrorResponse(c, err)
			return
		}

		successResponse(c, gin.H{
			"task_id": taskID,
			"status":  string(catchup.StateInitialized),
		})
	}
}

// HandleSubmitUploadCatchup POST /api/catchup/upload
// Starts a catch-up over a previously finalized chunked upload.
func HandleSubmitUploadCatchup(o *catchup.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitUploadCatchupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request body: "+err.Error())
			return
		}

		taskID, err := o.SubmitUpload(c.Request.Context(), catchup.UploadSubmitRequest{
			UploadID:        req.UploadID,
			DurationMinutes: req.DurationMinutes,
			UserID:          requestUser(c, req.UserID),
		})
		if err != nil {
			pipelineErrorResponse(c, err)
			return
		}

		successResponse(c, gin.H{
			"task_id": taskID,
			"status":  string(catchup.StateInitialized),
		})
	}
}

// HandleCatchupStatus GET /api/catchup/:id/status
func HandleCatchupStatus(o *catchup.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := o.GetStatus(c.Param("id"))
		if err != nil {
			notFoundResponse(c, "task")
			return
		}
		successResponse(c, task)
	}
}

// HandleListTasks GET /api/tasks
// Debug listing of every live task.
func HandleListTasks(registry *catchup.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks := registry.List()
		successResponse(c, gin.H{
			"count": len(tasks),
			"tasks": tasks,
		})
	}
}

// HandleHealth GET /
func HandleHealth(registry *catchup.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		successResponse(c, gin.H{
			"service":      "stream-catchup",
			"status":       "running",
			"active_tasks": registry.Count(),
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
