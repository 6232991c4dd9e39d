package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
)

// currentUser resolves the acting user for a request.
// Reads the context first (set by an auth middleware when present),
// then the X-User header, and falls back to "system" so downstream
// code never sees an empty owner.
func currentUser(c *gin.Context) string {
	if user, exists := c.Get("user"); exists {
		if username, ok := user.(string); ok && username != "" {
			return username
		}
	}

	if u := c.GetHeader("X-User"); u != "" {
		return u
	}

	return "system"
}

// errorResponse writes an error payload with the given status.
func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"error": message,
	})
}

// successResponse writes a 200 with the payload as-is.
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

// notFoundResponse writes a 404 for a missing resource.
func notFoundResponse(c *gin.Context, resource string) {
	c.JSON(404, gin.H{
		"error": resource + " not found",
	})
}

// badRequestResponse writes a 400.
func badRequestResponse(c *gin.Context, message string) {
	c.JSON(400, gin.H{
		"error": message,
	})
}

// paymentRequiredResponse writes a 402 for a credit denial.
func paymentRequiredResponse(c *gin.Context, message string) {
	c.JSON(402, gin.H{
		"error": message,
	})
}

// internalErrorResponse writes a 500 with the error detail.
func internalErrorResponse(c *gin.Context, err error) {
	c.JSON(500, gin.H{
		"error":  "internal server error",
		"detail": err.Error(),
	})
}

// pipelineErrorResponse maps a pipeline error code to an HTTP status.
func pipelineErrorResponse(c *gin.Context, err error) {
	var perr *pipeline.PipelineError
	if !errors.As(err, &perr) {
		internalErrorResponse(c, err)
		return
	}

	switch perr.Code {
	case pipeline.VALIDATION_FAILED, pipeline.UPLOAD_INCOMPLETE:
		badRequestResponse(c, perr.Message)
	case pipeline.INSUFFICIENT_CREDIT:
		paymentRequiredResponse(c, perr.Message)
	case pipeline.UPLOAD_FORBIDDEN:
		errorResponse(c, 403, perr.Message)
	case pipeline.UPLOAD_SESSION_ERROR, pipeline.TASK_NOT_FOUND:
		errorResponse(c, 404, perr.Message)
	case pipeline.CREDIT_GATE_UNAVAILABLE:
		errorResponse(c, 503, perr.Message)
	default:
		internalErrorResponse(c, err)
	}
}
