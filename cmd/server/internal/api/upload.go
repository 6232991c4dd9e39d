package api

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/streamlens/catchup/cmd/server/internal/audit"
	"github.com/streamlens/catchup/cmd/server/internal/upload"
)

// upload.go - Chunked upload session operations
// Handles: UploadInit, UploadChunk, UploadFinalize

// maxChunkBytes bounds a single chunk body.
const maxChunkBytes = 32 << 20

type uploadInitRequest struct {
	TotalSize   int64  `json:"total_size" binding:"required"`
	TotalChunks int    `json:"total_chunks" binding:"required"`
	Format      string `json:"format"`
	SampleRate  int    `json:"sample_rate"`
}

// HandleUploadInit POST /api/upload/init
func HandleUploadInit(store *upload.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req uploadInitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request body: "+err.Error())
			return
		}

		uploadID, err := store.Init(req.TotalSize, req.TotalChunks, req.Format, req.SampleRate, currentUser(c))
		if err != nil {
			pipelineErrorResponse(c, err)
			return
		}

		successResponse(c, gin.H{
			"upload_id":    uploadID,
			"total_chunks": req.TotalChunks,
		})
	}
}

// HandleUploadChunk PUT /api/upload/:id/chunks/:index
// The chunk is the raw request body.
func HandleUploadChunk(store *upload.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			badRequestResponse(c, "invalid chunk index")
			return
		}

		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxChunkBytes+1))
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		if len(data) > maxChunkBytes {
			badRequestResponse(c, "chunk exceeds maximum size")
			return
		}

		uploadID := c.Param("id")
		user := currentUser(c)
		if err := store.PutChunk(uploadID, index, data, user); err != nil {
			pipelineErrorResponse(c, err)
			return
		}

		received, total, err := store.Progress(uploadID, user)
		if err != nil {
			pipelineErrorResponse(c, err)
			return
		}
		successResponse(c, gin.H{
			"upload_id": uploadID,
			"received":  received,
			"total":     total,
		})
	}
}

// HandleUploadFinalize POST /api/upload/:id/finalize
// Reassembles the chunks and retains the payload for the subsequent
// catch-up submit.
func HandleUploadFinalize(store *upload.Store, auditLog *audit.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uploadID := c.Param("id")
		user := currentUser(c)

		_, totalChunks, err := store.Progress(uploadID, user)
		if err != nil {
			pipelineErrorResponse(c, err)
			return
		}

		payload, err := store.Finalize(uploadID, user)
		if err != nil {
			pipelineErrorResponse(c, err)
			return
		}

		if auditLog != nil {
			auditLog.LogUploadFinalized(uploadID, user, totalChunks, len(payload))
		}

		successResponse(c, gin.H{
			"upload_id": uploadID,
			"size":      len(payload),
			"status":    "finalized",
		})
	}
}
