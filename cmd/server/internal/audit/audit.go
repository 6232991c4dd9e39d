// Package audit writes rotating JSON records for billable events:
// catch-up submissions and upload finalizations.
package audit

import (
	"encoding/json"
	"log"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger records catch-up activity with automatic log rotation.
type Logger struct {
	logger *log.Logger
}

// NewLogger creates an audit logger writing to logPath with rotation
// by size and age.
func NewLogger(logPath string) *Logger {
	writer := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    100, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}

	return &Logger{
		logger: log.New(writer, "", 0), // records carry their own timestamp
	}
}

// LogSubmission records a catch-up submission and its gate outcome.
func (a *Logger) LogSubmission(taskID, userID, streamURL string, windowMinutes, cost int, allowed bool) {
	record := map[string]interface{}{
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"event":          "catchup_submission",
		"task_id":        taskID,
		"user_id":        userID,
		"stream_url":     streamURL,
		"window_minutes": windowMinutes,
		"credit_cost":    cost,
		"result":         "accepted",
	}
	if !allowed {
		record["result"] = "denied_insufficient_credit"
	}

	data, _ := json.Marshal(record)
	a.logger.Println(string(data))
}

// LogTaskFinished records a task reaching a terminal state.
func (a *Logger) LogTaskFinished(taskID, userID, state string, elapsedSeconds float64, errorCode string) {
	record := map[string]interface{}{
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"event":           "catchup_finished",
		"task_id":         taskID,
		"user_id":         userID,
		"state":           state,
		"elapsed_seconds": elapsedSeconds,
	}
	if errorCode != "" {
		record["error_code"] = errorCode
	}

	data, _ := json.Marshal(record)
	a.logger.Println(string(data))
}

// LogUploadFinalized records a completed chunked upload.
func (a *Logger) LogUploadFinalized(uploadID, userID string, totalChunks int, payloadBytes int) {
	record := map[string]interface{}{
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"event":         "upload_finalized",
		"upload_id":     uploadID,
		"user_id":       userID,
		"total_chunks":  totalChunks,
		"payload_bytes": payloadBytes,
	}

	data, _ := json.Marshal(record)
	a.logger.Println(string(data))
}
