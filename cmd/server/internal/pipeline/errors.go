// Package pipeline defines the typed errors shared by every stage of
// the catch-up pipeline.
package pipeline

import (
	"fmt"
	"time"
)

// ErrorCode classifies pipeline failures.
type ErrorCode string

const (
	// VALIDATION_FAILED request rejected before any work started
	VALIDATION_FAILED ErrorCode = "VALIDATION_FAILED"

	// SOURCE_UNAVAILABLE source channel or video does not exist
	SOURCE_UNAVAILABLE ErrorCode = "SOURCE_UNAVAILABLE"

	// NO_RECORDING source exists but no addressable recording is available
	NO_RECORDING ErrorCode = "NO_RECORDING"

	// EXTRACTION_FAILED segment creation or media fetch failed
	EXTRACTION_FAILED ErrorCode = "EXTRACTION_FAILED"

	// TRANSCRIPTION_FAILED no usable text came back from the speech service
	TRANSCRIPTION_FAILED ErrorCode = "TRANSCRIPTION_FAILED"

	// SUMMARIZATION_FAILED summarizer backend error (normally absorbed by the fallback)
	SUMMARIZATION_FAILED ErrorCode = "SUMMARIZATION_FAILED"

	// UPLOAD_SESSION_ERROR chunked upload session does not exist
	UPLOAD_SESSION_ERROR ErrorCode = "UPLOAD_SESSION_ERROR"

	// UPLOAD_INCOMPLETE finalize attempted before every chunk arrived
	UPLOAD_INCOMPLETE ErrorCode = "UPLOAD_INCOMPLETE"

	// UPLOAD_FORBIDDEN upload session belongs to another owner
	UPLOAD_FORBIDDEN ErrorCode = "UPLOAD_FORBIDDEN"

	// TASK_NOT_FOUND task id is unknown or already reaped
	TASK_NOT_FOUND ErrorCode = "TASK_NOT_FOUND"

	// INSUFFICIENT_CREDIT credit gate denied the request
	INSUFFICIENT_CREDIT ErrorCode = "INSUFFICIENT_CREDIT"

	// CREDIT_GATE_UNAVAILABLE credit service could not be reached
	CREDIT_GATE_UNAVAILABLE ErrorCode = "CREDIT_GATE_UNAVAILABLE"

	// POLL_TIMEOUT a bounded poll exhausted its budget
	POLL_TIMEOUT ErrorCode = "POLL_TIMEOUT"
)

// PipelineError is the typed error carried through the catch-up pipeline.
type PipelineError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewPipelineError creates a pipeline error with an arbitrary code.
func NewPipelineError(code ErrorCode, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewValidationError rejects a request before any work starts.
func NewValidationError(message string) *PipelineError {
	return NewPipelineError(VALIDATION_FAILED, message, nil)
}

// NewSourceUnavailableError reports a channel or video that does not exist.
func NewSourceUnavailableError(source string, cause error) *PipelineError {
	return NewPipelineError(SOURCE_UNAVAILABLE, fmt.Sprintf("source %s is unavailable", source), cause)
}

// NewNoRecordingError reports a source with no addressable recording.
func NewNoRecordingError(source string) *PipelineError {
	return NewPipelineError(NO_RECORDING, fmt.Sprintf("no recording available for %s", source), nil)
}

// NewExtractionError reports a failed segment creation or media fetch.
func NewExtractionError(message string, cause error) *PipelineError {
	return NewPipelineError(EXTRACTION_FAILED, message, cause)
}

// NewTranscriptionError reports that no usable transcript was produced.
func NewTranscriptionError(message string, cause error) *PipelineError {
	return NewPipelineError(TRANSCRIPTION_FAILED, message, cause)
}

// NewSummarizationError reports a summarizer backend failure.
func NewSummarizationError(cause error) *PipelineError {
	return NewPipelineError(SUMMARIZATION_FAILED, "summarizer backend failed", cause)
}

// NewUploadSessionError reports a missing upload session.
func NewUploadSessionError(message string) *PipelineError {
	return NewPipelineError(UPLOAD_SESSION_ERROR, message, nil)
}

// NewUploadIncompleteError reports a finalize with chunks still missing.
func NewUploadIncompleteError(missing, total int) *PipelineError {
	msg := fmt.Sprintf("missing %d of %d chunks", missing, total)
	return NewPipelineError(UPLOAD_INCOMPLETE, msg, nil)
}

// NewUploadForbiddenError reports an upload touched by a non-owner.
func NewUploadForbiddenError(uploadID string) *PipelineError {
	return NewPipelineError(UPLOAD_FORBIDDEN, "upload "+uploadID+" belongs to another owner", nil)
}

// NewTaskNotFoundError reports an unknown or already-reaped task id.
func NewTaskNotFoundError(taskID string) *PipelineError {
	return NewPipelineError(TASK_NOT_FOUND, "task not found: "+taskID, nil)
}

// NewInsufficientCreditError reports a credit gate denial.
func NewInsufficientCreditError(remaining, cost int) *PipelineError {
	msg := fmt.Sprintf("insufficient credit: have %d, need %d", remaining, cost)
	return NewPipelineError(INSUFFICIENT_CREDIT, msg, nil)
}

// NewCreditGateUnavailableError reports an unreachable credit service.
func NewCreditGateUnavailableError(cause error) *PipelineError {
	return NewPipelineError(CREDIT_GATE_UNAVAILABLE, "credit check unavailable", cause)
}

// NewPollTimeoutError reports an exhausted poll budget.
func NewPollTimeoutError(what string) *PipelineError {
	return NewPipelineError(POLL_TIMEOUT, fmt.Sprintf("timed out waiting for %s", what), nil)
}
