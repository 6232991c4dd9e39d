// Package transcribe converts audio segments into text through an
// external speech-to-text service, running segments in bounded
// parallel batches.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// JobState is the remote lifecycle of a transcription job.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobError      JobState = "error"
)

// JobStatus is one poll observation of a transcription job.
type JobStatus struct {
	State      JobState
	Text       string
	Confidence float64
	Reason     string // populated when State is JobError
}

// SpeechClient is the external speech service contract: upload the
// audio, submit a job against the upload handle, poll until terminal.
type SpeechClient interface {
	Upload(ctx context.Context, audio []byte) (handle string, err error)
	SubmitJob(ctx context.Context, handle string) (jobID string, err error)
	PollStatus(ctx context.Context, jobID string) (JobStatus, error)
}

// HTTPSpeechClient talks the three-step upload/transcript/status
// protocol over plain HTTP.
type HTTPSpeechClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSpeechClient creates a client against the given API base URL.
func NewHTTPSpeechClient(apiKey, baseURL string) *HTTPSpeechClient {
	return &HTTPSpeechClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload pushes raw audio bytes and returns the service's handle URL.
func (c *HTTPSpeechClient) Upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("authorization", c.apiKey)
	req.Header.Set("content-type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("audio upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("audio upload returned HTTP %d: %s", resp.StatusCode, string(b))
	}

	var body struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}
	return body.UploadURL, nil
}

// SubmitJob starts a transcription job for an uploaded handle.
func (c *HTTPSpeechClient) SubmitJob(ctx context.Context, handle string) (string, error) {
	payload, _ := json.Marshal(map[string]any{
		"audio_url":          handle,
		"speech_model":       "best",
		"language_detection": true,
		"punctuate":          true,
		"format_text":        true,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("authorization", c.apiKey)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("job submission failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("job submission returned HTTP %d: %s", resp.StatusCode, string(b))
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.ID == "" {
		return "", fmt.Errorf("job submission response missing id")
	}
	return body.ID, nil
}

// PollStatus reads the current state of a transcription job.
func (c *HTTPSpeechClient) PollStatus(ctx context.Context, jobID string) (JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+jobID, nil)
	if err != nil {
		return JobStatus{}, err
	}
	req.Header.Set("authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return JobStatus{}, fmt.Errorf("status check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return JobStatus{}, fmt.Errorf("status check returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		Status     string  `json:"status"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		Error      string  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return JobStatus{}, err
	}

	switch body.Status {
	case "completed":
		return JobStatus{State: JobCompleted, Text: body.Text, Confidence: body.Confidence}, nil
	case "error":
		return JobStatus{State: JobError, Reason: body.Error}, nil
	case "processing":
		return JobStatus{State: JobProcessing}, nil
	default:
		return JobStatus{State: JobQueued}, nil
	}
}
