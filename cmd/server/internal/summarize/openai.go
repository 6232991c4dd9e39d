package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
)

// OpenAI calls the chat-completions API over plain HTTP.
type OpenAI struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewOpenAI creates the OpenAI-backed summarizer.
func NewOpenAI(apiKey, endpoint, model string) *OpenAI {
	return &OpenAI{
		apiKey:     apiKey,
		endpoint:   endpoint,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (o *OpenAI) Summarize(ctx context.Context, transcript string, meta Meta) (string, error) {
	payload, _ := json.Marshal(map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "user", "content": buildPrompt(transcript, meta)},
		},
		"max_tokens":  900,
		"temperature": 0.7,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", pipeline.NewSummarizationError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", pipeline.NewSummarizationError(
			fmt.Errorf("chat completion returned HTTP %d: %s", resp.StatusCode, string(b)))
	}

	var body struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", pipeline.NewSummarizationError(err)
	}
	if len(body.Choices) == 0 || body.Choices[0].Message.Content == "" {
		return "", pipeline.NewSummarizationError(fmt.Errorf("empty completion response"))
	}
	return body.Choices[0].Message.Content, nil
}
