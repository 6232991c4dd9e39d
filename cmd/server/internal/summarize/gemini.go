package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
	"github.com/streamlens/catchup/pkg/logger"
)

// Gemini calls the Gemini API, rotating through API keys when one is
// rate limited or out of quota.
type Gemini struct {
	mu         sync.Mutex
	apiKeys    []string
	currentKey int
	model      string
}

// NewGemini creates the Gemini-backed summarizer over the supplied keys.
func NewGemini(apiKeys []string, model string) *Gemini {
	return &Gemini{apiKeys: apiKeys, model: model}
}

func (g *Gemini) Summarize(ctx context.Context, transcript string, meta Meta) (string, error) {
	prompt := buildPrompt(transcript, meta)

	attempts := len(g.apiKeys)
	var lastErr error

	for i := 0; i < attempts; i++ {
		key := g.nextKey()

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			lastErr = fmt.Errorf("create client: %w", err)
			g.rotateKey()
			continue
		}

		result, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
		if err != nil {
			msg := err.Error()
			if strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
				logger.L().Warn("gemini key rate limited, rotating", "error", err)
				g.rotateKey()
				lastErr = err
				continue
			}
			return "", pipeline.NewSummarizationError(fmt.Errorf("generate content: %w", err))
		}

		if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
			var text string
			for _, part := range result.Candidates[0].Content.Parts {
				if part.Text != "" {
					text += part.Text
				}
			}
			if text != "" {
				return text, nil
			}
		}
		return "", pipeline.NewSummarizationError(fmt.Errorf("empty response from gemini"))
	}

	return "", pipeline.NewSummarizationError(fmt.Errorf("all API keys exhausted: %w", lastErr))
}

func (g *Gemini) nextKey() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.apiKeys[g.currentKey]
}

func (g *Gemini) rotateKey() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.currentKey = (g.currentKey + 1) % len(g.apiKeys)
}
