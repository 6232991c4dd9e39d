// Package summarize turns a merged transcript into a viewer-facing
// catch-up summary through a configurable backend, with a local
// statistics fallback when the backend fails.
package summarize

import (
	"context"
	"fmt"
	"strings"
)

// Meta carries the request context the prompt and fallback need.
type Meta struct {
	Platform        string
	StreamURL       string
	StreamTitle     string
	DurationMinutes int
	SegmentCount    int
	DeepLink        string
}

// Summarizer produces a summary for a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, meta Meta) (string, error)
}

// Fallback builds a structured local summary from transcript
// statistics. It never fails, so a summarizer backend error can always
// degrade to it.
func Fallback(transcript string, meta Meta) string {
	words := len(strings.Fields(transcript))

	var b strings.Builder
	fmt.Fprintf(&b, "Stream Catch-Up (%d minutes)\n\n", meta.DurationMinutes)
	b.WriteString("AI summarization was unavailable for this catch-up, but the transcript below covers everything that was said.\n\n")
	b.WriteString("Catch-up details:\n")
	fmt.Fprintf(&b, "- Platform: %s\n", meta.Platform)
	if meta.StreamTitle != "" {
		fmt.Fprintf(&b, "- Stream: %s\n", meta.StreamTitle)
	}
	fmt.Fprintf(&b, "- Window analyzed: %d minutes\n", meta.DurationMinutes)
	fmt.Fprintf(&b, "- Segments processed: %d\n", meta.SegmentCount)
	fmt.Fprintf(&b, "- Transcript length: %d words\n", words)
	if meta.DeepLink != "" {
		fmt.Fprintf(&b, "\nJump straight to this part of the recording:\n%s\n", meta.DeepLink)
	}
	return b.String()
}

const promptTemplate = `You are an expert stream summarizer. Analyze this %s stream transcript and provide a comprehensive catch-up summary.

Stream details:
- Platform: %s
- Window: %d minutes
- Transcript length: %d characters

Transcript:
%s

Provide:
1. Key events (3-4 main topics from the actual transcript)
2. Notable moments
3. A concise "what you missed" paragraph for new viewers

Base everything on the actual transcript content. Be engaging and informative.`

// maxPromptChars caps the transcript portion of the prompt.
const maxPromptChars = 4000

func buildPrompt(transcript string, meta Meta) string {
	truncated := transcript
	if len(truncated) > maxPromptChars {
		truncated = truncated[:maxPromptChars] + "... [transcript truncated for processing]"
	}
	return fmt.Sprintf(promptTemplate, meta.Platform, meta.Platform, meta.DurationMinutes, len(transcript), truncated)
}
