// Package platform resolves stream URLs to recordings and extracts
// audio segments covering a catch-up window.
package platform

import (
	"context"
	"regexp"
	"strings"

	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
	"github.com/streamlens/catchup/cmd/server/internal/slice"
)

// SegmentStatus tracks a segment through the pipeline.
type SegmentStatus string

const (
	SegmentPending SegmentStatus = "pending"
	SegmentReady   SegmentStatus = "ready"
	SegmentFailed  SegmentStatus = "failed"
)

// Segment is one extracted piece of recording audio.
type Segment struct {
	Index              int
	Locator            string // clip id or media URL, for diagnostics
	StartOffsetSeconds int    // offset into the recording
	DurationSeconds    int
	Status             SegmentStatus
	Audio              []byte
}

// Source is a resolved recording behind a live stream.
type Source struct {
	Platform    string
	Channel     string
	StreamTitle string
	VODID       string // addressable recording id, empty for window platforms
	Duration    string // platform duration string, e.g. "2h15m30s"
	URL         string // original stream URL

	broadcaster string // platform-internal user id, set by ResolveSource
}

// SourcePlatform is one supported streaming platform.
type SourcePlatform interface {
	// Name returns the platform identifier (twitch, youtube, kick).
	Name() string
	// Match reports whether the URL belongs to this platform.
	Match(sourceURL string) bool
	// ResolveSource checks the channel is live and locates its
	// in-progress recording.
	ResolveSource(ctx context.Context, sourceURL string) (*Source, error)
	// Extract fetches audio segments covering the plan window.
	Extract(ctx context.Context, src *Source, plan slice.Plan) ([]Segment, error)
}

var (
	twitchChannelRe  = regexp.MustCompile(`twitch\.tv/([^/?]+)`)
	kickChannelRe    = regexp.MustCompile(`kick\.com/([^/?]+)`)
	youtubeChannelRe = regexp.MustCompile(`/(?:channel/|@|c/)([^/?]+)`)
)

// Classify picks the platform owning the URL from the registered set.
// An unmatched URL is a validation error.
func Classify(sourceURL string, platforms []SourcePlatform) (SourcePlatform, error) {
	for _, p := range platforms {
		if p.Match(sourceURL) {
			return p, nil
		}
	}
	return nil, pipeline.NewValidationError("unsupported stream platform: " + sourceURL)
}

// ChannelFromURL extracts the channel name for a known platform host.
func ChannelFromURL(sourceURL string) string {
	lower := strings.ToLower(sourceURL)
	switch {
	case strings.Contains(lower, "twitch.tv"):
		if m := twitchChannelRe.FindStringSubmatch(lower); m != nil {
			return m[1]
		}
	case strings.Contains(lower, "kick.com"):
		if m := kickChannelRe.FindStringSubmatch(lower); m != nil {
			return m[1]
		}
	case strings.Contains(lower, "youtube.com"), strings.Contains(lower, "youtu.be"):
		if m := youtubeChannelRe.FindStringSubmatch(lower); m != nil {
			return m[1]
		}
	}
	return ""
}
