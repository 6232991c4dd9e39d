package platform

import (
	"context"
	"strings"

	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
	"github.com/streamlens/catchup/cmd/server/internal/slice"
	"github.com/streamlens/catchup/pkg/logger"
)

// WindowPlatform covers platforms without an addressable recording API
// (YouTube, Kick). The whole catch-up window is fetched as a single
// tail segment through the media downloader, trading precision for
// coverage.
type WindowPlatform struct {
	name       string
	hosts      []string
	downloader MediaDownloader
}

// NewYouTube creates the YouTube window platform.
func NewYouTube(downloader MediaDownloader) *WindowPlatform {
	return &WindowPlatform{
		name:       "youtube",
		hosts:      []string{"youtube.com", "youtu.be"},
		downloader: downloader,
	}
}

// NewKick creates the Kick window platform.
func NewKick(downloader MediaDownloader) *WindowPlatform {
	return &WindowPlatform{
		name:       "kick",
		hosts:      []string{"kick.com"},
		downloader: downloader,
	}
}

func (w *WindowPlatform) Name() string { return w.name }

func (w *WindowPlatform) Match(sourceURL string) bool {
	lower := strings.ToLower(sourceURL)
	for _, host := range w.hosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

// ResolveSource has no liveness or recording API to consult here; the
// downloader itself is the availability check. Duration is unknown, so
// the plan caller falls back to the requested window.
func (w *WindowPlatform) ResolveSource(ctx context.Context, sourceURL string) (*Source, error) {
	channel := ChannelFromURL(sourceURL)
	return &Source{
		Platform: w.name,
		Channel:  channel,
		URL:      sourceURL,
	}, nil
}

// Extract fetches the tail window as one segment.
func (w *WindowPlatform) Extract(ctx context.Context, src *Source, plan slice.Plan) ([]Segment, error) {
	windowSeconds := plan.WindowSeconds()

	logger.L().Info("window platform tail fetch",
		"platform", w.name,
		"url", src.URL,
		"window_seconds", windowSeconds,
	)

	audio, err := w.downloader.DownloadTail(ctx, src.URL, windowSeconds)
	if err != nil {
		return nil, pipeline.NewExtractionError("tail fetch failed for "+src.URL, err)
	}

	return []Segment{{
		Index:              0,
		Locator:            src.URL,
		StartOffsetSeconds: plan.StartOffsetSeconds,
		DurationSeconds:    windowSeconds,
		Status:             SegmentReady,
		Audio:              audio,
	}}, nil
}
