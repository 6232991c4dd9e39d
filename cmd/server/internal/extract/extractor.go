// Package extract turns a stream URL and a catch-up window into ready
// audio segments, routing through the owning platform.
package extract

import (
	"context"

	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
	"github.com/streamlens/catchup/cmd/server/internal/platform"
	"github.com/streamlens/catchup/cmd/server/internal/slice"
	"github.com/streamlens/catchup/pkg/logger"
	"github.com/streamlens/catchup/pkg/metrics"
)

// Extraction is the result of a successful extract run.
type Extraction struct {
	Source   *platform.Source
	Plan     slice.Plan
	Segments []platform.Segment
	DeepLink string
}

// Extractor coordinates classification, source resolution, slice
// planning, and segment extraction.
type Extractor struct {
	platforms []platform.SourcePlatform
}

// New creates an extractor over the registered platforms.
func New(platforms []platform.SourcePlatform) *Extractor {
	return &Extractor{platforms: platforms}
}

// Validate checks that the URL belongs to a supported platform without
// doing any network work. Used by the submit path for synchronous
// request validation.
func (e *Extractor) Validate(sourceURL string) error {
	_, err := platform.Classify(sourceURL, e.platforms)
	return err
}

// Run resolves the source, plans the slice, and extracts segments.
// Failures carry a deep link whenever one is computable so the caller
// can still hand the viewer a jump URL.
func (e *Extractor) Run(ctx context.Context, sourceURL string, windowMinutes int) (*Extraction, error) {
	p, err := platform.Classify(sourceURL, e.platforms)
	if err != nil {
		return nil, err
	}

	src, err := p.ResolveSource(ctx, sourceURL)
	if err != nil {
		metrics.RecordSegment(p.Name(), false)
		return nil, err
	}

	plan, err := e.planFor(src, windowMinutes)
	if err != nil {
		return nil, err
	}

	segments, err := p.Extract(ctx, src, plan)
	if err != nil {
		metrics.RecordSegment(p.Name(), false)
		return &Extraction{
			Source:   src,
			Plan:     plan,
			DeepLink: slice.DeepLink(src.VODID, plan),
		}, err
	}
	if len(segments) == 0 {
		metrics.RecordSegment(p.Name(), false)
		return &Extraction{
			Source:   src,
			Plan:     plan,
			DeepLink: slice.DeepLink(src.VODID, plan),
		}, pipeline.NewExtractionError("no segments could be extracted from "+sourceURL, nil)
	}

	for range segments {
		metrics.RecordSegment(p.Name(), true)
	}
	logger.L().Info("extraction complete",
		"platform", p.Name(),
		"channel", src.Channel,
		"segments", len(segments),
		"mode", string(plan.Mode),
	)

	return &Extraction{
		Source:   src,
		Plan:     plan,
		Segments: segments,
		DeepLink: slice.DeepLink(src.VODID, plan),
	}, nil
}

// planFor computes the slice plan. Platforms that cannot report a
// recording duration get a pure tail-window plan of the requested size.
func (e *Extractor) planFor(src *platform.Source, windowMinutes int) (slice.Plan, error) {
	if src.Duration == "" {
		requested := windowMinutes * 60
		return slice.Plan{
			Mode:                 slice.ModeTailWindow,
			RequestedSeconds:     requested,
			AvailableSeconds:     0,
			StartOffsetSeconds:   0,
			StartOffsetFormatted: slice.FormatOffset(0),
		}, nil
	}
	return slice.ComputePlan(src.Duration, windowMinutes)
}
