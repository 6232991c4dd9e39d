package transcribe

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
	"github.com/streamlens/catchup/cmd/server/internal/platform"
	"github.com/streamlens/catchup/cmd/server/internal/poll"
	"github.com/streamlens/catchup/pkg/logger"
)

// Result is the per-segment outcome. Every input segment produces
// exactly one Result; failures carry an empty Text and a non-nil Err.
type Result struct {
	Index      int
	Text       string
	Confidence float64
	Err        error
}

// EngineConfig bounds the parallelism and polling of the batch engine.
type EngineConfig struct {
	Concurrency  int           // batch size and parallelism ceiling
	BatchPause   time.Duration // fixed pause between batches
	PollInterval time.Duration // job status poll cadence
	PollBudget   time.Duration // per-segment wait ceiling
}

// Engine runs segments through the speech service in consecutive
// batches. Within a batch all segments run concurrently under a
// weighted semaphore; the engine waits for the whole batch before
// pausing and starting the next.
type Engine struct {
	client SpeechClient
	cfg    EngineConfig
	sem    *semaphore.Weighted
}

// NewEngine creates a batch engine over the given speech client.
func NewEngine(client SpeechClient, cfg EngineConfig) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.PollBudget <= 0 {
		cfg.PollBudget = 10 * time.Minute
	}
	return &Engine{
		client: client,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.Concurrency)),
	}
}

// TranscribeAll processes every segment and returns one Result per
// segment, ordered by segment index. Individual failures never abort
// the run.
func (e *Engine) TranscribeAll(ctx context.Context, segments []platform.Segment) []Result {
	results := make([]Result, 0, len(segments))
	if len(segments) == 0 {
		return results
	}

	batchSize := e.cfg.Concurrency
	for start := 0; start < len(segments); start += batchSize {
		end := start + batchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[start:end]

		logger.L().Info("transcription batch start",
			"batch_start", start,
			"batch_size", len(batch),
			"total", len(segments),
		)

		var wg sync.WaitGroup
		batchResults := make([]Result, len(batch))
		for i, seg := range batch {
			wg.Add(1)
			go func(i int, seg platform.Segment) {
				defer wg.Done()
				batchResults[i] = e.transcribeOne(ctx, seg)
			}(i, seg)
		}
		wg.Wait()

		results = append(results, batchResults...)

		if end < len(segments) && e.cfg.BatchPause > 0 {
			select {
			case <-ctx.Done():
				for _, seg := range segments[end:] {
					results = append(results, Result{Index: seg.Index, Err: ctx.Err()})
				}
				sortResults(results)
				return results
			case <-time.After(e.cfg.BatchPause):
			}
		}
	}

	sortResults(results)
	return results
}

// transcribeOne runs upload, submit, and bounded poll for one segment
// under the concurrency ceiling.
func (e *Engine) transcribeOne(ctx context.Context, seg platform.Segment) Result {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Result{Index: seg.Index, Err: err}
	}
	defer e.sem.Release(1)

	start := time.Now()

	handle, err := e.client.Upload(ctx, seg.Audio)
	if err != nil {
		logger.LogPhase(logger.L(), "transcribe", "error", seg.Locator, time.Since(start).Milliseconds(), string(pipeline.TRANSCRIPTION_FAILED))
		return Result{Index: seg.Index, Err: pipeline.NewTranscriptionError("upload failed", err)}
	}

	jobID, err := e.client.SubmitJob(ctx, handle)
	if err != nil {
		logger.LogPhase(logger.L(), "transcribe", "error", seg.Locator, time.Since(start).Milliseconds(), string(pipeline.TRANSCRIPTION_FAILED))
		return Result{Index: seg.Index, Err: pipeline.NewTranscriptionError("job submission failed", err)}
	}

	var final JobStatus
	maxAttempts := int(e.cfg.PollBudget/e.cfg.PollInterval) + 1
	err = poll.Wait(ctx, e.cfg.PollInterval, maxAttempts, func(ctx context.Context) (bool, error) {
		status, err := e.client.PollStatus(ctx, jobID)
		if err != nil {
			return false, err
		}
		switch status.State {
		case JobCompleted:
			final = status
			return true, nil
		case JobError:
			return false, pipeline.NewTranscriptionError("job failed: "+status.Reason, nil)
		default:
			return false, nil
		}
	})
	if err != nil {
		if errors.Is(err, poll.ErrBudgetExhausted) {
			err = pipeline.NewPollTimeoutError("transcription job " + jobID)
		}
		logger.LogPhase(logger.L(), "transcribe", "error", seg.Locator, time.Since(start).Milliseconds(), string(pipeline.TRANSCRIPTION_FAILED))
		return Result{Index: seg.Index, Err: err}
	}

	logger.LogPhase(logger.L(), "transcribe", "success", seg.Locator, time.Since(start).Milliseconds(), "")
	return Result{Index: seg.Index, Text: final.Text, Confidence: final.Confidence}
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
}

// Merge joins the non-empty transcripts in index order with single
// spaces. Detecting an all-empty merge is the caller's concern.
func Merge(results []Result) string {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sortResults(sorted)

	parts := make([]string, 0, len(sorted))
	for _, r := range sorted {
		if text := strings.TrimSpace(r.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
