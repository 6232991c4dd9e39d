package catchup

import (
	"context"
	"errors"
	"time"

	"github.com/streamlens/catchup/cmd/server/internal/audit"
	"github.com/streamlens/catchup/cmd/server/internal/credit"
	"github.com/streamlens/catchup/cmd/server/internal/extract"
	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
	"github.com/streamlens/catchup/cmd/server/internal/platform"
	"github.com/streamlens/catchup/cmd/server/internal/summarize"
	"github.com/streamlens/catchup/cmd/server/internal/transcribe"
	"github.com/streamlens/catchup/cmd/server/internal/upload"
	"github.com/streamlens/catchup/pkg/logger"
	"github.com/streamlens/catchup/pkg/metrics"
)

// SubmitRequest is a stream-sourced catch-up submission.
type SubmitRequest struct {
	StreamURL       string
	DurationMinutes int
	UserID          string
}

// UploadSubmitRequest is a catch-up submission over a finalized upload.
type UploadSubmitRequest struct {
	UploadID        string
	DurationMinutes int
	UserID          string
}

// Config tunes the orchestrator.
type Config struct {
	AllowedWindows []int
	PhaseTimeout   time.Duration
	CostForWindow  func(minutes int) int
}

// Orchestrator validates submissions, gates them on credit, and drives
// accepted tasks through the pipeline in a background goroutine.
type Orchestrator struct {
	cfg        Config
	registry   *Registry
	extractor  *extract.Extractor
	engine     *transcribe.Engine
	summarizer summarize.Summarizer // nil means fallback only
	gate       credit.Gate
	uploads    *upload.Store
	auditLog   *audit.Logger
}

// NewOrchestrator wires the pipeline collaborators together.
func NewOrchestrator(cfg Config, registry *Registry, extractor *extract.Extractor, engine *transcribe.Engine, summarizer summarize.Summarizer, gate credit.Gate, uploads *upload.Store, auditLog *audit.Logger) *Orchestrator {
	if cfg.PhaseTimeout <= 0 {
		cfg.PhaseTimeout = 15 * time.Minute
	}
	if cfg.CostForWindow == nil {
		cfg.CostForWindow = func(int) int { return 1 }
	}
	if gate == nil {
		gate = credit.AllowAll{}
	}
	return &Orchestrator{
		cfg:        cfg,
		registry:   registry,
		extractor:  extractor,
		engine:     engine,
		summarizer: summarizer,
		gate:       gate,
		uploads:    uploads,
		auditLog:   auditLog,
	}
}

// Submit validates the request, charges the credit gate, creates the
// task, and schedules the background run. It returns as soon as the
// task exists; progress is observed through GetStatus.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := o.validateWindow(req.DurationMinutes); err != nil {
		return "", err
	}
	if req.StreamURL == "" {
		return "", pipeline.NewValidationError("stream_url is required")
	}
	if err := o.extractor.Validate(req.StreamURL); err != nil {
		return "", err
	}

	if err := o.checkCredit(ctx, req.UserID, req.DurationMinutes, req.StreamURL); err != nil {
		return "", err
	}

	task := o.registry.Create(req.StreamURL, "", req.DurationMinutes, req.UserID)
	if o.auditLog != nil {
		o.auditLog.LogSubmission(task.ID, req.UserID, req.StreamURL, req.DurationMinutes, o.cfg.CostForWindow(req.DurationMinutes), true)
	}

	go o.runStream(task.ID, req)
	return task.ID, nil
}

// SubmitUpload starts a catch-up over a finalized upload payload. The
// payload is consumed here, so a retry needs a fresh upload.
func (o *Orchestrator) SubmitUpload(ctx context.Context, req UploadSubmitRequest) (string, error) {
	if err := o.validateWindow(req.DurationMinutes); err != nil {
		return "", err
	}
	if req.UploadID == "" {
		return "", pipeline.NewValidationError("upload_id is required")
	}

	if err := o.checkCredit(ctx, req.UserID, req.DurationMinutes, "upload:"+req.UploadID); err != nil {
		return "", err
	}

	payload, err := o.uploads.TakeFinalized(req.UploadID, req.UserID)
	if err != nil {
		return "", err
	}

	task := o.registry.Create("", req.UploadID, req.DurationMinutes, req.UserID)
	if o.auditLog != nil {
		o.auditLog.LogSubmission(task.ID, req.UserID, "upload:"+req.UploadID, req.DurationMinutes, o.cfg.CostForWindow(req.DurationMinutes), true)
	}

	go o.runUpload(task.ID, req, payload)
	return task.ID, nil
}

// GetStatus returns a read-only task snapshot.
func (o *Orchestrator) GetStatus(taskID string) (Task, error) {
	return o.registry.Get(taskID)
}

func (o *Orchestrator) validateWindow(minutes int) error {
	for _, w := range o.cfg.AllowedWindows {
		if w == minutes {
			return nil
		}
	}
	return pipeline.NewValidationError("duration_minutes must be one of the allowed windows")
}

// checkCredit runs the gate before any billable work exists. A denial
// is a synchronous error, never a failed task.
func (o *Orchestrator) checkCredit(ctx context.Context, userID string, windowMinutes int, source string) error {
	cost := o.cfg.CostForWindow(windowMinutes)
	decision, err := o.gate.Check(ctx, userID, cost)
	if err != nil {
		return pipeline.NewCreditGateUnavailableError(err)
	}
	if !decision.Allowed {
		if o.auditLog != nil {
			o.auditLog.LogSubmission("", userID, source, windowMinutes, cost, false)
		}
		return pipeline.NewInsufficientCreditError(decision.Remaining, cost)
	}
	return nil
}

// runStream is the background pipeline for a stream-sourced task.
func (o *Orchestrator) runStream(taskID string, req SubmitRequest) {
	start := time.Now()
	metrics.TasksInFlight.Inc()
	defer metrics.TasksInFlight.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.PhaseTimeout)
	defer cancel()

	o.setPhase(taskID, StateExtracting, 10, "Analyzing stream...")

	phaseStart := time.Now()
	extraction, err := o.extractor.Run(ctx, req.StreamURL, req.DurationMinutes)
	metrics.RecordPhaseDuration("extract", time.Since(phaseStart).Seconds())
	if err != nil {
		deepLink := ""
		if extraction != nil {
			deepLink = extraction.DeepLink
		}
		o.fail(taskID, err, deepLink, start)
		return
	}

	meta := summarize.Meta{
		Platform:        extraction.Source.Platform,
		StreamURL:       req.StreamURL,
		StreamTitle:     extraction.Source.StreamTitle,
		DurationMinutes: req.DurationMinutes,
		SegmentCount:    len(extraction.Segments),
		DeepLink:        extraction.DeepLink,
	}
	o.transcribeAndFinish(ctx, taskID, extraction.Segments, meta, start)
}

// runUpload is the background pipeline for an upload-sourced task: the
// reassembled payload is the single segment, so extraction is trivial.
func (o *Orchestrator) runUpload(taskID string, req UploadSubmitRequest, payload *upload.FinalizedPayload) {
	start := time.Now()
	metrics.TasksInFlight.Inc()
	defer metrics.TasksInFlight.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.PhaseTimeout)
	defer cancel()

	o.setPhase(taskID, StateExtracting, 10, "Reading uploaded audio...")
	metrics.RecordSegment("upload", true)

	segments := []platform.Segment{{
		Index:           0,
		Locator:         "upload:" + req.UploadID,
		DurationSeconds: req.DurationMinutes * 60,
		Status:          platform.SegmentReady,
		Audio:           payload.Data,
	}}

	meta := summarize.Meta{
		Platform:        "upload",
		StreamURL:       "upload:" + req.UploadID,
		DurationMinutes: req.DurationMinutes,
		SegmentCount:    1,
	}
	o.transcribeAndFinish(ctx, taskID, segments, meta, start)
}

// transcribeAndFinish runs the shared transcribe and summarize phases.
func (o *Orchestrator) transcribeAndFinish(ctx context.Context, taskID string, segments []platform.Segment, meta summarize.Meta, start time.Time) {
	o.setPhase(taskID, StateTranscribing, 40, "Transcribing segments...")

	phaseStart := time.Now()
	results := o.engine.TranscribeAll(ctx, segments)
	metrics.RecordPhaseDuration("transcribe", time.Since(phaseStart).Seconds())

	merged := transcribe.Merge(results)
	if merged == "" {
		o.fail(taskID, pipeline.NewTranscriptionError("transcription produced no text", firstErr(results)), meta.DeepLink, start)
		return
	}

	o.setPhase(taskID, StateSummarizing, 80, "Generating summary...")

	phaseStart = time.Now()
	summary := o.summarizeWithFallback(ctx, merged, meta)
	metrics.RecordPhaseDuration("summarize", time.Since(phaseStart).Seconds())

	elapsed := time.Since(start).Seconds()
	result := &Result{
		Summary:           summary,
		FullTranscript:    capTranscript(merged),
		SegmentsProcessed: len(segments),
		DurationMinutes:   meta.DurationMinutes,
		ProcessingSeconds: elapsed,
		StreamURL:         meta.StreamURL,
		DeepLink:          meta.DeepLink,
	}

	o.registry.update(taskID, func(t *Task) {
		t.State = StateComplete
		t.Progress = 100
		t.Message = "Summary generated successfully"
		t.Result = result
		t.FinishedAt = time.Now()
	})

	metrics.RecordTaskFinished(string(StateComplete))
	if o.auditLog != nil {
		o.auditLog.LogTaskFinished(taskID, meta.Platform, string(StateComplete), elapsed, "")
	}
	logger.L().Info("task complete", "task_id", taskID, "elapsed_seconds", elapsed)
}

// summarizeWithFallback never fails: a backend error degrades to the
// local statistics summary.
func (o *Orchestrator) summarizeWithFallback(ctx context.Context, transcript string, meta summarize.Meta) string {
	if o.summarizer == nil {
		return summarize.Fallback(transcript, meta)
	}
	summary, err := o.summarizer.Summarize(ctx, transcript, meta)
	if err != nil {
		logger.L().Warn("summarizer backend failed, using fallback", "error", err)
		return summarize.Fallback(transcript, meta)
	}
	return summary
}

func (o *Orchestrator) setPhase(taskID string, state State, progress int, message string) {
	o.registry.update(taskID, func(t *Task) {
		t.State = state
		t.Progress = progress
		t.Message = message
	})
}

func (o *Orchestrator) fail(taskID string, err error, deepLink string, start time.Time) {
	code := ""
	var perr *pipeline.PipelineError
	if errors.As(err, &perr) {
		code = string(perr.Code)
	}

	message := "Error: " + err.Error()
	if deepLink != "" {
		message += " You can still watch this part of the recording at " + deepLink
	}

	o.registry.update(taskID, func(t *Task) {
		t.State = StateFailed
		t.Progress = 0
		t.Message = message
		t.ErrorCode = code
		t.FinishedAt = time.Now()
	})

	metrics.RecordTaskFinished(string(StateFailed))
	elapsed := time.Since(start).Seconds()
	if o.auditLog != nil {
		o.auditLog.LogTaskFinished(taskID, "", string(StateFailed), elapsed, code)
	}
	logger.L().Error("task failed", "task_id", taskID, "error", err, "error_code", code)
}

func capTranscript(transcript string) string {
	if len(transcript) <= resultTranscriptCap {
		return transcript
	}
	return transcript[:resultTranscriptCap]
}

func firstErr(results []transcribe.Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
