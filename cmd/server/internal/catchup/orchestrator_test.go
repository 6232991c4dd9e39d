package catchup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamlens/catchup/cmd/server/internal/credit"
	"github.com/streamlens/catchup/cmd/server/internal/extract"
	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
	"github.com/streamlens/catchup/cmd/server/internal/platform"
	"github.com/streamlens/catchup/cmd/server/internal/slice"
	"github.com/streamlens/catchup/cmd/server/internal/summarize"
	"github.com/streamlens/catchup/cmd/server/internal/transcribe"
	"github.com/streamlens/catchup/cmd/server/internal/upload"
)

type fakePlatform struct {
	source     *platform.Source
	resolveErr error
	segments   []platform.Segment
	extractErr error
}

func (f *fakePlatform) Name() string                { return "twitch" }
func (f *fakePlatform) Match(sourceURL string) bool { return true }
func (f *fakePlatform) ResolveSource(ctx context.Context, sourceURL string) (*platform.Source, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.source, nil
}
func (f *fakePlatform) Extract(ctx context.Context, src *platform.Source, plan slice.Plan) ([]platform.Segment, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.segments, nil
}

// fakeSpeech echoes the audio bytes back as the transcript, with
// per-audio override tables for empty or failing segments.
type fakeSpeech struct {
	texts      map[string]string // audio -> transcript, missing key echoes audio
	failUpload map[string]bool   // audio -> upload rejection
}

func (f *fakeSpeech) Upload(ctx context.Context, audio []byte) (string, error) {
	if f.failUpload[string(audio)] {
		return "", errors.New("upload rejected")
	}
	return string(audio), nil
}
func (f *fakeSpeech) SubmitJob(ctx context.Context, handle string) (string, error) {
	return handle, nil
}
func (f *fakeSpeech) PollStatus(ctx context.Context, jobID string) (transcribe.JobStatus, error) {
	text := jobID
	if f.texts != nil {
		if t, ok := f.texts[jobID]; ok {
			text = t
		}
	}
	return transcribe.JobStatus{State: transcribe.JobCompleted, Text: text, Confidence: 0.9}, nil
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcript string, meta summarize.Meta) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

type denyGate struct{ remaining int }

func (g denyGate) Check(ctx context.Context, userID string, cost int) (credit.Decision, error) {
	return credit.Decision{Allowed: false, Remaining: g.remaining}, nil
}

type errGate struct{}

func (errGate) Check(ctx context.Context, userID string, cost int) (credit.Decision, error) {
	return credit.Decision{}, errors.New("connection refused")
}

func newTestOrchestrator(p platform.SourcePlatform, speech transcribe.SpeechClient, summarizer summarize.Summarizer, gate credit.Gate, uploads *upload.Store) (*Orchestrator, *Registry) {
	registry := NewRegistry()
	extractor := extract.New([]platform.SourcePlatform{p})
	engine := transcribe.NewEngine(speech, transcribe.EngineConfig{
		Concurrency:  3,
		PollInterval: time.Millisecond,
		PollBudget:   time.Second,
	})
	o := NewOrchestrator(Config{
		AllowedWindows: []int{30, 60},
		PhaseTimeout:   5 * time.Second,
		CostForWindow:  func(minutes int) int { return minutes / 30 },
	}, registry, extractor, engine, summarizer, gate, uploads, nil)
	return o, registry
}

func waitTerminal(t *testing.T, o *Orchestrator, taskID string) Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := o.GetStatus(taskID)
		require.NoError(t, err)
		if task.State.Terminal() {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal state")
	return Task{}
}

func liveSource() *platform.Source {
	return &platform.Source{
		Platform:    "twitch",
		Channel:     "somechannel",
		StreamTitle: "Speedrun Marathon",
		VODID:       "123456",
		Duration:    "2h5m",
		URL:         "https://www.twitch.tv/somechannel",
	}
}

func TestSubmitHappyPath(t *testing.T) {
	p := &fakePlatform{
		source: liveSource(),
		segments: []platform.Segment{
			{Index: 0, Audio: []byte("hello from the"), Status: platform.SegmentReady},
			{Index: 1, Audio: []byte("first segment"), Status: platform.SegmentReady},
		},
	}
	o, _ := newTestOrchestrator(p, &fakeSpeech{}, &fakeSummarizer{summary: "the streamer beat the boss"}, credit.AllowAll{}, upload.NewStore())

	taskID, err := o.Submit(context.Background(), SubmitRequest{
		StreamURL:       "https://www.twitch.tv/somechannel",
		DurationMinutes: 30,
		UserID:          "user-1",
	})
	require.NoError(t, err)

	task := waitTerminal(t, o, taskID)
	assert.Equal(t, StateComplete, task.State)
	assert.Equal(t, 100, task.Progress)
	require.NotNil(t, task.Result)
	assert.Equal(t, "the streamer beat the boss", task.Result.Summary)
	assert.Equal(t, "hello from the first segment", task.Result.FullTranscript)
	assert.Equal(t, 2, task.Result.SegmentsProcessed)
	assert.Equal(t, 30, task.Result.DurationMinutes)
	assert.Equal(t, "https://www.twitch.tv/somechannel", task.Result.StreamURL)
	// 2h5m recording, last 30 minutes: offset 5700s = 1h35m0s
	assert.Equal(t, "https://www.twitch.tv/videos/123456?t=1h35m0s", task.Result.DeepLink)
}

func TestSubmitRejectsUnknownWindow(t *testing.T) {
	o, registry := newTestOrchestrator(&fakePlatform{source: liveSource()}, &fakeSpeech{}, nil, credit.AllowAll{}, upload.NewStore())

	_, err := o.Submit(context.Background(), SubmitRequest{
		StreamURL:       "https://www.twitch.tv/somechannel",
		DurationMinutes: 45,
		UserID:          "user-1",
	})
	var perr *pipeline.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pipeline.VALIDATION_FAILED, perr.Code)
	assert.Equal(t, 0, registry.Count())
}

func TestSubmitCreditDenialIsSynchronous(t *testing.T) {
	o, registry := newTestOrchestrator(&fakePlatform{source: liveSource()}, &fakeSpeech{}, nil, denyGate{remaining: 1}, upload.NewStore())

	_, err := o.Submit(context.Background(), SubmitRequest{
		StreamURL:       "https://www.twitch.tv/somechannel",
		DurationMinutes: 60,
		UserID:          "user-1",
	})
	var perr *pipeline.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pipeline.INSUFFICIENT_CREDIT, perr.Code)
	assert.Contains(t, err.Error(), "have 1, need 2")
	// denial must not leave a task behind
	assert.Equal(t, 0, registry.Count())
}

func TestSubmitGateOutageIsNotADenial(t *testing.T) {
	o, registry := newTestOrchestrator(&fakePlatform{source: liveSource()}, &fakeSpeech{}, nil, errGate{}, upload.NewStore())

	_, err := o.Submit(context.Background(), SubmitRequest{
		StreamURL:       "https://www.twitch.tv/somechannel",
		DurationMinutes: 30,
		UserID:          "user-1",
	})
	var perr *pipeline.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pipeline.CREDIT_GATE_UNAVAILABLE, perr.Code)
	assert.Equal(t, 0, registry.Count())
}

func TestSubmitPartialSegmentFailureStillCompletes(t *testing.T) {
	p := &fakePlatform{
		source: liveSource(),
		segments: []platform.Segment{
			{Index: 0, Audio: []byte("one"), Status: platform.SegmentReady},
			{Index: 1, Audio: []byte("two"), Status: platform.SegmentReady},
			{Index: 2, Audio: []byte("three"), Status: platform.SegmentReady},
			{Index: 3, Audio: []byte("four"), Status: platform.SegmentReady},
		},
	}
	speech := &fakeSpeech{failUpload: map[string]bool{"two": true}}
	o, _ := newTestOrchestrator(p, speech, &fakeSummarizer{summary: "s"}, credit.AllowAll{}, upload.NewStore())

	taskID, err := o.Submit(context.Background(), SubmitRequest{
		StreamURL:       "https://www.twitch.tv/somechannel",
		DurationMinutes: 30,
		UserID:          "user-1",
	})
	require.NoError(t, err)

	task := waitTerminal(t, o, taskID)
	assert.Equal(t, StateComplete, task.State)
	require.NotNil(t, task.Result)
	// the failed segment is skipped, survivors merge in index order
	assert.Equal(t, "one three four", task.Result.FullTranscript)
}

func TestSubmitExtractionFailureKeepsDeepLink(t *testing.T) {
	p := &fakePlatform{
		source:     liveSource(),
		extractErr: pipeline.NewExtractionError("no clips became fetchable", nil),
	}
	o, _ := newTestOrchestrator(p, &fakeSpeech{}, nil, credit.AllowAll{}, upload.NewStore())

	taskID, err := o.Submit(context.Background(), SubmitRequest{
		StreamURL:       "https://www.twitch.tv/somechannel",
		DurationMinutes: 30,
		UserID:          "user-1",
	})
	require.NoError(t, err)

	task := waitTerminal(t, o, taskID)
	assert.Equal(t, StateFailed, task.State)
	assert.Equal(t, 0, task.Progress)
	assert.Equal(t, string(pipeline.EXTRACTION_FAILED), task.ErrorCode)
	assert.Contains(t, task.Message, "Error:")
	assert.Contains(t, task.Message, "https://www.twitch.tv/videos/123456?t=1h35m0s")
	assert.Nil(t, task.Result)
}

func TestSubmitNotLiveFails(t *testing.T) {
	p := &fakePlatform{resolveErr: pipeline.NewNoRecordingError("somechannel")}
	o, _ := newTestOrchestrator(p, &fakeSpeech{}, nil, credit.AllowAll{}, upload.NewStore())

	taskID, err := o.Submit(context.Background(), SubmitRequest{
		StreamURL:       "https://www.twitch.tv/somechannel",
		DurationMinutes: 30,
		UserID:          "user-1",
	})
	require.NoError(t, err)

	task := waitTerminal(t, o, taskID)
	assert.Equal(t, StateFailed, task.State)
	assert.Equal(t, string(pipeline.NO_RECORDING), task.ErrorCode)
}

func TestSubmitAllEmptyTranscriptsFails(t *testing.T) {
	p := &fakePlatform{
		source: liveSource(),
		segments: []platform.Segment{
			{Index: 0, Audio: []byte("a"), Status: platform.SegmentReady},
			{Index: 1, Audio: []byte("b"), Status: platform.SegmentReady},
		},
	}
	speech := &fakeSpeech{texts: map[string]string{"a": "", "b": "   "}}
	o, _ := newTestOrchestrator(p, speech, nil, credit.AllowAll{}, upload.NewStore())

	taskID, err := o.Submit(context.Background(), SubmitRequest{
		StreamURL:       "https://www.twitch.tv/somechannel",
		DurationMinutes: 30,
		UserID:          "user-1",
	})
	require.NoError(t, err)

	task := waitTerminal(t, o, taskID)
	assert.Equal(t, StateFailed, task.State)
	assert.Equal(t, string(pipeline.TRANSCRIPTION_FAILED), task.ErrorCode)
}

func TestSubmitSummarizerFailureFallsBack(t *testing.T) {
	p := &fakePlatform{
		source: liveSource(),
		segments: []platform.Segment{
			{Index: 0, Audio: []byte("some words were said"), Status: platform.SegmentReady},
		},
	}
	summarizer := &fakeSummarizer{err: errors.New("backend down")}
	o, _ := newTestOrchestrator(p, &fakeSpeech{}, summarizer, credit.AllowAll{}, upload.NewStore())

	taskID, err := o.Submit(context.Background(), SubmitRequest{
		StreamURL:       "https://www.twitch.tv/somechannel",
		DurationMinutes: 30,
		UserID:          "user-1",
	})
	require.NoError(t, err)

	task := waitTerminal(t, o, taskID)
	assert.Equal(t, StateComplete, task.State)
	require.NotNil(t, task.Result)
	assert.Contains(t, task.Result.Summary, "Stream Catch-Up")
	assert.Equal(t, "some words were said", task.Result.FullTranscript)
}

func TestSubmitProgressNeverRegressesWhileRunning(t *testing.T) {
	p := &fakePlatform{
		source: liveSource(),
		segments: []platform.Segment{
			{Index: 0, Audio: []byte("hello"), Status: platform.SegmentReady},
		},
	}
	o, _ := newTestOrchestrator(p, &fakeSpeech{}, &fakeSummarizer{summary: "s"}, credit.AllowAll{}, upload.NewStore())

	taskID, err := o.Submit(context.Background(), SubmitRequest{
		StreamURL:       "https://www.twitch.tv/somechannel",
		DurationMinutes: 30,
		UserID:          "user-1",
	})
	require.NoError(t, err)

	last := -1
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := o.GetStatus(taskID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, task.Progress, last)
		last = task.Progress
		if task.State.Terminal() {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 100, last)
}

func TestSubmitUploadHappyPath(t *testing.T) {
	uploads := upload.NewStore()
	uploadID, err := uploads.Init(10, 2, "mp3", 44100, "user-1")
	require.NoError(t, err)
	require.NoError(t, uploads.PutChunk(uploadID, 0, []byte("recorded"), "user-1"))
	require.NoError(t, uploads.PutChunk(uploadID, 1, []byte(" audio"), "user-1"))
	_, err = uploads.Finalize(uploadID, "user-1")
	require.NoError(t, err)

	o, _ := newTestOrchestrator(&fakePlatform{}, &fakeSpeech{}, &fakeSummarizer{summary: "upload summary"}, credit.AllowAll{}, uploads)

	taskID, err := o.SubmitUpload(context.Background(), UploadSubmitRequest{
		UploadID:        uploadID,
		DurationMinutes: 30,
		UserID:          "user-1",
	})
	require.NoError(t, err)

	task := waitTerminal(t, o, taskID)
	assert.Equal(t, StateComplete, task.State)
	require.NotNil(t, task.Result)
	assert.Equal(t, "upload summary", task.Result.Summary)
	assert.Equal(t, "recorded audio", task.Result.FullTranscript)
	assert.Equal(t, 1, task.Result.SegmentsProcessed)

	// payload was consumed, a second submit needs a fresh upload
	_, err = o.SubmitUpload(context.Background(), UploadSubmitRequest{
		UploadID:        uploadID,
		DurationMinutes: 30,
		UserID:          "user-1",
	})
	require.Error(t, err)
}

func TestSubmitUploadUnknownID(t *testing.T) {
	o, registry := newTestOrchestrator(&fakePlatform{}, &fakeSpeech{}, nil, credit.AllowAll{}, upload.NewStore())

	_, err := o.SubmitUpload(context.Background(), UploadSubmitRequest{
		UploadID:        "no-such-upload",
		DurationMinutes: 30,
		UserID:          "user-1",
	})
	var perr *pipeline.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pipeline.UPLOAD_SESSION_ERROR, perr.Code)
	assert.Equal(t, 0, registry.Count())
}

func TestTranscriptCappedInResult(t *testing.T) {
	long := make([]byte, 7000)
	for i := range long {
		long[i] = 'a'
	}
	p := &fakePlatform{
		source:   liveSource(),
		segments: []platform.Segment{{Index: 0, Audio: long, Status: platform.SegmentReady}},
	}
	o, _ := newTestOrchestrator(p, &fakeSpeech{}, &fakeSummarizer{summary: "s"}, credit.AllowAll{}, upload.NewStore())

	taskID, err := o.Submit(context.Background(), SubmitRequest{
		StreamURL:       "https://www.twitch.tv/somechannel",
		DurationMinutes: 30,
		UserID:          "user-1",
	})
	require.NoError(t, err)

	task := waitTerminal(t, o, taskID)
	require.NotNil(t, task.Result)
	assert.Len(t, task.Result.FullTranscript, resultTranscriptCap)
}
