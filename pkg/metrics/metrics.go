package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksTotal counts catch-up tasks by terminal state.
	// Labels: state (complete/failed)
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchup_tasks_total",
			Help: "Total number of catch-up tasks by terminal state",
		},
		[]string{"state"},
	)

	// TasksInFlight tracks tasks currently running a background pipeline.
	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catchup_tasks_in_flight",
			Help: "Number of catch-up tasks currently being processed",
		},
	)

	// SegmentsTotal counts processed audio segments.
	// Labels: platform (twitch/youtube/kick/upload), status (success/error)
	SegmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchup_segments_total",
			Help: "Total number of audio segments processed by platform",
		},
		[]string{"platform", "status"},
	)

	// UploadChunksTotal counts chunk writes accepted by the upload store.
	UploadChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catchup_upload_chunks_total",
			Help: "Total number of upload chunks accepted",
		},
	)

	// PhaseDuration observes per-phase pipeline durations in seconds.
	// Labels: phase (extract/transcribe/summarize)
	// Buckets cover sub-second clip lookups up to ten-minute transcription waits.
	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catchup_phase_duration_seconds",
			Help:    "Pipeline phase duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"phase"},
	)
)

// RecordTaskFinished records a task reaching a terminal state.
func RecordTaskFinished(state string) {
	TasksTotal.WithLabelValues(state).Inc()
}

// RecordSegment records one segment outcome for a platform.
func RecordSegment(platform string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	SegmentsTotal.WithLabelValues(platform, status).Inc()
}

// RecordPhaseDuration observes a finished phase duration in seconds.
func RecordPhaseDuration(phase string, seconds float64) {
	PhaseDuration.WithLabelValues(phase).Observe(seconds)
}
