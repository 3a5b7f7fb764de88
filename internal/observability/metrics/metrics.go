// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speech_transcript"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Stream metrics
	StreamsTotal   prometheus.Counter
	StreamsActive  prometheus.Gauge
	StreamsSuccess prometheus.Counter
	StreamsFailed  prometheus.Counter
	StreamDuration prometheus.Histogram

	// Session metrics
	SessionsActive prometheus.Gauge

	// Turn metrics
	TurnsStarted  prometheus.Counter
	TurnsEnded    *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	TurnWordCount prometheus.Histogram

	// Transcript metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter
	MergeFallbacks     prometheus.Counter

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter

	// Publish metrics
	PublishTotal   *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec

	// Recognizer metrics
	RecognizerErrors    *prometheus.CounterVec
	RecognizerStartFail *prometheus.CounterVec
	EndOfSpeech         prometheus.Counter

	// Store metrics
	StoreErrors *prometheus.CounterVec

	// Backpressure metrics
	TurnLimitExceeded *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Stream metrics
		StreamsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of client streams started (gRPC and WebSocket)",
		}),
		StreamsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of currently active client streams",
		}),
		StreamsSuccess: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_success_total",
			Help:      "Total number of successfully completed streams",
		}),
		StreamsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_failed_total",
			Help:      "Total number of failed streams",
		}),
		StreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of client streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),

		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open transcription sessions",
		}),

		// Turn metrics
		TurnsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_started_total",
			Help:      "Total number of recognition turns started",
		}),
		TurnsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_ended_total",
			Help:      "Total number of recognition turns ended",
		}, []string{"reason"}),
		TurnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of recognition turns in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		TurnWordCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_words",
			Help:      "Number of words in finalized transcripts",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 200},
		}),

		// Transcript metrics
		TranscriptsPartial: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of partial transcripts received",
		}),
		TranscriptsFinal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcripts received",
		}),
		MergeFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_fallbacks_total",
			Help:      "Partials that did not extend the previous partial and were appended whole",
		}),

		// Audio metrics
		AudioBytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),

		// Publish metrics
		PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of transcript events published",
		}, []string{"backend", "destination", "event_type"}),
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of transcript event publish errors",
		}, []string{"backend", "destination", "event_type"}),
		PublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_latency_seconds",
			Help:      "Transcript event publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"backend", "destination"}),

		// Recognizer metrics
		RecognizerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_errors_total",
			Help:      "Total number of recognizer errors",
		}, []string{"provider", "kind"}),
		RecognizerStartFail: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_unavailable_total",
			Help:      "Total number of turns refused because no recognizer could be created",
		}, []string{"provider"}),
		EndOfSpeech: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "end_of_speech_total",
			Help:      "Total number of end-of-speech signals from the recognizer",
		}),

		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total number of turn store failures",
		}, []string{"op"}),

		// Backpressure metrics
		TurnLimitExceeded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_limit_exceeded_total",
			Help:      "Total number of times turn limits were exceeded",
		}, []string{"limit_type"}),
	}
}

// RecordStreamStart records a new stream starting.
func (m *Metrics) RecordStreamStart() {
	m.StreamsTotal.Inc()
	m.StreamsActive.Inc()
}

// RecordStreamEnd records a stream ending.
func (m *Metrics) RecordStreamEnd(success bool, durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
	if success {
		m.StreamsSuccess.Inc()
	} else {
		m.StreamsFailed.Inc()
	}
}

// RecordSessionOpened records a session being created.
func (m *Metrics) RecordSessionOpened() {
	m.SessionsActive.Inc()
}

// RecordSessionClosed records a session being closed.
func (m *Metrics) RecordSessionClosed() {
	m.SessionsActive.Dec()
}

// RecordTurnStarted records a new recognition turn.
func (m *Metrics) RecordTurnStarted() {
	m.TurnsStarted.Inc()
}

// RecordTurnEnded records a turn ending with its reason, duration and word count.
func (m *Metrics) RecordTurnEnded(reason string, durationSeconds float64, words int) {
	m.TurnsEnded.WithLabelValues(reason).Inc()
	m.TurnDuration.Observe(durationSeconds)
	m.TurnWordCount.Observe(float64(words))
}

// RecordPartialTranscript records a partial transcript received.
// extended is false when the partial did not start with the previous one.
func (m *Metrics) RecordPartialTranscript(extended bool) {
	m.TranscriptsPartial.Inc()
	if !extended {
		m.MergeFallbacks.Inc()
	}
}

// RecordFinalTranscript records a final transcript received.
func (m *Metrics) RecordFinalTranscript() {
	m.TranscriptsFinal.Inc()
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordPublish records a publish attempt.
func (m *Metrics) RecordPublish(backend, destination, eventType string, err error, latencySeconds float64) {
	m.PublishTotal.WithLabelValues(backend, destination, eventType).Inc()
	m.PublishLatency.WithLabelValues(backend, destination).Observe(latencySeconds)
	if err != nil {
		m.PublishErrors.WithLabelValues(backend, destination, eventType).Inc()
	}
}

// RecordRecognizerError records a recognizer error.
func (m *Metrics) RecordRecognizerError(provider, kind string) {
	m.RecognizerErrors.WithLabelValues(provider, kind).Inc()
}

// RecordRecognizerUnavailable records a failure to create a recognizer.
func (m *Metrics) RecordRecognizerUnavailable(provider string) {
	m.RecognizerStartFail.WithLabelValues(provider).Inc()
}

// RecordEndOfSpeech records an end-of-speech signal.
func (m *Metrics) RecordEndOfSpeech() {
	m.EndOfSpeech.Inc()
}

// RecordStoreError records a failed store operation.
func (m *Metrics) RecordStoreError(op string) {
	m.StoreErrors.WithLabelValues(op).Inc()
}

// RecordLimitExceeded records when a turn limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.TurnLimitExceeded.WithLabelValues(limitType).Inc()
}
