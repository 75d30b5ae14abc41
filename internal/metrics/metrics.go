// Package metrics exposes Prometheus metrics for the voxa server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice pipeline.
type Metrics struct {
	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsSwept   prometheus.Counter

	// Turn metrics
	TurnsStarted   prometheus.Counter
	TurnsCompleted prometheus.Counter
	TurnsCancelled prometheus.Counter
	TurnDuration   prometheus.Histogram

	// Streaming metrics
	TokensStreamed      prometheus.Counter
	AudioChunksIn       prometheus.Counter
	AudioChunksRelayed  prometheus.Counter
	FallbackSyntheses   prometheus.Counter
	TranscriptsPartial  prometheus.Counter
	TranscriptsFinal    prometheus.Counter

	// HTTP API metrics
	HTTPRequests *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voxa_active_sessions",
			Help: "Current number of active conversation sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxa_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxa_sessions_swept_total",
			Help: "Total number of idle sessions removed by cleanup",
		}),
		TurnsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxa_turns_started_total",
			Help: "Total number of response turns started",
		}),
		TurnsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxa_turns_completed_total",
			Help: "Total number of response turns completed",
		}),
		TurnsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxa_turns_cancelled_total",
			Help: "Total number of response turns cancelled by interruption",
		}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxa_turn_duration_seconds",
			Help:    "Duration of response turns from model start to audio final",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		TokensStreamed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxa_llm_tokens_streamed_total",
			Help: "Total number of model tokens relayed to clients",
		}),
		AudioChunksIn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxa_audio_chunks_received_total",
			Help: "Total number of inbound client audio chunks",
		}),
		AudioChunksRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxa_audio_chunks_relayed_total",
			Help: "Total number of synthesized audio chunks relayed to clients",
		}),
		FallbackSyntheses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxa_fallback_syntheses_total",
			Help: "Total number of non-streaming synthesis fallbacks",
		}),
		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxa_transcripts_partial_total",
			Help: "Total number of partial transcripts received",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxa_transcripts_final_total",
			Help: "Total number of final transcripts received",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voxa_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
	}
}
