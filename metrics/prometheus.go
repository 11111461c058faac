// Package metrics registers the Prometheus instrumentation for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Relay session metrics
	ActiveRelays   prometheus.Gauge
	RelaysStarted  prometheus.Counter
	RelaysClosed   prometheus.Counter
	RelayErrors    *prometheus.CounterVec
	SessionSeconds prometheus.Histogram

	// Frame forwarding metrics
	FramesForwarded *prometheus.CounterVec
	FramesDropped   prometheus.Counter

	// Persistence metrics
	TurnsPersisted   prometheus.Counter
	PersistKept      prometheus.Counter
	RecordingsStored prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		ActiveRelays: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_sessions",
			Help: "Current number of active relay sessions",
		}),
		RelaysStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_sessions_started_total",
			Help: "Total number of relay sessions started",
		}),
		RelaysClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_sessions_closed_total",
			Help: "Total number of relay sessions fully drained and closed",
		}),
		RelayErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_errors_total",
			Help: "Total number of relay errors by kind",
		}, []string{"kind"}),
		SessionSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_session_duration_seconds",
			Help:    "Duration of relay sessions from connect to close",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		FramesForwarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_frames_forwarded_total",
			Help: "Total number of frames forwarded by direction",
		}, []string{"direction"}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_audio_chunks_dropped_total",
			Help: "Total number of audio chunks refused by full recording buffers",
		}),
		TurnsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_turns_persisted_total",
			Help: "Total number of transcript turns accepted by the persistence gateway",
		}),
		PersistKept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_persist_kept_existing_total",
			Help: "Total number of submissions where a larger stored transcript was kept",
		}),
		RecordingsStored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_recordings_stored_total",
			Help: "Total number of session recordings encoded and stored",
		}),
	}
}
