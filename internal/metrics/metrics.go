// Package metrics exposes Prometheus metrics for the interview engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the session pipeline.
// A nil *Metrics is valid and records nothing, so library code can be
// used without a registry.
type Metrics struct {
	ChunksEmitted   prometheus.Counter
	DroppedSends    prometheus.Counter
	EventsReceived  *prometheus.CounterVec
	BargeIns        prometheus.Counter
	DecodeErrors    prometheus.Counter
	SessionsStarted prometheus.Counter
	SessionDuration prometheus.Histogram
}

// New creates and registers all metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates and registers all metrics on the given registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChunksEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxprep_audio_chunks_emitted_total",
			Help: "Total number of 100ms microphone chunks emitted",
		}),
		DroppedSends: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxprep_dropped_sends_total",
			Help: "Total number of outbound sends dropped because the session was not ready",
		}),
		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxprep_events_received_total",
			Help: "Total number of inbound protocol events by type",
		}, []string{"type"}),
		BargeIns: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxprep_barge_ins_total",
			Help: "Total number of playback interruptions triggered by speech detection",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxprep_playback_decode_errors_total",
			Help: "Total number of malformed audio payloads dropped by playback",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxprep_sessions_started_total",
			Help: "Total number of interview sessions started",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxprep_session_duration_seconds",
			Help:    "Duration of completed interview sessions",
			Buckets: prometheus.ExponentialBuckets(30, 2, 8), // 30s to ~1 hour
		}),
	}
}

// RecordChunk increments the emitted chunk counter.
func (m *Metrics) RecordChunk() {
	if m == nil {
		return
	}
	m.ChunksEmitted.Inc()
}

// RecordDroppedSend increments the dropped-send counter.
func (m *Metrics) RecordDroppedSend() {
	if m == nil {
		return
	}
	m.DroppedSends.Inc()
}

// RecordEvent counts one inbound protocol event.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(eventType).Inc()
}

// RecordBargeIn increments the barge-in counter.
func (m *Metrics) RecordBargeIn() {
	if m == nil {
		return
	}
	m.BargeIns.Inc()
}

// RecordDecodeError increments the playback decode error counter.
func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

// RecordSessionStart increments the sessions-started counter.
func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

// RecordSessionEnd observes a completed session's duration.
func (m *Metrics) RecordSessionEnd(seconds float64) {
	if m == nil {
		return
	}
	m.SessionDuration.Observe(seconds)
}
