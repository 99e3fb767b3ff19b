// Package metrics provides Prometheus metrics for the hand-music engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the engine's Prometheus collectors.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	framesProcessed  prometheus.Counter
	framesDropped    prometheus.Counter
	classifyFailures *prometheus.CounterVec
	eventsEmitted    *prometheus.CounterVec
	frameLatency     prometheus.Histogram
	sessionActive    prometheus.Gauge
	sinkErrors       prometheus.Counter
}

// defaultBuckets covers sub-millisecond up to a full frame period at 15 FPS.
var defaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 66}

// NewManager creates a Manager. Without WithRegistry a private registry is used.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "handmusic",
		subsystem:        "engine",
		histogramBuckets: defaultBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.init()
	return m
}

func (m *Manager) init() {
	auto := promauto.With(m.registry)

	m.framesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_processed_total",
		Help:      "Frames run through the performance state machine.",
	})
	m.framesDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_dropped_total",
		Help:      "Frames replaced in the mailbox before they could be processed.",
	})
	m.classifyFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "classification_failures_total",
		Help:      "Hand observations rejected or corrected during classification.",
	}, []string{"reason"})
	m.eventsEmitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_emitted_total",
		Help:      "Musical events emitted, by type.",
	}, []string{"type"})
	m.frameLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frame_processing_milliseconds",
		Help:      "Time spent classifying one frame and dispatching its events.",
		Buckets:   m.histogramBuckets,
	})
	m.sessionActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_active",
		Help:      "1 while a tracking session is running.",
	})
	m.sinkErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_errors_total",
		Help:      "Errors returned by rendering sinks.",
	})
}

// RecordFrame counts one processed frame and its latency.
func (m *Manager) RecordFrame(d time.Duration) {
	m.framesProcessed.Inc()
	m.frameLatency.Observe(float64(d) / float64(time.Millisecond))
}

// RecordDropped counts a frame that was overwritten before processing.
func (m *Manager) RecordDropped() { m.framesDropped.Inc() }

// RecordClassificationFailure counts a rejected or corrected observation.
func (m *Manager) RecordClassificationFailure(reason string) {
	m.classifyFailures.WithLabelValues(reason).Inc()
}

// RecordEvent counts one emitted event of the given type.
func (m *Manager) RecordEvent(eventType string) {
	m.eventsEmitted.WithLabelValues(eventType).Inc()
}

// RecordSinkError counts a failed delivery to a rendering sink.
func (m *Manager) RecordSinkError() { m.sinkErrors.Inc() }

// SetSessionActive flips the session gauge.
func (m *Manager) SetSessionActive(active bool) {
	if active {
		m.sessionActive.Set(1)
		return
	}
	m.sessionActive.Set(0)
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler serving this manager's metrics.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
