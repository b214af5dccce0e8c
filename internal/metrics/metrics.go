// Package metrics provides Prometheus metrics for the transcription pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livescribe"

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	// Connection metrics
	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge

	// Ingest metrics
	FramesReceived  prometheus.Counter
	FramesMalformed prometheus.Counter
	FramesDropped   prometheus.Counter
	AudioBytes      prometheus.Counter
	QueueDepth      prometheus.Histogram

	// Transcript metrics
	PartialsEmitted    prometheus.Counter
	PartialsSuppressed prometheus.Counter
	FinalsCommitted    prometheus.Counter
	FinalsDiscarded    *prometheus.CounterVec
	ForcedFinalized    prometheus.Counter
	LanguageSwitches   *prometheus.CounterVec
	ProcessingLatency  prometheus.Histogram
	Confidence         prometheus.Histogram

	// Recognizer metrics
	RecognizerPanics prometheus.Counter
	EngineLatency    *prometheus.HistogramVec

	// Export metrics
	Exports *prometheus.CounterVec

	// Sink metrics
	SinkPublish *prometheus.CounterVec

	// Outbound metrics
	OutboundDropped prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all collectors with the default registry.
// Call it once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of websocket connections accepted",
		}),
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently open websocket connections",
		}),

		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total binary audio frames received",
		}),
		FramesMalformed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_malformed_total",
			Help:      "Total binary messages rejected for a short header",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_dropped_total",
			Help:      "Total audio frames dropped because the queue was full",
		}),
		AudioBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total PCM bytes received",
		}),
		QueueDepth: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_queue_depth",
			Help:      "Audio queue depth observed at enqueue time",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 30, 50, 100},
		}),

		PartialsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partials_emitted_total",
			Help:      "Total partial transcripts sent to clients",
		}),
		PartialsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partials_suppressed_total",
			Help:      "Total partial transcripts suppressed as near duplicates",
		}),
		FinalsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finals_committed_total",
			Help:      "Total final transcripts committed to history",
		}),
		FinalsDiscarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finals_discarded_total",
			Help:      "Total final transcripts discarded",
		}, []string{"reason"}),
		ForcedFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_finalizations_total",
			Help:      "Total finals forced by the silence monitor",
		}),
		LanguageSwitches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "language_switches_total",
			Help:      "Total language switches",
		}, []string{"to", "source"}),
		ProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partial_processing_seconds",
			Help:      "Time spent handling one partial transcript",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		Confidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "final_confidence",
			Help:      "Confidence of committed final transcripts",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),

		RecognizerPanics: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_callback_panics_total",
			Help:      "Total panics recovered at the recognizer callback boundary",
		}),
		EngineLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_latency_seconds",
			Help:      "Speech engine processing latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"engine", "type"}),

		Exports: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Total history exports by format and result",
		}, []string{"format", "result"}),

		SinkPublish: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_publish_total",
			Help:      "Total transcript events published to external sinks",
		}, []string{"sink", "result"}),

		OutboundDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_dropped_total",
			Help:      "Total outbound websocket messages dropped because the client was too slow",
		}),
	}
}

// RecordExport counts one export attempt.
func (m *Metrics) RecordExport(format string, ok bool) {
	m.Exports.WithLabelValues(format, result(ok)).Inc()
}

// RecordPublish counts one sink publish attempt.
func (m *Metrics) RecordPublish(sink string, err error) {
	m.SinkPublish.WithLabelValues(sink, result(err == nil)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
