package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run results.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
)

// Metrics holds the daemon's prometheus collectors. All methods are safe on a
// nil receiver so callers can run with metrics disabled.
type Metrics struct {
	registry *prometheus.Registry

	FramesReceived   prometheus.Counter
	FramesDropped    prometheus.Counter
	QueueLength      prometheus.Gauge
	IngestFPS        prometheus.Gauge
	ViewersConnected prometheus.Gauge
	RunsTotal        *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	FramesAssembled  prometheus.Counter
	RecordingBytes   prometheus.Histogram
}

// New registers camrec collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "camrec_frames_received_total",
			Help: "Frames accepted from camera clients",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "camrec_frames_dropped_total",
			Help: "Frames evicted from the buffer on overflow",
		}),
		QueueLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "camrec_buffer_frames",
			Help: "Frames currently buffered",
		}),
		IngestFPS: factory.NewGauge(prometheus.GaugeOpts{
			Name: "camrec_ingest_fps",
			Help: "Measured ingestion rate over the last window",
		}),
		ViewersConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "camrec_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camrec_assembly_runs_total",
			Help: "Assembly runs by result",
		}, []string{"result"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camrec_assembly_stage_duration_seconds",
			Help:    "Duration of assembly stages",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		FramesAssembled: factory.NewCounter(prometheus.CounterOpts{
			Name: "camrec_frames_assembled_total",
			Help: "Frames encoded into committed recordings",
		}),
		RecordingBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "camrec_recording_bytes",
			Help:    "Size of committed recordings",
			Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
		}),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) FrameReceived(queueLen int) {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
	m.QueueLength.Set(float64(queueLen))
}

func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

func (m *Metrics) SetQueueLength(n int) {
	if m == nil {
		return
	}
	m.QueueLength.Set(float64(n))
}

func (m *Metrics) SetIngestFPS(fps float64) {
	if m == nil {
		return
	}
	m.IngestFPS.Set(fps)
}

func (m *Metrics) SetViewers(n int) {
	if m == nil {
		return
	}
	m.ViewersConnected.Set(float64(n))
}

func (m *Metrics) RunFinished(result string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) RecordingCommitted(frames int, bytes int64) {
	if m == nil {
		return
	}
	m.FramesAssembled.Add(float64(frames))
	m.RecordingBytes.Observe(float64(bytes))
}
