// Package metrics exposes pipeline counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DeafMist/pdfcal/internal/models"
)

// Metrics records pipeline activity.
type Metrics struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	aborts   *prometheus.CounterVec
	items    *prometheus.CounterVec
	stageDur *prometheus.HistogramVec
	runDur   prometheus.Histogram
	inflight prometheus.Gauge
}

// New registers the pipeline collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pdfcal",
		Name:      "runs_total",
		Help:      "Pipeline runs by result",
	}, []string{"result"})
	m.aborts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pdfcal",
		Name:      "aborts_total",
		Help:      "Whole-document failures by stage",
	}, []string{"stage"})
	m.items = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pdfcal",
		Name:      "items_total",
		Help:      "Detected candidates by final status",
	}, []string{"status"})
	m.stageDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pdfcal",
		Name:      "stage_duration_seconds",
		Help:      "Time spent per pipeline stage",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"stage"})
	m.runDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pdfcal",
		Name:      "run_duration_seconds",
		Help:      "End-to-end pipeline duration",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	m.inflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pdfcal",
		Name:      "runs_inflight",
		Help:      "Pipeline runs currently executing",
	})

	m.registry.MustRegister(
		m.runs, m.aborts, m.items, m.stageDur, m.runDur, m.inflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RunStarted marks a run in flight and returns the func that marks it done.
func (m *Metrics) RunStarted() func() {
	m.inflight.Inc()
	return m.inflight.Dec
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage models.Stage, d time.Duration) {
	m.stageDur.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// ObserveAbort records a whole-document failure.
func (m *Metrics) ObserveAbort(stage models.Stage) {
	m.runs.WithLabelValues("aborted").Inc()
	m.aborts.WithLabelValues(string(stage)).Inc()
}

// ObserveOutcome records a completed run and the status of every item.
func (m *Metrics) ObserveOutcome(o *models.PipelineOutcome) {
	m.runs.WithLabelValues("completed").Inc()
	m.runDur.Observe(o.Duration.Seconds())
	for _, item := range o.Items {
		m.items.WithLabelValues(item.Status).Inc()
	}
}
