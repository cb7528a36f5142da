// Package prometheus records pipeline metrics in a Prometheus registry.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure Metrics implements the interface.
var _ driven.Metrics = (*Metrics)(nil)

const namespace = "claimminer"

// durationBuckets spans fast lookups to slow downloads.
var durationBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry   *prometheus.Registry
	messages   *prometheus.CounterVec
	handleTime *prometheus.HistogramVec
	stages     *prometheus.CounterVec
	embeddings *prometheus.CounterVec
	searches   *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_handled_total",
			Help:      "Dispatched messages by topic and outcome.",
		}, []string{"topic", "outcome"}),
		handleTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_duration_seconds",
			Help:      "Time spent handling one message.",
			Buckets:   durationBuckets,
		}, []string{"topic"}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_outcomes_total",
			Help:      "Pipeline stage outcomes.",
		}, []string{"stage", "outcome"}),
		embeddings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_computed_total",
			Help:      "Vectors computed per model.",
		}, []string{"model"}),
		searches: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Query latency by ranking mode.",
			Buckets:   durationBuckets,
		}, []string{"mode"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messages, m.handleTime, m.stages, m.embeddings, m.searches,
	)
	return m
}

// MessageHandled records one dispatched message.
func (m *Metrics) MessageHandled(topic, outcome string, elapsed time.Duration) {
	m.messages.WithLabelValues(topic, outcome).Inc()
	m.handleTime.WithLabelValues(topic).Observe(elapsed.Seconds())
}

// StageOutcome records the outcome of a pipeline stage.
func (m *Metrics) StageOutcome(stage, outcome string) {
	m.stages.WithLabelValues(stage, outcome).Inc()
}

// EmbeddingsComputed records vectors produced by a model.
func (m *Metrics) EmbeddingsComputed(model string, n int) {
	m.embeddings.WithLabelValues(model).Add(float64(n))
}

// SearchServed records one query.
func (m *Metrics) SearchServed(mode string, elapsed time.Duration) {
	m.searches.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
