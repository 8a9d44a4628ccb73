// Package metrics implements the analysis metrics collector on Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements ports.MetricsCollector, exposing resolution,
// query, and batch metrics for scraping.
type PrometheusMetrics struct {
	resolutionTotal    *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
	queryTotal         *prometheus.CounterVec
	queryDuration      *prometheus.HistogramVec
	batchTotal         *prometheus.CounterVec
	batchQueries       prometheus.Histogram
	batchDuration      *prometheus.HistogramVec
}

// New creates a PrometheusMetrics registered with reg. A nil registerer
// uses the default global registry.
func New(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		resolutionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citescope_resolutions_total",
				Help: "Citation URL resolution attempts by outcome.",
			},
			[]string{"outcome"},
		),
		resolutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "citescope_resolution_duration_seconds",
				Help:    "Citation URL resolution latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		queryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citescope_queries_total",
				Help: "Processed analysis queries by outcome.",
			},
			[]string{"outcome"},
		),
		queryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "citescope_query_duration_seconds",
				Help:    "Per-query processing latency including grounding and resolution.",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),
		batchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citescope_batches_total",
				Help: "Finished analysis batches by terminal status.",
			},
			[]string{"status"},
		),
		batchQueries: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "citescope_batch_queries",
				Help:    "Number of queries per batch.",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 50},
			},
		),
		batchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "citescope_batch_duration_seconds",
				Help:    "Total batch processing time.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
	}
}

// RecordResolution records one citation-resolution attempt.
func (m *PrometheusMetrics) RecordResolution(outcome string, duration time.Duration) {
	m.resolutionTotal.WithLabelValues(outcome).Inc()
	m.resolutionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordQuery records one processed query.
func (m *PrometheusMetrics) RecordQuery(outcome string, duration time.Duration) {
	m.queryTotal.WithLabelValues(outcome).Inc()
	m.queryDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordBatch records one finished batch run.
func (m *PrometheusMetrics) RecordBatch(status string, queries int, duration time.Duration) {
	m.batchTotal.WithLabelValues(status).Inc()
	m.batchQueries.Observe(float64(queries))
	m.batchDuration.WithLabelValues(status).Observe(duration.Seconds())
}
