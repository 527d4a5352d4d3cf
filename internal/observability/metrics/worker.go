package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

// IndexerMetrics tracks index builds. It satisfies usecase.BuildObserver.
type IndexerMetrics struct {
	registry *prometheus.Registry
	service  string

	caseTotal     *prometheus.CounterVec
	caseDuration  *prometheus.HistogramVec
	caseInFlight  prometheus.Gauge
	buildTotal    *prometheus.CounterVec
	buildDuration prometheus.Histogram
	buildChunks   prometheus.Gauge
}

func NewIndexerMetrics(service string) *IndexerMetrics {
	registry := prometheus.NewRegistry()

	caseTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "case_process_total",
			Help:      "Total processed cases by status.",
		},
		[]string{"service", "status"},
	)
	caseDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "case_process_duration_seconds",
			Help:      "Case extraction and chunking duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	caseInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "case_process_in_flight",
			Help:      "Number of cases being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	buildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "builds_total",
			Help:      "Snapshot builds by status.",
		},
		[]string{"service", "status"},
	)
	buildDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "indexer",
			Name:        "build_duration_seconds",
			Help:        "Snapshot build duration in seconds.",
			Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	buildChunks := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "indexer",
			Name:        "last_build_chunks",
			Help:        "Chunks written by the last successful build.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(caseTotal, caseDuration, caseInFlight, buildTotal, buildDuration, buildChunks)

	return &IndexerMetrics{
		registry:      registry,
		service:       service,
		caseTotal:     caseTotal,
		caseDuration:  caseDuration,
		caseInFlight:  caseInFlight,
		buildTotal:    buildTotal,
		buildDuration: buildDuration,
		buildChunks:   buildChunks,
	}
}

func (m *IndexerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *IndexerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *IndexerMetrics) StartCase() {
	m.caseInFlight.Inc()
}

func (m *IndexerMetrics) FinishCase(duration time.Duration, err error) {
	m.caseInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.caseTotal.WithLabelValues(m.service, status).Inc()
	m.caseDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *IndexerMetrics) RecordBuild(manifest domain.SnapshotManifest, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.buildTotal.WithLabelValues(m.service, status).Inc()
	m.buildDuration.Observe(duration.Seconds())
	if err == nil {
		m.buildChunks.Set(float64(manifest.ChunkCount))
	}
}
