package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

const namespace = "caselaw"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal        *prometheus.CounterVec
	queryRetrieval    *prometheus.HistogramVec
	queryDuration     *prometheus.HistogramVec
	queryContext      *prometheus.HistogramVec
	queryCitations    *prometheus.HistogramVec
	upstreamTotal     *prometheus.CounterVec
	upstreamDuration  *prometheus.HistogramVec
	snapshotInfo      *prometheus.GaugeVec
	snapshotChunks    prometheus.Gauge
	snapshotActivated prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "total",
			Help:      "Total answered queries by outcome.",
		},
		[]string{"service", "surface", "status"},
	)
	queryRetrieval := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "retrieval_seconds",
			Help:      "Time spent embedding the query and searching the index.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"service", "surface"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"service", "surface"},
	)
	queryContext := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "context_cases",
			Help:      "Distinct cases in the assembled context per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 50},
		},
		[]string{"service", "surface"},
	)
	queryCitations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "citations",
			Help:      "Resolved citations per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "surface"},
	)
	upstreamTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Embedder and generator call attempts by outcome.",
		},
		[]string{"service", "provider", "operation", "outcome"},
	)
	upstreamDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Embedder and generator call attempt duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "provider", "operation"},
	)
	snapshotInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "info",
			Help:      "Active snapshot; value is always 1.",
		},
		[]string{"service", "version", "backend", "embed_identity"},
	)
	snapshotChunks := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "snapshot",
			Name:        "chunks",
			Help:        "Chunks in the active snapshot.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	snapshotActivated := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "snapshot",
			Name:        "activated_timestamp_seconds",
			Help:        "Unix time the active snapshot was swapped in.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryRetrieval,
		queryDuration,
		queryContext,
		queryCitations,
		upstreamTotal,
		upstreamDuration,
		snapshotInfo,
		snapshotChunks,
		snapshotActivated,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		queryTotal:        queryTotal,
		queryRetrieval:    queryRetrieval,
		queryDuration:     queryDuration,
		queryContext:      queryContext,
		queryCitations:    queryCitations,
		upstreamTotal:     upstreamTotal,
		upstreamDuration:  upstreamDuration,
		snapshotInfo:      snapshotInfo,
		snapshotChunks:    snapshotChunks,
		snapshotActivated: snapshotActivated,
	}
}

func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/cases/"):
		return "/v1/cases/{case_number}"
	case strings.HasPrefix(path, "/mcp"):
		return "/mcp"
	default:
		return path
	}
}

// RecordQuery records one finished query. Status is "ok", "no_context",
// "invalid" or "error".
func (m *HTTPServerMetrics) RecordQuery(service, surface string, result domain.QueryResult, invalid bool) {
	status := QueryStatus(result, invalid)
	m.queryTotal.WithLabelValues(service, surface, status).Inc()
	if invalid {
		return
	}
	m.queryRetrieval.WithLabelValues(service, surface).Observe(result.RetrievalTime)
	m.queryDuration.WithLabelValues(service, surface).Observe(result.TotalTime)
	m.queryContext.WithLabelValues(service, surface).Observe(float64(len(result.Context)))
	m.queryCitations.WithLabelValues(service, surface).Observe(float64(len(result.Citations)))
}

func QueryStatus(result domain.QueryResult, invalid bool) string {
	switch {
	case invalid:
		return "invalid"
	case result.Error != "":
		return "error"
	case len(result.Context) == 0:
		return "no_context"
	default:
		return "ok"
	}
}

// UpstreamObserver returns a callback compatible with the llm guards.
func (m *HTTPServerMetrics) UpstreamObserver(service string) func(provider, operation, outcome string, d time.Duration) {
	return func(provider, operation, outcome string, d time.Duration) {
		m.upstreamTotal.WithLabelValues(service, provider, operation, outcome).Inc()
		m.upstreamDuration.WithLabelValues(service, provider, operation).Observe(d.Seconds())
	}
}

func (m *HTTPServerMetrics) RecordSnapshot(service string, manifest domain.SnapshotManifest) {
	m.snapshotInfo.Reset()
	m.snapshotInfo.WithLabelValues(service, manifest.Version, manifest.Backend, manifest.EmbedIdentity).Set(1)
	m.snapshotChunks.Set(float64(manifest.ChunkCount))
	m.snapshotActivated.SetToCurrentTime()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
