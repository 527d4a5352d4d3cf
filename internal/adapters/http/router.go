package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/scc-caselaw-rag/internal/config"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
	"github.com/kirillkom/scc-caselaw-rag/internal/observability/metrics"
)

const (
	serviceName = "caselaw-api"
	queryPath   = "/v1/rag/query"
)

type Router struct {
	cfg     config.Config
	engine  ports.QueryEngine
	health  ports.HealthChecker
	cases   ports.CaseReader
	metrics *metrics.HTTPServerMetrics
	mcp     http.Handler
}

type Option func(*Router)

// WithMetrics instruments requests and exposes GET /metrics.
func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

// WithMCP mounts a streamable MCP handler under /mcp.
func WithMCP(h http.Handler) Option {
	return func(rt *Router) { rt.mcp = h }
}

func NewRouter(
	cfg config.Config,
	engine ports.QueryEngine,
	health ports.HealthChecker,
	cases ports.CaseReader,
	opts ...Option,
) *Router {
	rt := &Router{
		cfg:    cfg,
		engine: engine,
		health: health,
		cases:  cases,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(serviceName, next)
		})
	}

	r.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	validator := mustRequestValidator()
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
		})
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIBackpressureMaxInFlight, rt.cfg.APIBackpressureWait)
		})
		r.Use(bodyLimitMiddleware)
		r.Use(validator.middleware)

		r.Post(queryPath, rt.queryRAG)
		r.Get("/v1/rag/health", rt.ragHealth)
		r.Get("/v1/cases/{case_number}", rt.getCase)
		if rt.mcp != nil {
			r.Handle("/mcp", rt.mcp)
			r.Handle("/mcp/*", rt.mcp)
		}
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ragHealth(w http.ResponseWriter, r *http.Request) {
	report := rt.health.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		TopK  *int   `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationFailure(w, r, "invalid json")
		return
	}

	topK := rt.cfg.RAGTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	result, err := rt.engine.Answer(r.Context(), req.Query, topK)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getCase(w http.ResponseWriter, r *http.Request) {
	var caseNumber string
	err := runtime.BindStyledParameterWithOptions("simple", "case_number", chi.URLParam(r, "case_number"), &caseNumber,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid case_number"})
		return
	}

	c, err := rt.cases.GetByNumber(r.Context(), caseNumber)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "case " + caseNumber + " not found"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
