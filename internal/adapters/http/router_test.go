package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/scc-caselaw-rag/internal/config"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/observability/metrics"
)

type engineFake struct {
	mu     sync.Mutex
	calls  int
	topK   int
	query  string
	result domain.QueryResult
	err    error
}

func (f *engineFake) Answer(_ context.Context, query string, topK int) (domain.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.query = query
	f.topK = topK
	if strings.TrimSpace(query) == "" {
		result := domain.NewQueryResult()
		err := domain.NewError(domain.ErrValidation, "answer", "query must not be empty")
		result.Error = err.Error()
		return result, err
	}
	return f.result, f.err
}

type healthFake struct {
	report domain.HealthReport
}

func (f healthFake) Check(context.Context) domain.HealthReport {
	return f.report
}

type casesFake struct {
	cases map[string]domain.Case
}

func (f casesFake) GetByNumber(_ context.Context, caseNumber string) (*domain.Case, error) {
	c, ok := f.cases[caseNumber]
	if !ok {
		return nil, domain.NewError(domain.ErrCaseNotFound, "get case", "case_number="+caseNumber)
	}
	return &c, nil
}

func healthyReport() domain.HealthReport {
	return domain.HealthReport{Status: domain.HealthHealthy, Checks: map[string]string{"vector_index": "ok"}}
}

func newTestHandler(cfg config.Config, engine *engineFake, opts ...Option) http.Handler {
	if cfg.RAGTopK == 0 {
		cfg.RAGTopK = 5
	}
	cases := casesFake{cases: map[string]domain.Case{
		"36068": {CaseNumber: "36068", Title: "R. v. Jordan", CitationText: "2016 SCC 27"},
	}}
	return NewRouter(cfg, engine, healthFake{report: healthyReport()}, cases, opts...).Handler()
}

func postQuery(t *testing.T, handler http.Handler, body string) (*httptest.ResponseRecorder, domain.QueryResult) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	var result domain.QueryResult
	if err := json.NewDecoder(bytes.NewReader(res.Body.Bytes())).Decode(&result); err != nil {
		t.Fatalf("decode query result: %v (body=%s)", err, res.Body.String())
	}
	return res, result
}

func TestQueryReturnsResult(t *testing.T) {
	answer := domain.NewQueryResult()
	answer.Answer = "In R. v. Jordan the Court set presumptive ceilings."
	answer.Context = []domain.ContextEntry{{CaseNumber: "36068", Title: "R. v. Jordan"}}
	answer.Citations = []domain.Citation{{CaseNumber: "36068", Title: "R. v. Jordan", Score: 0.9}}
	engine := &engineFake{result: answer}

	res, result := postQuery(t, newTestHandler(config.Config{}, engine), `{"query":"delay","top_k":3}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if engine.topK != 3 || engine.query != "delay" {
		t.Fatalf("unexpected engine input %q/%d", engine.query, engine.topK)
	}
	if len(result.Citations) != 1 || result.Citations[0].CaseNumber != "36068" {
		t.Fatalf("unexpected citations %#v", result.Citations)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestQueryUsesDefaultTopK(t *testing.T) {
	engine := &engineFake{result: domain.NewQueryResult()}
	res, _ := postQuery(t, newTestHandler(config.Config{RAGTopK: 7}, engine), `{"query":"delay"}`)
	if res.Code != http.StatusOK || engine.topK != 7 {
		t.Fatalf("expected default top_k 7, got status=%d top_k=%d", res.Code, engine.topK)
	}
}

func TestQueryEmptyMapsTo400WithResultBody(t *testing.T) {
	engine := &engineFake{}
	res, result := postQuery(t, newTestHandler(config.Config{}, engine), `{"query":"   "}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if result.Error == "" || result.Citations == nil || result.Context == nil {
		t.Fatalf("expected QueryResult-shaped error body, got %#v", result)
	}
}

func TestQueryRejectsMalformedBodyWithoutCallingEngine(t *testing.T) {
	for _, body := range []string{`{"query":`, `{"query":"delay","top_k":"five"}`, `{"top_k":3}`} {
		engine := &engineFake{}
		res, result := postQuery(t, newTestHandler(config.Config{}, engine), body)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, res.Code)
		}
		if result.Error == "" {
			t.Fatalf("%s: expected error message", body)
		}
		if engine.calls != 0 {
			t.Fatalf("%s: engine must not be called", body)
		}
	}
}

func TestQueryStageFailureMapsTo500(t *testing.T) {
	failed := domain.NewQueryResult()
	failed.Error = "retrieval error: vector index is empty"
	engine := &engineFake{result: failed, err: domain.ErrEmptyIndex}

	res, result := postQuery(t, newTestHandler(config.Config{}, engine), `{"query":"delay"}`)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if result.Error != failed.Error {
		t.Fatalf("expected engine error in body, got %q", result.Error)
	}
}

func TestRAGHealthReturns503WhenUnhealthy(t *testing.T) {
	report := domain.HealthReport{Status: domain.HealthUnhealthy, Checks: map[string]string{"vector_index": "no active snapshot"}}
	handler := NewRouter(config.Config{}, &engineFake{}, healthFake{report: report}, casesFake{}).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/rag/health", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	var got domain.HealthReport
	if err := json.Unmarshal(res.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if got.Checks["vector_index"] == "" {
		t.Fatalf("expected vector_index check, got %#v", got)
	}
}

func TestGetCase(t *testing.T) {
	handler := newTestHandler(config.Config{}, &engineFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/cases/36068", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "R. v. Jordan") {
		t.Fatalf("expected case body, got %d %s", res.Code, res.Body.String())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/cases/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	m := metrics.NewHTTPServerMetrics(serviceName)
	handler := newTestHandler(config.Config{}, &engineFake{}, WithMetrics(m))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "caselaw_http_requests_total") {
		t.Fatalf("expected metrics output, got %d", res.Code)
	}
}

func TestMCPHandlerIsMounted(t *testing.T) {
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	handler := newTestHandler(config.Config{}, &engineFake{}, WithMCP(mcpHandler))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{}")))
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected mcp handler, got %d", res.Code)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: domain.WrapError(domain.ErrValidation, "answer", errors.New("bad")), want: http.StatusBadRequest},
		{err: domain.ErrCaseNotFound, want: http.StatusNotFound},
		{err: domain.WrapError(domain.ErrGeneration, "generate", domain.ErrTemporary), want: http.StatusInternalServerError},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestOpenAPIDocumentIsValid(t *testing.T) {
	doc, err := OpenAPIDocument()
	if err != nil {
		t.Fatalf("OpenAPIDocument() error = %v", err)
	}
	if doc.Paths.Find("/v1/rag/query") == nil {
		t.Fatalf("expected query path in document")
	}
}
