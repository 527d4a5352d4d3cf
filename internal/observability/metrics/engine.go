package metrics

import (
	"context"
	"log/slog"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
)

type instrumentedEngine struct {
	inner   ports.QueryEngine
	metrics *HTTPServerMetrics
	service string
	surface string
}

// InstrumentEngine records query metrics and a query_completed log line for
// every answer served through surface ("http", "mcp", "cli"). m may be nil.
func InstrumentEngine(inner ports.QueryEngine, m *HTTPServerMetrics, service, surface string) ports.QueryEngine {
	return &instrumentedEngine{inner: inner, metrics: m, service: service, surface: surface}
}

func (e *instrumentedEngine) Answer(ctx context.Context, query string, topK int) (domain.QueryResult, error) {
	result, err := e.inner.Answer(ctx, query, topK)
	invalid := domain.IsKind(err, domain.ErrValidation)
	if e.metrics != nil {
		e.metrics.RecordQuery(e.service, e.surface, result, invalid)
	}

	attrs := []any{
		"surface", e.surface,
		"status", QueryStatus(result, invalid),
		"top_k", topK,
		"context_cases", len(result.Context),
		"citations", len(result.Citations),
		"retrieval_time", result.RetrievalTime,
		"total_time", result.TotalTime,
	}
	switch {
	case err == nil:
		slog.InfoContext(ctx, "query_completed", attrs...)
	case invalid:
		slog.WarnContext(ctx, "query_completed", append(attrs, "error", err)...)
	default:
		slog.ErrorContext(ctx, "query_completed", append(attrs, "error", err)...)
	}
	return result, err
}
