package usecase

import (
	"context"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
)

const checkOK = "ok"

type HealthService struct {
	active    *ActiveIndex
	embedder  ports.Embedder
	generator ports.Generator
}

func NewHealthService(active *ActiveIndex, embedder ports.Embedder, generator ports.Generator) *HealthService {
	return &HealthService{active: active, embedder: embedder, generator: generator}
}

func (h *HealthService) Check(ctx context.Context) domain.HealthReport {
	report := domain.HealthReport{
		Status: domain.HealthHealthy,
		Checks: map[string]string{},
	}
	fail := func(name string, err error) {
		report.Status = domain.HealthUnhealthy
		report.Checks[name] = err.Error()
	}

	if manifest, ok := h.active.Manifest(); ok {
		report.Snapshot = manifest.Version
	}
	if count, err := h.active.Count(ctx); err != nil {
		fail("vector_index", err)
	} else if count == 0 {
		fail("vector_index", domain.ErrEmptyIndex)
	} else {
		report.Checks["vector_index"] = checkOK
	}

	for name, target := range map[string]any{"embedder": h.embedder, "generator": h.generator} {
		pinger, ok := target.(ports.Pinger)
		if !ok {
			report.Checks[name] = checkOK
			continue
		}
		if err := pinger.Ping(ctx); err != nil {
			fail(name, err)
			continue
		}
		report.Checks[name] = checkOK
	}
	return report
}
