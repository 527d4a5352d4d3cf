package usecase

import (
	"context"
	"strings"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
)

type CaseService struct {
	catalog ports.CaseCatalog
}

// NewCaseService returns a reader over the catalog. A nil catalog reports every case as not found.
func NewCaseService(catalog ports.CaseCatalog) *CaseService {
	return &CaseService{catalog: catalog}
}

func (s *CaseService) GetByNumber(ctx context.Context, caseNumber string) (*domain.Case, error) {
	caseNumber = strings.TrimSpace(caseNumber)
	if caseNumber == "" {
		return nil, domain.NewError(domain.ErrValidation, "get case", "case_number is required")
	}
	if s.catalog == nil {
		return nil, domain.NewError(domain.ErrCaseNotFound, "get case", caseNumber)
	}
	return s.catalog.GetByNumber(ctx, caseNumber)
}
