package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

func TestCaseServiceGetByNumber(t *testing.T) {
	svc := NewCaseService(&catalogFake{records: map[string]domain.Case{"36068": {CaseNumber: "36068", Title: "R. v. Jordan"}}})

	got, err := svc.GetByNumber(context.Background(), " 36068 ")
	if err != nil || got.Title != "R. v. Jordan" {
		t.Fatalf("GetByNumber() = %#v, %v", got, err)
	}
	if _, err := svc.GetByNumber(context.Background(), "1"); !domain.IsKind(err, domain.ErrCaseNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.GetByNumber(context.Background(), ""); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := NewCaseService(nil).GetByNumber(context.Background(), "36068"); !domain.IsKind(err, domain.ErrCaseNotFound) {
		t.Fatalf("expected not found without catalog, got %v", err)
	}
}
