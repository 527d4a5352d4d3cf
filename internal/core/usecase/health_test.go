package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

func TestHealthHealthy(t *testing.T) {
	active := NewActiveIndex()
	active.swap(domain.SnapshotManifest{Version: "v3"}, &indexFake{count: 12})
	report := NewHealthService(active, &embedderFake{}, &pingingGenerator{}).Check(context.Background())

	if !report.Healthy() || report.Snapshot != "v3" {
		t.Fatalf("unexpected report %#v", report)
	}
	for _, name := range []string{"vector_index", "embedder", "generator"} {
		if report.Checks[name] != "ok" {
			t.Fatalf("check %s = %q", name, report.Checks[name])
		}
	}
}

func TestHealthUnhealthyOnGeneratorPingAndEmptyIndex(t *testing.T) {
	active := NewActiveIndex()
	active.swap(domain.SnapshotManifest{Version: "v3"}, &indexFake{count: 0})
	report := NewHealthService(active, &embedderFake{}, &pingingGenerator{pingErr: errors.New("401 unauthorized")}).Check(context.Background())

	if report.Healthy() {
		t.Fatalf("expected unhealthy report")
	}
	if report.Checks["generator"] != "401 unauthorized" || report.Checks["vector_index"] == "ok" {
		t.Fatalf("unexpected checks %#v", report.Checks)
	}
}

func TestHealthWithoutSnapshot(t *testing.T) {
	report := NewHealthService(NewActiveIndex(), &embedderFake{}, &generatorFake{}).Check(context.Background())
	if report.Healthy() || report.Checks["vector_index"] == "ok" {
		t.Fatalf("unexpected report %#v", report)
	}
}
