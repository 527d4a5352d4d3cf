package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

func TestClassifyPublishError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "canceled", err: context.Canceled, retryable: false, record: false},
		{name: "no servers", err: fmt.Errorf("nats publish: %w", nats.ErrNoServers), retryable: true, record: true},
		{name: "timeout", err: nats.ErrTimeout, retryable: true, record: true},
		{name: "reconnecting", err: nats.ErrConnectionReconnecting, retryable: true, record: true},
		{name: "bad subject", err: nats.ErrBadSubject, retryable: false, record: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyPublishError(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("classifyPublishError(%v) = %+v", tc.err, got)
			}
		})
	}
}

func TestPublishError(t *testing.T) {
	if err := publishError("20261018T120000Z", nats.ErrConnectionClosed); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	permanent := errors.New("boom")
	if err := publishError("v1", permanent); err != permanent {
		t.Fatalf("expected permanent error to pass through, got %v", err)
	}
	if err := publishError("v1", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
