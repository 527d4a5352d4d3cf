package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/llm"
)

func TestGeneratorUsesChatCompletions(t *testing.T) {
	var payload struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"R v Grant applies."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "test", BaseURL: server.URL + "/v1", Temperature: 0.2, MaxTokens: 1000})
	answer, err := NewGenerator(client, "gpt-4o").Generate(context.Background(), "What test applies?", "[Context 1] Case: R v Grant")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "R v Grant applies." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if payload.Model != "gpt-4o" || len(payload.Messages) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Messages[0].Role != "system" || !strings.Contains(payload.Messages[1].Content, "What test applies?") {
		t.Fatalf("unexpected messages %+v", payload.Messages)
	}
}

func TestGeneratorMapsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "test", BaseURL: server.URL + "/v1"})
	_, err := NewGenerator(client, "gpt-4o").Generate(context.Background(), "q", "c")
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected status error, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || !llm.Classify(err).Retryable {
		t.Fatalf("unexpected mapping %+v", statusErr)
	}
}

func TestEmbedderOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":1,"embedding":[0,1]},{"object":"embedding","index":0,"embedding":[1,0]}],"model":"text-embedding-3-large"}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "test", BaseURL: server.URL + "/v1"})
	embedder := NewEmbedder(client, "text-embedding-3-large")
	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("vectors not ordered by index: %v", vectors)
	}
	if embedder.Identity() != "openai/text-embedding-3-large" {
		t.Fatalf("unexpected identity %q", embedder.Identity())
	}
}
