package ollama

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

func TestGeneratorSendsSystemAndContextPrompt(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  R v Grant governs.  ","done":true}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL), "llama3", Options{Temperature: 0.2, MaxTokens: 1000})
	answer, err := gen.Generate(context.Background(), "question?", "[Context 1] Case: R v Grant")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "R v Grant governs." {
		t.Fatalf("unexpected answer %q", answer)
	}
	prompt, _ := payload["prompt"].(string)
	if !strings.Contains(prompt, "question?") || !strings.Contains(prompt, "R v Grant") {
		t.Fatalf("unexpected prompt: %s", prompt)
	}
	if system, _ := payload["system"].(string); system != llm.SystemPrompt {
		t.Fatalf("expected system prompt, got %q", system)
	}
	options, _ := payload["options"].(map[string]any)
	if options["num_predict"] != float64(1000) {
		t.Fatalf("expected num_predict=1000, got %v", options["num_predict"])
	}
}

func TestEmbedReturnsStatusErrorWithBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL), "nomic-embed-text")
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected status error, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("unexpected status error: %v", err)
	}
	if !llm.Classify(err).Retryable {
		t.Fatalf("502 should be retryable")
	}
}

func TestEmbedRejectsShortResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL), "nomic-embed-text")
	_, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, llm.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
	if embedder.Identity() != "ollama/nomic-embed-text" {
		t.Fatalf("unexpected identity %q", embedder.Identity())
	}
}

func TestPingUsesTags(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	if err := New(server.URL).Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if path != "/api/tags" {
		t.Fatalf("expected /api/tags, got %s", path)
	}
}
