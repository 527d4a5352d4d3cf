package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/llm"
)

const providerName = "ollama"

type Options struct {
	Temperature float64
	MaxTokens   int
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Ping checks that the server answers /api/tags.
func (c *Client) Ping(ctx context.Context) error {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	return c.getJSON(ctx, "/api/tags", &response, "tags")
}

type Embedder struct {
	client *Client
	model  string
}

func NewEmbedder(client *Client, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

func (e *Embedder) Identity() string {
	return providerName + "/" + e.model
}

func (e *Embedder) Ping(ctx context.Context) error {
	return e.client.Ping(ctx)
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.model,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, llm.Malformed(providerName, "embed", fmt.Sprintf("got %d embeddings for %d inputs", len(response.Embeddings), len(texts)))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) == 0 {
		return nil, llm.Malformed(providerName, "embed", "empty embedding")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
	model  string
	opts   Options
}

func NewGenerator(client *Client, model string, opts Options) *Generator {
	return &Generator{client: client, model: model, opts: opts}
}

func (g *Generator) Ping(ctx context.Context) error {
	return g.client.Ping(ctx)
}

func (g *Generator) Generate(ctx context.Context, question, promptContext string) (string, error) {
	reqBody := map[string]any{
		"model":  g.model,
		"system": llm.SystemPrompt,
		"prompt": llm.UserPrompt(question, promptContext),
		"stream": false,
		"options": map[string]any{
			"temperature": g.opts.Temperature,
			"num_predict": g.opts.MaxTokens,
		},
	}

	var response struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := g.client.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	answer := strings.TrimSpace(response.Response)
	if answer == "" {
		return "", llm.Malformed(providerName, "generate", "empty response")
	}
	return answer, nil
}
