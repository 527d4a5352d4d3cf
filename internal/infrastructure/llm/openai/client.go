package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/llm"
)

const providerName = "openai"

type Config struct {
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// Client talks to the OpenAI API or any server compatible with it.
type Client struct {
	api *goopenai.Client
	cfg Config
}

func New(cfg Config) *Client {
	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		apiCfg.BaseURL = strings.TrimRight(base, "/")
	}
	return &Client{api: goopenai.NewClientWithConfig(apiCfg), cfg: cfg}
}

func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return mapError("models", err)
	}
	return nil
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
	resp, err := e.client.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, mapError("embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, llm.Malformed(providerName, "embed", fmt.Sprintf("got %d embeddings for %d inputs", len(resp.Data), len(texts)))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, item := range data {
		out[i] = item.Embedding
	}
	return out, nil
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
}

func NewGenerator(client *Client, model string) *Generator {
	return &Generator{client: client, model: model}
}

func (g *Generator) Ping(ctx context.Context) error {
	return g.client.Ping(ctx)
}

func (g *Generator) Generate(ctx context.Context, question, promptContext string) (string, error) {
	resp, err := g.client.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: g.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: llm.UserPrompt(question, promptContext)},
		},
		Temperature: float32(g.client.cfg.Temperature),
		MaxTokens:   g.client.cfg.MaxTokens,
	})
	if err != nil {
		return "", mapError("generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", llm.Malformed(providerName, "generate", "no choices")
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", llm.Malformed(providerName, "generate", "empty message")
	}
	return answer, nil
}

func mapError(operation string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &llm.StatusError{
			Provider:   providerName,
			Operation:  operation,
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &llm.StatusError{
			Provider:   providerName,
			Operation:  operation,
			StatusCode: reqErr.HTTPStatusCode,
			Body:       body,
		}
	}
	return fmt.Errorf("openai %s request: %w", operation, err)
}
