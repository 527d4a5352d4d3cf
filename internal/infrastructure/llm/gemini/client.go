package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/llm"
)

const providerName = "gemini"

type Config struct {
	APIKey      string
	Endpoint    string
	Temperature float64
	MaxTokens   int
}

type Client struct {
	api *genai.Client
	cfg Config
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	api, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{api: api, cfg: cfg}, nil
}

func (c *Client) Close() error {
	return c.api.Close()
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
	if _, err := e.client.api.EmbeddingModel(e.model).Info(ctx); err != nil {
		return mapError("model_info", err)
	}
	return nil
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := e.client.api.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, mapError("embed", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, llm.Malformed(providerName, "embed", "embedding count does not match input")
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, llm.Malformed(providerName, "embed", fmt.Sprintf("empty embedding at %d", i))
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
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

func (g *Generator) generativeModel() *genai.GenerativeModel {
	model := g.client.api.GenerativeModel(g.model)
	model.SetTemperature(float32(g.client.cfg.Temperature))
	if g.client.cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(g.client.cfg.MaxTokens))
	}
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(llm.SystemPrompt)}}
	return model
}

func (g *Generator) Ping(ctx context.Context) error {
	if _, err := g.client.api.GenerativeModel(g.model).Info(ctx); err != nil {
		return mapError("model_info", err)
	}
	return nil
}

func (g *Generator) Generate(ctx context.Context, question, promptContext string) (string, error) {
	resp, err := g.generativeModel().GenerateContent(ctx, genai.Text(llm.UserPrompt(question, promptContext)))
	if err != nil {
		return "", mapError("generate", err)
	}
	answer := responseText(resp)
	if answer == "" {
		return "", llm.Malformed(providerName, "generate", "no text candidates")
	}
	return answer, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		if out := strings.TrimSpace(sb.String()); out != "" {
			return out
		}
	}
	return ""
}

func mapError(operation string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return &llm.StatusError{
			Provider:   providerName,
			Operation:  operation,
			StatusCode: apiErr.Code,
			Body:       apiErr.Message,
		}
	}
	return fmt.Errorf("gemini %s request: %w", operation, err)
}
