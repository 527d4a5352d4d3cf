package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/llm"
)

const providerName = "anthropic"

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Generator answers through the Messages API. Anthropic has no embeddings endpoint.
type Generator struct {
	api sdk.Client
	cfg Config
}

func NewGenerator(cfg Config) *Generator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are owned by the resilience executor.
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = llm.DefaultMaxTokens
	}
	return &Generator{api: sdk.NewClient(opts...), cfg: cfg}
}

func (g *Generator) Ping(ctx context.Context) error {
	if _, err := g.api.Models.List(ctx, sdk.ModelListParams{}); err != nil {
		return mapError("models", err)
	}
	return nil
}

func (g *Generator) Generate(ctx context.Context, question, promptContext string) (string, error) {
	msg, err := g.api.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(g.cfg.Model),
		MaxTokens: int64(g.cfg.MaxTokens),
		System: []sdk.TextBlockParam{
			{Text: llm.SystemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(llm.UserPrompt(question, promptContext))),
		},
		Temperature: sdk.Float(g.cfg.Temperature),
	})
	if err != nil {
		return "", mapError("generate", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", llm.Malformed(providerName, "generate", "no text content")
	}
	return answer, nil
}

func mapError(operation string, err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		return &llm.StatusError{
			Provider:   providerName,
			Operation:  operation,
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Error(),
		}
	}
	return fmt.Errorf("anthropic %s request: %w", operation, err)
}
