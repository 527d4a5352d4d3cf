package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/scc-caselaw-rag/internal/config"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/llm"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/llm/anthropic"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/llm/openai"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/resilience"
)

const (
	providerOllama    = "ollama"
	providerOpenAI    = "openai"
	providerAnthropic = "anthropic"
	providerGemini    = "gemini"
)

// providers lazily builds one client per provider so the embedder and
// generator share connections when they use the same one.
type providers struct {
	cfg    config.Config
	ollama *ollama.Client
	openai *openai.Client
	gemini *gemini.Client
}

func (p *providers) ollamaClient() *ollama.Client {
	if p.ollama == nil {
		p.ollama = ollama.New(p.cfg.OllamaURL)
	}
	return p.ollama
}

func (p *providers) openaiClient() *openai.Client {
	if p.openai == nil {
		p.openai = openai.New(openai.Config{
			APIKey:      p.cfg.OpenAIAPIKey,
			BaseURL:     p.cfg.OpenAIBaseURL,
			Temperature: p.cfg.GenTemperature,
			MaxTokens:   p.cfg.GenMaxTokens,
		})
	}
	return p.openai
}

func (p *providers) geminiClient(ctx context.Context) (*gemini.Client, error) {
	if p.gemini == nil {
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:      p.cfg.GeminiAPIKey,
			Endpoint:    p.cfg.GeminiEndpoint,
			Temperature: p.cfg.GenTemperature,
			MaxTokens:   p.cfg.GenMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		p.gemini = client
	}
	return p.gemini, nil
}

func (p *providers) close() {
	if p.gemini != nil {
		_ = p.gemini.Close()
	}
}

func (p *providers) embedder(ctx context.Context) (ports.Embedder, error) {
	switch p.cfg.EmbedProvider {
	case providerOllama:
		return ollama.NewEmbedder(p.ollamaClient(), p.cfg.EmbedModel), nil
	case providerOpenAI:
		return openai.NewEmbedder(p.openaiClient(), p.cfg.EmbedModel), nil
	case providerGemini:
		client, err := p.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		return gemini.NewEmbedder(client, p.cfg.EmbedModel), nil
	case providerAnthropic:
		return nil, fmt.Errorf("embed provider %q has no embeddings endpoint", p.cfg.EmbedProvider)
	default:
		return nil, fmt.Errorf("unknown embed provider %q", p.cfg.EmbedProvider)
	}
}

func (p *providers) generator(ctx context.Context) (ports.Generator, error) {
	switch p.cfg.GenProvider {
	case providerOllama:
		return ollama.NewGenerator(p.ollamaClient(), p.cfg.GenModel, ollama.Options{
			Temperature: p.cfg.GenTemperature,
			MaxTokens:   p.cfg.GenMaxTokens,
		}), nil
	case providerOpenAI:
		return openai.NewGenerator(p.openaiClient(), p.cfg.GenModel), nil
	case providerAnthropic:
		return anthropic.NewGenerator(anthropic.Config{
			APIKey:      p.cfg.AnthropicAPIKey,
			BaseURL:     p.cfg.AnthropicBaseURL,
			Model:       p.cfg.GenModel,
			Temperature: p.cfg.GenTemperature,
			MaxTokens:   p.cfg.GenMaxTokens,
		}), nil
	case providerGemini:
		client, err := p.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		return gemini.NewGenerator(client, p.cfg.GenModel), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", p.cfg.GenProvider)
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     cfg.RetryInitialBackoff,
		RetryMaxBackoff:         cfg.RetryMaxBackoff,
		RetryMultiplier:         cfg.RetryMultiplier,
		RetryJitter:             cfg.RetryJitter,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
	}
}

// guard wraps the raw provider clients with concurrency caps, per-attempt
// timeouts, retry and circuit breaking.
func guard(cfg config.Config, embedder ports.Embedder, generator ports.Generator, observer llm.CallObserver) (*llm.GuardedEmbedder, *llm.GuardedGenerator) {
	executor := resilience.NewExecutor(resilienceConfig(cfg))
	guardedEmbedder := llm.NewGuardedEmbedder(embedder, llm.GuardConfig{
		Provider: cfg.EmbedProvider,
		Timeout:  cfg.EmbedTimeout,
		Limiter:  resilience.NewLimiter(cfg.EmbedMaxConcurrency),
		Executor: executor,
		Observer: observer,
	})
	guardedGenerator := llm.NewGuardedGenerator(generator, llm.GuardConfig{
		Provider: cfg.GenProvider,
		Timeout:  cfg.GenTimeout,
		Limiter:  resilience.NewLimiter(cfg.GenMaxConcurrency),
		Executor: executor,
		Observer: observer,
	})
	return guardedEmbedder, guardedGenerator
}
