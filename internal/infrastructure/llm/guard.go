package llm

import (
	"context"
	"errors"
	"time"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/resilience"
)

// CallObserver receives the outcome of every upstream attempt.
type CallObserver func(provider, operation, outcome string, duration time.Duration)

type GuardConfig struct {
	Provider string
	Timeout  time.Duration
	Limiter  *resilience.Limiter
	Executor *resilience.Executor
	Observer CallObserver
}

type guard struct {
	cfg GuardConfig
}

func (g guard) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	release, err := g.cfg.Limiter.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	attempt := func(ctx context.Context) error {
		callCtx := ctx
		cancel := func() {}
		if g.cfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		}
		defer cancel()

		started := time.Now()
		err := fn(callCtx)
		if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = errors.Join(ErrCallTimeout, err)
		}
		g.observe(operation, err, time.Since(started))
		return err
	}

	if g.cfg.Executor == nil {
		err = attempt(ctx)
	} else {
		err = g.cfg.Executor.Execute(ctx, g.cfg.Provider+"_"+operation, attempt, Classify)
	}
	return WrapTemporary(g.cfg.Provider+" "+operation, err)
}

func (g guard) observe(operation string, err error, d time.Duration) {
	if g.cfg.Observer == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrCallTimeout):
		outcome = "timeout"
	case errors.Is(err, context.Canceled):
		outcome = "canceled"
	default:
		outcome = "error"
	}
	g.cfg.Observer(g.cfg.Provider, operation, outcome, d)
}

// GuardedEmbedder bounds concurrency, time and retries around an embedder.
type GuardedEmbedder struct {
	inner ports.Embedder
	guard guard
}

func NewGuardedEmbedder(inner ports.Embedder, cfg GuardConfig) *GuardedEmbedder {
	return &GuardedEmbedder{inner: inner, guard: guard{cfg: cfg}}
}

func (e *GuardedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.guard.run(ctx, "embed", func(ctx context.Context) error {
		vectors, err := e.inner.Embed(ctx, texts)
		if err != nil {
			return err
		}
		out = vectors
		return nil
	})
	return out, err
}

func (e *GuardedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := e.guard.run(ctx, "embed_query", func(ctx context.Context) error {
		vector, err := e.inner.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		out = vector
		return nil
	})
	return out, err
}

func (e *GuardedEmbedder) Identity() string {
	return e.inner.Identity()
}

func (e *GuardedEmbedder) Ping(ctx context.Context) error {
	return ping(ctx, e.inner, e.guard.cfg.Timeout)
}

// GuardedGenerator bounds concurrency, time and retries around a generator.
type GuardedGenerator struct {
	inner ports.Generator
	guard guard
}

func NewGuardedGenerator(inner ports.Generator, cfg GuardConfig) *GuardedGenerator {
	return &GuardedGenerator{inner: inner, guard: guard{cfg: cfg}}
}

func (g *GuardedGenerator) Generate(ctx context.Context, question, promptContext string) (string, error) {
	var out string
	err := g.guard.run(ctx, "generate", func(ctx context.Context) error {
		answer, err := g.inner.Generate(ctx, question, promptContext)
		if err != nil {
			return err
		}
		out = answer
		return nil
	})
	return out, err
}

func (g *GuardedGenerator) Ping(ctx context.Context) error {
	return ping(ctx, g.inner, g.guard.cfg.Timeout)
}

func ping(ctx context.Context, target any, timeout time.Duration) error {
	pinger, ok := target.(ports.Pinger)
	if !ok {
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return pinger.Ping(ctx)
}
