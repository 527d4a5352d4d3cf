package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
)

const (
	DefaultTopK    = 5
	DefaultMaxTopK = 50

	DefaultNoContextAnswer = "I couldn't find any relevant information in the Supreme Court of Canada criminal law decisions to answer your question."
)

type EngineConfig struct {
	DefaultTopK     int
	MaxTopK         int
	ContextMaxChars int
	NoContextAnswer string
}

func (c EngineConfig) normalize() EngineConfig {
	out := c
	if out.MaxTopK <= 0 {
		out.MaxTopK = DefaultMaxTopK
	}
	if out.DefaultTopK <= 0 {
		out.DefaultTopK = DefaultTopK
	}
	if out.DefaultTopK > out.MaxTopK {
		out.DefaultTopK = out.MaxTopK
	}
	if out.ContextMaxChars == 0 {
		out.ContextMaxChars = DefaultContextMaxChars
	}
	if strings.TrimSpace(out.NoContextAnswer) == "" {
		out.NoContextAnswer = DefaultNoContextAnswer
	}
	return out
}

// QueryEngine runs retrieve, assemble, generate and resolve for one question.
// It holds no per-query state.
type QueryEngine struct {
	retriever *Retriever
	generator ports.Generator
	catalog   ports.CaseCatalog
	assembler ContextAssembler
	cfg       EngineConfig

	now     func() time.Time
	resolve func(answer string, chunks []domain.RetrievedChunk) []domain.Citation
}

// NewQueryEngine builds the engine. catalog may be nil.
func NewQueryEngine(
	retriever *Retriever,
	generator ports.Generator,
	catalog ports.CaseCatalog,
	cfg EngineConfig,
) *QueryEngine {
	cfg = cfg.normalize()
	return &QueryEngine{
		retriever: retriever,
		generator: generator,
		catalog:   catalog,
		assembler: ContextAssembler{MaxChars: cfg.ContextMaxChars},
		cfg:       cfg,
		now:       time.Now,
		resolve:   ResolveCitations,
	}
}

func (e *QueryEngine) DefaultTopK() int {
	return e.cfg.DefaultTopK
}

func (e *QueryEngine) MaxTopK() int {
	return e.cfg.MaxTopK
}

// Answer always returns a populated result. On failure result.Error is set
// and the returned error carries the failure kind.
func (e *QueryEngine) Answer(ctx context.Context, query string, topK int) (domain.QueryResult, error) {
	result := domain.NewQueryResult()

	query = strings.TrimSpace(query)
	if err := e.validate(query, topK); err != nil {
		result.Error = err.Error()
		return result, err
	}

	started := e.now()
	elapsed := func() float64 { return e.now().Sub(started).Seconds() }

	chunks, err := e.retriever.Retrieve(ctx, query, topK)
	result.RetrievalTime = elapsed()
	if err != nil {
		result.TotalTime = elapsed()
		result.Error = err.Error()
		return result, err
	}

	e.hydrate(ctx, chunks)
	promptContext, entries := e.assembler.Assemble(chunks)
	result.Context = entries

	if len(chunks) == 0 {
		result.Answer = e.cfg.NoContextAnswer
		result.TotalTime = elapsed()
		return result, nil
	}

	answer, err := e.generator.Generate(ctx, query, promptContext)
	if err != nil {
		err = domain.WrapError(domain.ErrGeneration, "generate answer", err)
		result.TotalTime = elapsed()
		result.Error = err.Error()
		return result, err
	}
	result.Answer = answer

	citations, err := e.resolveCitations(answer, chunks)
	if err != nil {
		slog.Warn("citation_resolution_failed", "error", err)
		citations = []domain.Citation{}
	}
	result.Citations = citations
	result.TotalTime = elapsed()
	return result, nil
}

func (e *QueryEngine) validate(query string, topK int) error {
	if query == "" {
		return domain.NewError(domain.ErrValidation, "validate query", "query must not be empty")
	}
	if topK < 1 || topK > e.cfg.MaxTopK {
		return domain.NewError(domain.ErrValidation, "validate query", fmt.Sprintf("top_k must be between 1 and %d", e.cfg.MaxTopK))
	}
	return nil
}

// hydrate overlays canonical catalog records onto retrieved metadata. Lookup
// failures keep the index metadata.
func (e *QueryEngine) hydrate(ctx context.Context, chunks []domain.RetrievedChunk) {
	if e.catalog == nil || len(chunks) == 0 {
		return
	}
	numbers := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.CaseNumber]; ok {
			continue
		}
		seen[chunk.CaseNumber] = struct{}{}
		numbers = append(numbers, chunk.CaseNumber)
	}

	records, err := e.catalog.GetMany(ctx, numbers)
	if err != nil {
		slog.Warn("case_catalog_lookup_failed", "cases", len(numbers), "error", err)
		return
	}
	for i := range chunks {
		record, ok := records[chunks[i].CaseNumber]
		if !ok {
			continue
		}
		if record.Title != "" {
			chunks[i].Case.Title = record.Title
		}
		if !record.Date.IsZero() {
			chunks[i].Case.Date = record.Date
		}
		if record.CitationText != "" {
			chunks[i].Case.CitationText = record.CitationText
		}
	}
}

func (e *QueryEngine) resolveCitations(answer string, chunks []domain.RetrievedChunk) (citations []domain.Citation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewError(domain.ErrCitationResolution, "resolve citations", fmt.Sprint(r))
		}
	}()
	citations = e.resolve(answer, chunks)
	if citations == nil {
		citations = []domain.Citation{}
	}
	return citations, nil
}
