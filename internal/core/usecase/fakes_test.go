package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
)

type embedderFake struct {
	mu       sync.Mutex
	calls    int
	identity string
	err      error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *embedderFake) Identity() string {
	if f.identity == "" {
		return "fake/embed"
	}
	return f.identity
}

type indexFake struct {
	chunks   []domain.RetrievedChunk
	count    int
	err      error
	countErr error
	limit    int
}

func (f *indexFake) Search(_ context.Context, _ []float32, limit int) ([]domain.RetrievedChunk, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.RetrievedChunk, len(f.chunks))
	copy(out, f.chunks)
	return out, nil
}

func (f *indexFake) Count(context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

type generatorFake struct {
	mu       sync.Mutex
	calls    int
	answer   string
	err      error
	question string
	context  string
}

func (f *generatorFake) Generate(_ context.Context, question, promptContext string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.question = question
	f.context = promptContext
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type pingingGenerator struct {
	generatorFake
	pingErr error
}

func (g *pingingGenerator) Ping(context.Context) error { return g.pingErr }

type catalogFake struct {
	records  map[string]domain.Case
	err      error
	upserted []domain.Case
}

func (f *catalogFake) GetByNumber(_ context.Context, caseNumber string) (*domain.Case, error) {
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.records[caseNumber]
	if !ok {
		return nil, domain.NewError(domain.ErrCaseNotFound, "get case", caseNumber)
	}
	return &record, nil
}

func (f *catalogFake) GetMany(_ context.Context, caseNumbers []string) (map[string]domain.Case, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]domain.Case)
	for _, n := range caseNumbers {
		if record, ok := f.records[n]; ok {
			out[n] = record
		}
	}
	return out, nil
}

func (f *catalogFake) Upsert(_ context.Context, cases []domain.Case) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, cases...)
	return nil
}

type storeFake struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newStoreFake() *storeFake {
	return &storeFake{objects: make(map[string][]byte)}
}

func (s *storeFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = raw
	return nil
}

func (s *storeFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type notifierFake struct {
	published []string
	handler   func(context.Context, string) error
}

func (n *notifierFake) PublishSnapshot(ctx context.Context, version string) error {
	n.published = append(n.published, version)
	if n.handler != nil {
		return n.handler(ctx, version)
	}
	return nil
}

func (n *notifierFake) SubscribeSnapshots(_ context.Context, handler func(context.Context, string) error) error {
	n.handler = handler
	return nil
}

// openerFor returns an IndexOpener that serves idx for every manifest.
func openerFor(idx ports.VectorIndex) ports.IndexOpener {
	return func(context.Context, domain.SnapshotManifest) (ports.VectorIndex, error) {
		return idx, nil
	}
}

// steppingClock advances one second on every reading.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func chunk(caseNumber, title string, score float64, offset int, text string) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		Chunk: domain.Chunk{CaseNumber: caseNumber, Text: text, Offset: offset},
		Case:  domain.Case{CaseNumber: caseNumber, Title: title, Date: domain.NewDate(2015, time.March, 12)},
		Score: score,
	}
}
