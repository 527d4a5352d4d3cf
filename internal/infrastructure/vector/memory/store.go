package memory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
)

const partsKey = "parts.json"

// Store persists snapshots as JSON-lines parts in a SnapshotStore and serves
// them from memory with exact cosine search. Location is "snapshots/<version>".
type Store struct {
	blobs ports.SnapshotStore

	mu    sync.Mutex
	parts map[string][]string
}

func New(blobs ports.SnapshotStore) *Store {
	return &Store{blobs: blobs, parts: make(map[string][]string)}
}

func (s *Store) Backend() string {
	return domain.BackendMemory
}

func (s *Store) Prepare(_ context.Context, version string, _ int) (string, error) {
	location := "snapshots/" + version
	s.mu.Lock()
	s.parts[location] = nil
	s.mu.Unlock()
	return location, nil
}

// Write appends one part and rewrites the part list, so a reader only ever
// sees fully written parts.
func (s *Store) Write(ctx context.Context, location string, chunks []domain.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s/%d has no embedding", chunk.CaseNumber, chunk.Offset)
		}
		if err := enc.Encode(chunk); err != nil {
			return fmt.Errorf("encode chunk: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("part-%05d.jsonl", len(s.parts[location]))
	if err := s.blobs.Save(ctx, location+"/"+name, &buf); err != nil {
		return fmt.Errorf("save snapshot part: %w", err)
	}
	parts := append(s.parts[location], name)

	list, err := json.Marshal(parts)
	if err != nil {
		return fmt.Errorf("marshal part list: %w", err)
	}
	if err := s.blobs.Save(ctx, location+"/"+partsKey, bytes.NewReader(list)); err != nil {
		return fmt.Errorf("save part list: %w", err)
	}
	s.parts[location] = parts
	return nil
}

// Load reads every part of a snapshot into memory.
func (s *Store) Load(ctx context.Context, location string) (*Index, error) {
	rc, err := s.blobs.Open(ctx, location+"/"+partsKey)
	if err != nil {
		return nil, fmt.Errorf("open part list: %w", err)
	}
	var parts []string
	err = json.NewDecoder(rc).Decode(&parts)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("decode part list: %w", err)
	}

	index := &Index{}
	for _, part := range parts {
		if err := index.loadPart(ctx, s.blobs, location+"/"+part); err != nil {
			return nil, err
		}
	}
	return index, nil
}

func (s *Store) Opener() ports.IndexOpener {
	return func(ctx context.Context, manifest domain.SnapshotManifest) (ports.VectorIndex, error) {
		index, err := s.Load(ctx, manifest.Location)
		if err != nil {
			return nil, err
		}
		if manifest.Dimension > 0 && index.dimension > 0 && index.dimension != manifest.Dimension {
			return nil, fmt.Errorf("snapshot %s: dimension %d, manifest says %d", manifest.Version, index.dimension, manifest.Dimension)
		}
		return index, nil
	}
}

type entry struct {
	chunk domain.IndexedChunk
	norm  float64
}

// Index is immutable after Load.
type Index struct {
	entries   []entry
	dimension int
}

func (i *Index) loadPart(ctx context.Context, blobs ports.SnapshotStore, key string) error {
	rc, err := blobs.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("open snapshot part %s: %w", key, err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk domain.IndexedChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("decode snapshot part %s: %w", key, err)
		}
		if i.dimension == 0 {
			i.dimension = len(chunk.Embedding)
		} else if len(chunk.Embedding) != i.dimension {
			return fmt.Errorf("snapshot part %s: inconsistent embedding dimension", key)
		}
		i.entries = append(i.entries, entry{chunk: chunk, norm: norm(chunk.Embedding)})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read snapshot part %s: %w", key, err)
	}
	return nil
}

func (i *Index) Search(_ context.Context, queryVector []float32, limit int) ([]domain.RetrievedChunk, error) {
	if limit <= 0 || len(i.entries) == 0 {
		return []domain.RetrievedChunk{}, nil
	}
	if len(queryVector) != i.dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(queryVector), i.dimension)
	}

	qn := norm(queryVector)
	out := make([]domain.RetrievedChunk, 0, len(i.entries))
	for _, e := range i.entries {
		out = append(out, domain.RetrievedChunk{
			Chunk: domain.Chunk{CaseNumber: e.chunk.CaseNumber, Text: e.chunk.Text, Offset: e.chunk.Offset},
			Case:  e.chunk.Case,
			Score: cosine(queryVector, e.chunk.Embedding, qn, e.norm),
		})
	}
	// Ties rank by case number then offset so the cut at limit does not
	// depend on the order chunks were written.
	sort.Slice(out, func(a, b int) bool {
		x, y := out[a], out[b]
		if x.Score != y.Score {
			return x.Score > y.Score
		}
		if x.CaseNumber != y.CaseNumber {
			return x.CaseNumber < y.CaseNumber
		}
		return x.Offset < y.Offset
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (i *Index) Count(context.Context) (int, error) {
	return len(i.entries), nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for k := range a {
		dot += float64(a[k]) * float64(b[k])
	}
	return dot / (na * nb)
}
