package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
)

const defaultEmbedBatchSize = 32

// BuildObserver receives per-case progress from the index builder.
type BuildObserver interface {
	StartCase()
	FinishCase(duration time.Duration, err error)
}

type caseFile struct {
	domain.Case
	Source string `json:"source"`
}

// IndexBuilder turns a directory of case metadata files and their sources
// into a new read-only snapshot.
type IndexBuilder struct {
	extractors map[string]ports.TextExtractor
	chunker    ports.Chunker
	embedder   ports.Embedder
	writer     ports.IndexWriter
	catalog    ports.CaseCatalog
	snapshots  *SnapshotService
	notifier   ports.SnapshotNotifier
	observer   BuildObserver
	batchSize  int

	now func() time.Time
}

// NewIndexBuilder wires the builder. extractors is keyed by lower-case file
// extension including the dot. catalog, notifier and observer may be nil.
func NewIndexBuilder(
	extractors map[string]ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	writer ports.IndexWriter,
	catalog ports.CaseCatalog,
	snapshots *SnapshotService,
	notifier ports.SnapshotNotifier,
	observer BuildObserver,
	batchSize int,
) *IndexBuilder {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &IndexBuilder{
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		writer:     writer,
		catalog:    catalog,
		snapshots:  snapshots,
		notifier:   notifier,
		observer:   observer,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

func (b *IndexBuilder) Build(ctx context.Context, sourceDir string) (domain.SnapshotManifest, error) {
	files, err := b.loadCaseFiles(sourceDir)
	if err != nil {
		return domain.SnapshotManifest{}, err
	}
	if len(files) == 0 {
		return domain.SnapshotManifest{}, domain.NewError(domain.ErrValidation, "load case files", "no case metadata found in "+sourceDir)
	}

	cases := make([]domain.Case, 0, len(files))
	var chunks []domain.IndexedChunk
	for _, file := range files {
		caseChunks, err := b.processCase(ctx, sourceDir, file)
		if err != nil {
			return domain.SnapshotManifest{}, err
		}
		if len(caseChunks) == 0 {
			slog.Warn("case_skipped_empty", "case_number", file.CaseNumber)
			continue
		}
		cases = append(cases, file.Case)
		chunks = append(chunks, caseChunks...)
	}
	if len(chunks) == 0 {
		return domain.SnapshotManifest{}, domain.NewError(domain.ErrValidation, "chunk cases", "no chunks produced")
	}

	if err := b.embed(ctx, chunks); err != nil {
		return domain.SnapshotManifest{}, err
	}

	version := b.now().UTC().Format("20060102T150405Z")
	dimension := len(chunks[0].Embedding)
	location, err := b.writer.Prepare(ctx, version, dimension)
	if err != nil {
		return domain.SnapshotManifest{}, fmt.Errorf("prepare %s snapshot: %w", b.writer.Backend(), err)
	}
	for start := 0; start < len(chunks); start += b.batchSize {
		end := min(start+b.batchSize, len(chunks))
		if err := b.writer.Write(ctx, location, chunks[start:end]); err != nil {
			return domain.SnapshotManifest{}, fmt.Errorf("write %s snapshot: %w", b.writer.Backend(), err)
		}
	}

	if b.catalog != nil {
		if err := b.catalog.Upsert(ctx, cases); err != nil {
			return domain.SnapshotManifest{}, fmt.Errorf("upsert case catalog: %w", err)
		}
	}

	manifest := domain.SnapshotManifest{
		Version:       version,
		EmbedIdentity: b.embedder.Identity(),
		Dimension:     dimension,
		Backend:       b.writer.Backend(),
		Location:      location,
		CaseCount:     len(cases),
		ChunkCount:    len(chunks),
		CreatedAt:     b.now().UTC(),
	}
	if err := b.snapshots.Save(ctx, manifest); err != nil {
		return domain.SnapshotManifest{}, err
	}
	if b.notifier != nil {
		if err := b.notifier.PublishSnapshot(ctx, version); err != nil {
			// The manifest is already current; API instances pick it up on restart.
			slog.Warn("snapshot_publish_failed", "version", version, "error", err)
		}
	}

	slog.Info("snapshot_built",
		"version", version,
		"backend", manifest.Backend,
		"cases", manifest.CaseCount,
		"chunks", manifest.ChunkCount,
	)
	return manifest, nil
}

func (b *IndexBuilder) loadCaseFiles(sourceDir string) ([]caseFile, error) {
	paths, err := filepath.Glob(filepath.Join(sourceDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list case metadata: %w", err)
	}
	sort.Strings(paths)

	out := make([]caseFile, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read case metadata %s: %w", path, err)
		}
		var file caseFile
		if err := json.Unmarshal(raw, &file); err != nil {
			return nil, domain.WrapError(domain.ErrValidation, "decode case metadata "+filepath.Base(path), err)
		}
		file.CaseNumber = strings.TrimSpace(file.CaseNumber)
		if file.CaseNumber == "" {
			return nil, domain.NewError(domain.ErrValidation, "decode case metadata "+filepath.Base(path), "case_number is required")
		}
		if file.Source == "" {
			file.Source = strings.TrimSuffix(filepath.Base(path), ".json") + ".txt"
		}
		out = append(out, file)
	}
	return out, nil
}

func (b *IndexBuilder) processCase(ctx context.Context, sourceDir string, file caseFile) (chunks []domain.IndexedChunk, err error) {
	if b.observer != nil {
		started := time.Now()
		b.observer.StartCase()
		defer func() { b.observer.FinishCase(time.Since(started), err) }()
	}

	path := file.Source
	if !filepath.IsAbs(path) {
		path = filepath.Join(sourceDir, path)
	}
	extractor, ok := b.extractors[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, domain.NewError(domain.ErrValidation, "extract case "+file.CaseNumber, "unsupported source type "+filepath.Ext(path))
	}

	text, err := extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract case %s: %w", file.CaseNumber, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	parts := b.chunker.Split(text)
	chunks = make([]domain.IndexedChunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, domain.IndexedChunk{
			Chunk: domain.Chunk{CaseNumber: file.CaseNumber, Text: part, Offset: i},
			Case:  file.Case,
		})
	}
	return chunks, nil
}

func (b *IndexBuilder) embed(ctx context.Context, chunks []domain.IndexedChunk) error {
	for start := 0; start < len(chunks); start += b.batchSize {
		end := min(start+b.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		vectors, err := b.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embed chunks: vectors/chunks mismatch: %d/%d", len(vectors), len(texts))
		}
		for i, vector := range vectors {
			if len(vector) == 0 || (len(chunks[0].Embedding) > 0 && len(vector) != len(chunks[0].Embedding)) {
				return errors.New("embed chunks: inconsistent embedding dimension")
			}
			chunks[start+i].Embedding = vector
		}
	}
	return nil
}
