package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
)

const currentManifestKey = "manifests/current"

func ManifestKey(version string) string {
	return "manifests/" + version + ".json"
}

type activeSnapshot struct {
	manifest domain.SnapshotManifest
	index    ports.VectorIndex
}

// ActiveIndex routes searches to the currently active snapshot. Swaps are
// atomic; a query that already loaded a snapshot keeps using it.
type ActiveIndex struct {
	current atomic.Pointer[activeSnapshot]
}

func NewActiveIndex() *ActiveIndex {
	return &ActiveIndex{}
}

func (a *ActiveIndex) swap(manifest domain.SnapshotManifest, index ports.VectorIndex) {
	a.current.Store(&activeSnapshot{manifest: manifest, index: index})
}

func (a *ActiveIndex) Manifest() (domain.SnapshotManifest, bool) {
	snap := a.current.Load()
	if snap == nil {
		return domain.SnapshotManifest{}, false
	}
	return snap.manifest, true
}

func (a *ActiveIndex) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedChunk, error) {
	snap := a.current.Load()
	if snap == nil {
		return nil, domain.ErrSnapshotUnavailable
	}
	return snap.index.Search(ctx, queryVector, limit)
}

func (a *ActiveIndex) Count(ctx context.Context) (int, error) {
	snap := a.current.Load()
	if snap == nil {
		return 0, domain.ErrSnapshotUnavailable
	}
	return snap.index.Count(ctx)
}

// SnapshotService stores manifests and activates snapshots built with the
// same embedding identity as the running embedder.
type SnapshotService struct {
	store    ports.SnapshotStore
	open     ports.IndexOpener
	identity string
	active   *ActiveIndex
	hooks    []func(domain.SnapshotManifest)
}

func NewSnapshotService(store ports.SnapshotStore, open ports.IndexOpener, identity string, active *ActiveIndex) *SnapshotService {
	return &SnapshotService{
		store:    store,
		open:     open,
		identity: identity,
		active:   active,
	}
}

// OnActivate registers fn to run after every successful swap. Not safe to call
// concurrently with Activate.
func (s *SnapshotService) OnActivate(fn func(domain.SnapshotManifest)) {
	s.hooks = append(s.hooks, fn)
}

func (s *SnapshotService) Active() *ActiveIndex {
	return s.active
}

// Save writes the manifest and points "current" at it.
func (s *SnapshotService) Save(ctx context.Context, manifest domain.SnapshotManifest) error {
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := s.store.Save(ctx, ManifestKey(manifest.Version), bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	if err := s.store.Save(ctx, currentManifestKey, strings.NewReader(manifest.Version)); err != nil {
		return fmt.Errorf("save current manifest pointer: %w", err)
	}
	return nil
}

func (s *SnapshotService) Manifest(ctx context.Context, version string) (domain.SnapshotManifest, error) {
	rc, err := s.store.Open(ctx, ManifestKey(version))
	if err != nil {
		return domain.SnapshotManifest{}, fmt.Errorf("open manifest %s: %w", version, err)
	}
	defer rc.Close()

	var manifest domain.SnapshotManifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return domain.SnapshotManifest{}, fmt.Errorf("decode manifest %s: %w", version, err)
	}
	return manifest, nil
}

func (s *SnapshotService) CurrentVersion(ctx context.Context) (string, error) {
	rc, err := s.store.Open(ctx, currentManifestKey)
	if err != nil {
		return "", fmt.Errorf("open current manifest pointer: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, 256))
	if err != nil {
		return "", fmt.Errorf("read current manifest pointer: %w", err)
	}
	version := strings.TrimSpace(string(raw))
	if version == "" {
		return "", domain.NewError(domain.ErrSnapshotUnavailable, "read current manifest pointer", "pointer is empty")
	}
	return version, nil
}

func (s *SnapshotService) ActivateCurrent(ctx context.Context) error {
	version, err := s.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	return s.Activate(ctx, version)
}

// Activate opens the snapshot and swaps it in. On any error the previously
// active snapshot stays in place.
func (s *SnapshotService) Activate(ctx context.Context, version string) error {
	manifest, err := s.Manifest(ctx, version)
	if err != nil {
		return err
	}
	if manifest.EmbedIdentity != s.identity {
		return domain.NewError(domain.ErrSnapshotMismatch, "activate snapshot",
			fmt.Sprintf("snapshot %s was built with %q, engine embeds with %q", manifest.Version, manifest.EmbedIdentity, s.identity))
	}

	index, err := s.open(ctx, manifest)
	if err != nil {
		return fmt.Errorf("open snapshot %s: %w", manifest.Version, err)
	}
	s.active.swap(manifest, index)
	for _, hook := range s.hooks {
		hook(manifest)
	}

	slog.Info("snapshot_activated",
		"version", manifest.Version,
		"backend", manifest.Backend,
		"embed_identity", manifest.EmbedIdentity,
		"chunks", manifest.ChunkCount,
	)
	return nil
}

// Watch activates snapshots announced by the notifier until ctx is done.
func (s *SnapshotService) Watch(ctx context.Context, notifier ports.SnapshotNotifier) error {
	return notifier.SubscribeSnapshots(ctx, func(ctx context.Context, version string) error {
		if current, ok := s.active.Manifest(); ok && current.Version == version {
			return nil
		}
		if err := s.Activate(ctx, version); err != nil {
			slog.Error("snapshot_activation_rejected", "version", version, "error", err)
			return err
		}
		return nil
	})
}
