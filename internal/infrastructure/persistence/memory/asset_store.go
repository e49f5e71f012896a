package memory

import (
	"context"
	"sync"
	"time"

	"github.com/calculus-oom/gradebook/internal/domain/asset"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// AssetStore keeps asset bundles in a map.
type AssetStore struct {
	mu      sync.Mutex
	bundles map[string]asset.Bundle
}

// NewAssetStore creates an empty asset store.
func NewAssetStore() *AssetStore {
	return &AssetStore{bundles: make(map[string]asset.Bundle)}
}

func (s *AssetStore) Get(ctx context.Context, id string) (asset.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[id]
	if !ok {
		return asset.Bundle{}, shared.NotFound("asset", "Get", id)
	}
	return b, nil
}

func (s *AssetStore) Upsert(ctx context.Context, id string, kind asset.Kind, path string, now time.Time) (asset.Bundle, error) {
	if !kind.IsValid() {
		return asset.Bundle{}, shared.NewValidationError("asset", "Upsert", "invalid kind", "kind")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[id]
	if !ok {
		b = asset.Bundle{ID: id, CreatedAt: now.UTC()}
	}
	b.SetPath(kind, path, now)
	s.bundles[id] = b
	return b, nil
}

func (s *AssetStore) Update(ctx context.Context, bundle asset.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bundles[bundle.ID]; !ok {
		return shared.NotFound("asset", "Update", bundle.ID)
	}
	s.bundles[bundle.ID] = bundle
	return nil
}

func (s *AssetStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bundles[id]; !ok {
		return shared.NotFound("asset", "Delete", id)
	}
	delete(s.bundles, id)
	return nil
}
