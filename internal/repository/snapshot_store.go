package repository

import (
	"context"
	"errors"
	"fmt"

	"MicroGrid/internal/domain/models"
	"MicroGrid/internal/domain/repository"
	"MicroGrid/pkg/cache"
)

const snapshotKey = "snapshot:latest"

// SnapshotStore keeps the latest loop snapshot in a cache.Service.
type SnapshotStore struct {
	cache cache.Service
}

func NewSnapshotStore(c cache.Service) *SnapshotStore {
	return &SnapshotStore{cache: c}
}

func (s *SnapshotStore) Save(ctx context.Context, snap *models.Snapshot) error {
	return s.cache.Set(ctx, snapshotKey, snap, 0)
}

// Latest returns nil, nil before the first iteration has been saved.
func (s *SnapshotStore) Latest(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := s.cache.Get(ctx, snapshotKey, &snap); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &snap, nil
}

var _ repository.SnapshotStore = (*SnapshotStore)(nil)
