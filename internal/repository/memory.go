package repository

import (
	"context"
	"sync"
	"time"

	"kopilka/internal/models"
)

type MemorySnapshotRepository struct {
	snapshots sync.Map
	ttl       time.Duration
}

type memoryEntry struct {
	snapshot  *models.Snapshot
	expiresAt time.Time
}

func NewMemorySnapshotRepository(ttl time.Duration) *MemorySnapshotRepository {
	return &MemorySnapshotRepository{
		ttl: ttl,
	}
}

func (r *MemorySnapshotRepository) GetSnapshot(ctx context.Context, key string) (*models.Snapshot, error) {
	val, ok := r.snapshots.Load(key)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if r.ttl > 0 && time.Now().After(entry.expiresAt) {
		r.snapshots.Delete(key)
		return nil, nil
	}
	return entry.snapshot, nil
}

func (r *MemorySnapshotRepository) SetSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	r.snapshots.Store(snapshot.Key, &memoryEntry{
		snapshot:  snapshot,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemorySnapshotRepository) ClearSnapshot(ctx context.Context, key string) error {
	r.snapshots.Delete(key)
	return nil
}
