package repository

import (
	"context"
	"sync/atomic"
	"time"

	"kopilka/internal/domain"
	"kopilka/internal/models"

	"github.com/rs/zerolog"
)

type FailoverSnapshotRepository struct {
	primary  domain.SnapshotRepository
	fallback domain.SnapshotRepository
	logger   *zerolog.Logger
	isDown   atomic.Bool
	// unix nanos; callers race on it as freely as on isDown
	lastCheck atomic.Int64
}

func NewFailoverSnapshotRepository(primary, fallback domain.SnapshotRepository, logger *zerolog.Logger) *FailoverSnapshotRepository {
	return &FailoverSnapshotRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSnapshotRepository) GetSnapshot(ctx context.Context, key string) (*models.Snapshot, error) {
	if !r.isDown.Load() {
		snapshot, err := r.primary.GetSnapshot(ctx, key)
		if err == nil {
			return snapshot, nil
		}
		r.logger.Error().Err(err).Msg("Primary snapshot repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute {
		snapshot, err := r.primary.GetSnapshot(ctx, key)
		if err == nil {
			r.isDown.Store(false)
			return snapshot, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.GetSnapshot(ctx, key)
}

func (r *FailoverSnapshotRepository) SetSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if !r.isDown.Load() {
		err := r.primary.SetSnapshot(ctx, snapshot)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary snapshot repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.SetSnapshot(ctx, snapshot)
}

func (r *FailoverSnapshotRepository) ClearSnapshot(ctx context.Context, key string) error {
	if !r.isDown.Load() {
		err := r.primary.ClearSnapshot(ctx, key)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary snapshot repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.ClearSnapshot(ctx, key)
}
