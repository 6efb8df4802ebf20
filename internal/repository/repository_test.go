package repository

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"kopilka/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshot(key string) *models.Snapshot {
	return &models.Snapshot{
		Key:       key,
		Income:    "90000.00",
		Expense:   "1234.60",
		Balance:   "88765.40",
		UpdatedAt: time.Now(),
	}
}

func TestMemorySnapshotRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("SetGetClear", func(t *testing.T) {
		repo := NewMemorySnapshotRepository(time.Minute)

		got, err := repo.GetSnapshot(ctx, "2026-08")
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, repo.SetSnapshot(ctx, newSnapshot("2026-08")))

		got, err = repo.GetSnapshot(ctx, "2026-08")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "90000.00", got.Income)

		require.NoError(t, repo.ClearSnapshot(ctx, "2026-08"))
		got, err = repo.GetSnapshot(ctx, "2026-08")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		repo := NewMemorySnapshotRepository(10 * time.Millisecond)
		require.NoError(t, repo.SetSnapshot(ctx, newSnapshot("2026-08")))

		time.Sleep(30 * time.Millisecond)

		got, err := repo.GetSnapshot(ctx, "2026-08")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRedisSnapshotRepository(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := NewRedisSnapshotRepository(client, time.Minute)
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		require.NoError(t, repo.SetSnapshot(ctx, newSnapshot("2026-08")))

		got, err := repo.GetSnapshot(ctx, "2026-08")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "2026-08", got.Key)
		assert.Equal(t, "1234.60", got.Expense)

		// Ключ в redis имеет префикс
		assert.True(t, mr.Exists("summary_snapshot:2026-08"))
	})

	t.Run("MissReturnsNil", func(t *testing.T) {
		got, err := repo.GetSnapshot(ctx, "1999-01")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, repo.SetSnapshot(ctx, newSnapshot("2026-07")))
		require.NoError(t, repo.ClearSnapshot(ctx, "2026-07"))

		got, err := repo.GetSnapshot(ctx, "2026-07")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("TTLSet", func(t *testing.T) {
		require.NoError(t, repo.SetSnapshot(ctx, newSnapshot("2026-06")))
		mr.FastForward(2 * time.Minute)

		got, err := repo.GetSnapshot(ctx, "2026-06")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("NilClient", func(t *testing.T) {
		bad := NewRedisSnapshotRepository(nil, time.Minute)
		_, err := bad.GetSnapshot(ctx, "2026-08")
		assert.Error(t, err)
		assert.Error(t, bad.SetSnapshot(ctx, newSnapshot("2026-08")))
		assert.Error(t, bad.ClearSnapshot(ctx, "2026-08"))
	})
}

type failingRepository struct {
	err error
}

func (r *failingRepository) GetSnapshot(ctx context.Context, key string) (*models.Snapshot, error) {
	return nil, r.err
}

func (r *failingRepository) SetSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	return r.err
}

func (r *failingRepository) ClearSnapshot(ctx context.Context, key string) error {
	return r.err
}

func TestFailoverSnapshotRepository(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	t.Run("UsesPrimaryWhenHealthy", func(t *testing.T) {
		primary := NewMemorySnapshotRepository(time.Minute)
		fallback := NewMemorySnapshotRepository(time.Minute)
		repo := NewFailoverSnapshotRepository(primary, fallback, &logger)

		require.NoError(t, repo.SetSnapshot(ctx, newSnapshot("2026-08")))

		got, err := primary.GetSnapshot(ctx, "2026-08")
		require.NoError(t, err)
		assert.NotNil(t, got)

		got, err = fallback.GetSnapshot(ctx, "2026-08")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("FallsBackWhenPrimaryFails", func(t *testing.T) {
		primary := &failingRepository{err: errors.New("connection refused")}
		fallback := NewMemorySnapshotRepository(time.Minute)
		repo := NewFailoverSnapshotRepository(primary, fallback, &logger)

		require.NoError(t, repo.SetSnapshot(ctx, newSnapshot("2026-08")))
		assert.True(t, repo.isDown.Load())

		got, err := repo.GetSnapshot(ctx, "2026-08")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "2026-08", got.Key)
	})

	t.Run("ConcurrentCallersWhilePrimaryFlaps", func(t *testing.T) {
		primary := &failingRepository{err: errors.New("connection refused")}
		fallback := NewMemorySnapshotRepository(time.Minute)
		repo := NewFailoverSnapshotRepository(primary, fallback, &logger)

		// Concurrent reads, writes and invalidation must not race on the
		// down-state bookkeeping.
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					switch i % 3 {
					case 0:
						_, _ = repo.GetSnapshot(ctx, "2026-08")
					case 1:
						_ = repo.SetSnapshot(ctx, newSnapshot("2026-08"))
					default:
						_ = repo.ClearSnapshot(ctx, "2026-08")
					}
				}
			}(i)
		}
		wg.Wait()
		assert.True(t, repo.isDown.Load())
	})

	t.Run("RecoversAfterProbeInterval", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		primary := NewRedisSnapshotRepository(client, time.Minute)
		fallback := NewMemorySnapshotRepository(time.Minute)
		repo := NewFailoverSnapshotRepository(primary, fallback, &logger)

		mr.SetError("LOADING Redis is loading the dataset in memory")
		require.NoError(t, repo.SetSnapshot(ctx, newSnapshot("2026-08")))
		assert.True(t, repo.isDown.Load())

		// Primary recovers, but the probe interval has not passed yet.
		mr.SetError("")
		got, err := repo.GetSnapshot(ctx, "2026-08")
		require.NoError(t, err)
		require.NotNil(t, got, "fallback copy should serve while down")

		// Age the last check so the next read probes the primary again.
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())
		_, err = repo.GetSnapshot(ctx, "2026-08")
		require.NoError(t, err)
		assert.False(t, repo.isDown.Load())
	})
}
