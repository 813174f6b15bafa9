package redisclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisSlotLocker(client, 5*time.Second), mr, client
}

func TestWithSlotLockRunsAndReleases(t *testing.T) {
	locker, mr, _ := newTestLocker(t)

	doctorID := uuid.New()
	startAt := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)

	ran := false
	err := locker.WithSlotLock(context.Background(), doctorID, startAt, func(ctx context.Context) error {
		ran = true
		// The lock key is held while fn runs.
		assert.True(t, len(mr.Keys()) == 1)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	// Released after fn returns.
	assert.Empty(t, mr.Keys())
}

func TestWithSlotLockContention(t *testing.T) {
	locker, _, client := newTestLocker(t)

	doctorID := uuid.New()
	startAt := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)

	err := locker.WithSlotLock(context.Background(), doctorID, startAt, func(ctx context.Context) error {
		// Same (doctor, start) from a second locker while held.
		other := NewRedisSlotLocker(client, 5*time.Second)
		innerErr := other.WithSlotLock(context.Background(), doctorID, startAt, func(ctx context.Context) error {
			t.Fatal("contending fn must not run")
			return nil
		})
		assert.ErrorIs(t, innerErr, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
}

func TestWithSlotLockDifferentSlotsDoNotContend(t *testing.T) {
	locker, _, _ := newTestLocker(t)

	doctorID := uuid.New()
	startAt := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)

	err := locker.WithSlotLock(context.Background(), doctorID, startAt, func(ctx context.Context) error {
		// Same doctor, next slot on the grid.
		return locker.WithSlotLock(context.Background(), doctorID, startAt.Add(30*time.Minute), func(ctx context.Context) error {
			// Different doctor, same time.
			return locker.WithSlotLock(context.Background(), uuid.New(), startAt, func(ctx context.Context) error {
				return nil
			})
		})
	})
	assert.NoError(t, err)
}

func TestWithSlotLockPropagatesError(t *testing.T) {
	locker, mr, _ := newTestLocker(t)

	doctorID := uuid.New()
	startAt := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)

	want := assert.AnError
	err := locker.WithSlotLock(context.Background(), doctorID, startAt, func(ctx context.Context) error {
		return want
	})
	assert.ErrorIs(t, err, want)

	// The lock is released even when fn fails.
	assert.Empty(t, mr.Keys())
}

func TestWithSlotLockDoesNotStealExpiredLock(t *testing.T) {
	locker, mr, _ := newTestLocker(t)

	doctorID := uuid.New()
	startAt := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)

	key := fmt.Sprintf("lock:slot:%s:%d", doctorID, startAt.Unix())

	err := locker.WithSlotLock(context.Background(), doctorID, startAt, func(ctx context.Context) error {
		// Simulate the TTL firing and another holder taking the key while
		// fn is still running. The deferred release must leave the new
		// holder's lock in place.
		mr.FastForward(6 * time.Second)
		require.NoError(t, mr.Set(key, "someone-else"))
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
