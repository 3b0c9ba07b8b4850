package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"contractstore-service/service/distributed_lock"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakePruner) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 31, 2, 0, 0, 0, time.UTC)
}

func TestCleanupExpiredLogs_UsesRetention(t *testing.T) {
	pruner := &fakePruner{deleted: 7}
	s := NewLogCleanupService(pruner, Options{RetentionDays: 7, Now: fixedNow})

	deleted, err := s.CleanupExpiredLogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
	require.Len(t, pruner.cutoffs, 1)
	assert.Equal(t, time.Date(2024, 3, 24, 2, 0, 0, 0, time.UTC), pruner.cutoffs[0])
}

func TestCleanupExpiredLogs_Defaults(t *testing.T) {
	pruner := &fakePruner{}
	s := NewLogCleanupService(pruner, Options{Now: fixedNow})

	_, err := s.CleanupExpiredLogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixedNow().AddDate(0, 0, -DefaultRetentionDays), pruner.cutoffs[0])
	assert.Equal(t, DefaultSchedule, s.schedule)
}

func TestCleanupExpiredLogs_PropagatesError(t *testing.T) {
	s := NewLogCleanupService(&fakePruner{err: errors.New("db down")}, Options{})
	_, err := s.CleanupExpiredLogs(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestCleanupExpiredLogs_SkipsWhenLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := distributed_lock.NewRedisLockWithClient(client, "test:")
	defer lock.Close()

	ctx := context.Background()
	ok, err := lock.TryLock(ctx, lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	pruner := &fakePruner{}
	s := NewLogCleanupService(pruner, Options{Lock: distributed_lock.NewLockExecutor(lock)})

	deleted, err := s.CleanupExpiredLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
	assert.Empty(t, pruner.cutoffs)

	require.NoError(t, lock.Unlock(ctx, lockKey))
	_, err = s.CleanupExpiredLogs(ctx)
	require.NoError(t, err)
	assert.Len(t, pruner.cutoffs, 1)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewLogCleanupService(&fakePruner{}, Options{Schedule: "0 */5 * * * *"})
	require.NoError(t, s.StartScheduledCleanup())
	assert.Error(t, s.StartScheduledCleanup())
	s.StopScheduledCleanup()

	bad := NewLogCleanupService(&fakePruner{}, Options{Schedule: "not a cron"})
	assert.Error(t, bad.StartScheduledCleanup())
}
