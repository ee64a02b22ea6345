package tenantlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisLocker(client, time.Minute)
}

func TestRedisLocker_ExclusivePerTenant(t *testing.T) {
	_, locker := setup(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "tenant-a", "reclassify")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "tenant-a", "reclassify")
	assert.ErrorIs(t, err, ErrHeld)

	// other tenants and other jobs are independent
	releaseB, err := locker.Acquire(ctx, "tenant-b", "reclassify")
	require.NoError(t, err)
	releaseB()
	releaseSweep, err := locker.Acquire(ctx, "tenant-a", "audit-sweep")
	require.NoError(t, err)
	releaseSweep()

	release()
	release2, err := locker.Acquire(ctx, "tenant-a", "reclassify")
	require.NoError(t, err)
	release2()
}

func TestRedisLocker_ExpiresAfterTTL(t *testing.T) {
	mr, locker := setup(t)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "tenant-a", "reclassify")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = locker.Acquire(ctx, "tenant-a", "reclassify")
	require.NoError(t, err)
}

func TestRedisLocker_StaleReleaseKeepsNewHolder(t *testing.T) {
	mr, locker := setup(t)
	ctx := context.Background()

	staleRelease, err := locker.Acquire(ctx, "tenant-a", "reclassify")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = locker.Acquire(ctx, "tenant-a", "reclassify")
	require.NoError(t, err)

	staleRelease()
	assert.True(t, mr.Exists("vendorperf:lock:reclassify:tenant-a"))
}

func TestNop(t *testing.T) {
	release, err := Nop{}.Acquire(context.Background(), "t", "j")
	require.NoError(t, err)
	release()
}
