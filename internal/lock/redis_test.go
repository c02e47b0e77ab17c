package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLock_AcquireAndRelease(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	l := NewRedis(client, "cappychat:sweep:lock", time.Minute)

	ok, err := l.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second acquire while held fails, even from another lock instance.
	other := NewRedis(client, "cappychat:sweep:lock", time.Minute)
	ok, err = other.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx))

	ok, err = other.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ReleaseOnlyByOwner(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	holder := NewRedis(client, "cappychat:sweep:lock", time.Minute)
	intruder := NewRedis(client, "cappychat:sweep:lock", time.Minute)

	ok, err := holder.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// A non-owner release must not free the holder's lock.
	require.NoError(t, intruder.Release(ctx))

	ok, err = intruder.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLock_TTLExpiryFreesLock(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	l := NewRedis(client, "cappychat:sweep:lock", time.Minute)
	ok, err := l.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	other := NewRedis(client, "cappychat:sweep:lock", time.Minute)
	ok, err = other.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "lock must be acquirable after TTL expiry")
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	ok, err := l.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx))

	ok, err = l.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
