package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL caps how long a crashed sweep can keep the lock. It must
// exceed the sweep time budget so a healthy sweep never loses its own lock.
const DefaultLockTTL = 2 * time.Minute

// releaseScript deletes the lock only when this instance still owns it, so a
// slow sweep whose lock expired cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a SweepLock backed by a Redis SET NX key with a TTL. The TTL
// guarantees the lock is eventually released even if the holding process
// dies mid-sweep.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewRedis creates a Redis-backed sweep lock on the given key. A ttl of zero
// selects DefaultLockTTL.
func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Redis{
		client: client,
		key:    key,
		ttl:    ttl,
		token:  uuid.NewString(),
	}
}

// TryAcquire implements SweepLock via SET NX.
func (r *Redis) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key, r.token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring sweep lock %s: %w", r.key, err)
	}
	return ok, nil
}

// Release implements SweepLock with a compare-and-delete so only the owner
// can release.
func (r *Redis) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key}, r.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("releasing sweep lock %s: %w", r.key, err)
	}
	return nil
}
