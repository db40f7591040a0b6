package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "shiftsync:lease:"

// Deletes the key only if it still carries our token, so an expired lease never
// removes its successor's
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker returns a Locker shared by every process connected to the same Redis.
// A lease expires after ttl even if its holder crashed without releasing it.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{client: client, ttl: ttl}
}

func (locker *redisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	token := uuid.NewString()
	ok, err := locker.client.SetNX(ctx, keyPrefix+key, token, locker.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot acquire lease %q: %w", key, err)
	} else if !ok {
		return nil, ErrHeld
	}
	return &redisLease{client: locker.client, key: keyPrefix + key, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (lease *redisLease) Release(ctx context.Context) error {
	if err := release.Run(ctx, lease.client, []string{lease.key}, lease.token).Err(); err != nil {
		return fmt.Errorf("cannot release lease %q: %w", lease.key, err)
	}
	return nil
}
