package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a single-holder lease used to keep periodic jobs exclusive
// across API instances. A nil client makes every acquisition succeed.
type RedisLock struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	token  string
}

// NewRedisLock creates a lock handle for key with the given lease ttl.
func NewRedisLock(client redis.Cmdable, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    key,
		ttl:    ttl,
		token:  uuid.NewString(),
	}
}

// Acquire tries to take the lease once. It reports false when another holder has it.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	if l.client == nil {
		return true, nil
	}
	return l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
}

// Release gives the lease back if it is still ours.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
