// internal/pkg/lock/redis_lock.go
package lock

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-taken by someone else is never freed by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.Cmdable
	prefix string
	opts   Options
}

func NewRedisLocker(client redis.Cmdable, prefix string, opts Options) *RedisLocker {
	if prefix == "" {
		prefix = "dedupe:lock:"
	}
	return &RedisLocker{
		client: client,
		prefix: prefix,
		opts:   opts.withDefaults(),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	return acquireAll(ctx, l.opts, keys, l.try, l.release)
}

func (l *RedisLocker) try(ctx context.Context, key, token string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, l.opts.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release %s: %w", key, err)
	}
	return nil
}
