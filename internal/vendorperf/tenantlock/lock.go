// Package tenantlock keeps two batch jobs of the same tenant from running at
// the same time.
package tenantlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another holder owns the lock.
var ErrHeld = errors.New("tenant lock is held")

// Locker acquires a named lock for one tenant. The returned release func must
// be called once the job ends.
type Locker interface {
	Acquire(ctx context.Context, tenantID, job string) (release func(), err error)
}

// Nop never blocks.
type Nop struct{}

func (Nop) Acquire(context.Context, string, string) (func(), error) {
	return func() {}, nil
}

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisLocker 创建Redis租户锁，ttl为锁的最长持有时间
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl, prefix: "vendorperf:lock"}
}

func (l *RedisLocker) key(tenantID, job string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, job, tenantID)
}

func (l *RedisLocker) Acquire(ctx context.Context, tenantID, job string) (func(), error) {
	key := l.key(tenantID, job)
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	release := func() {
		// the caller's ctx may already be done
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		releaseScript.Run(rctx, l.client, []string{key}, token)
	}
	return release, nil
}
