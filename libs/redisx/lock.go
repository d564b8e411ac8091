package redisx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// LockError means Redis could not be asked for the lock; fn did not run.
type LockError struct {
	Err error
}

func (e *LockError) Error() string { return "acquire lock: " + e.Err.Error() }

func (e *LockError) Unwrap() error { return e.Err }

// Locker serializes work on a named key across replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewLocker returns a SET NX based locker. Holders get a fresh token so a
// lock that expired and was taken by someone else is never released by us.
func NewLocker(client *redis.Client, ttl time.Duration, prefix string) Locker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "lock"
	}
	return &redisLocker{client: client, ttl: ttl, prefix: prefix}
}

func (l *redisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	full := l.key(key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
	if err != nil {
		return &LockError{Err: err}
	}
	if !ok {
		return ErrLockNotAcquired
	}
	defer func() {
		// ctx may already be cancelled; release on a short detached context.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(rctx, full, token)
	}()

	lctx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(lctx)
}

func (l *redisLocker) key(k string) string {
	return l.prefix + ":" + k
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	err := unlockScript.Run(ctx, l.client, []string{key}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
