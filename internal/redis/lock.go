package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("booking lock not acquired")
	// ErrLockUnavailable wraps failures talking to Redis, as opposed to contention.
	ErrLockUnavailable = errors.New("booking lock store unavailable")
)

const retryInterval = 25 * time.Millisecond

// Locker is used by the appointment service to serialize bookings that touch the same doctor or capacity slot.
type Locker interface {
	WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker creates a locker that holds one Redis key per lock name.
// ttl bounds how long a key lives, wait bounds how long acquisition retries.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func (l *redisLocker) WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	names := normalizeKeys(keys)
	token := uuid.NewString()

	acquired := make([]string, 0, len(names))
	defer func() {
		for _, key := range acquired {
			_ = l.release(context.WithoutCancel(ctx), key, token)
		}
	}()

	deadline := time.Now().Add(l.wait)
	for _, name := range names {
		key := "lock:" + name
		if err := l.acquire(ctx, key, token, deadline); err != nil {
			return err
		}
		acquired = append(acquired, key)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisLocker) acquire(ctx context.Context, key, token string, deadline time.Time) error {
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", ErrLockUnavailable, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// normalizeKeys sorts and dedups so that every caller takes locks in the same order.
func normalizeKeys(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)

	uniq := out[:0]
	for i, k := range out {
		if i > 0 && k == out[i-1] {
			continue
		}
		uniq = append(uniq, k)
	}
	return uniq
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release booking lock: %w", err)
	}
	return nil
}
