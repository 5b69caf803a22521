package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/swapflow/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Locker implements ports.DistributedLocker using Redis.
// A held lock is extended every third of its ttl until it is released, so a
// slow holder keeps it while a crashed one loses it after at most ttl.
type Locker struct {
	client       *backend.Client
	prefix       string
	pollInterval time.Duration
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client:       client,
		prefix:       prefix,
		pollInterval: 50 * time.Millisecond,
	}
}

// keepAlive extends the lock until ctx is cancelled or the token is gone.
func (l *Locker) keepAlive(ctx context.Context, lockKey, token string, ttl time.Duration, done chan<- struct{}) {
	defer close(done)
	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.client.Eval(ctx, renewScript, []string{lockKey}, token, ttl.Milliseconds()).Int()
			if err != nil && ctx.Err() != nil {
				return
			}
			if err == nil && n == 0 {
				return
			}
		}
	}
}

// Lock acquires a distributed lock for the given key using Redis SET NX PX.
// The stored token is unique per acquisition so only the holder can release it.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		if ok {
			renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
			done := make(chan struct{})
			go l.keepAlive(renewCtx, lockKey, token, ttl, done)

			return func(ctx context.Context) error {
				stop()
				<-done
				return l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
