package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"fraud-risk-engine/internal/domain/fraud"
)

const userLockPrefix = "fraud:lock:user:"

// releaseScript deletes the lock only if this holder still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// UserLock serializes checks for the same user across instances.
// The lock expires after ttl so a crashed holder cannot wedge a user.
type UserLock struct {
	client       *Client
	ttl          time.Duration
	wait         time.Duration
	pollInterval time.Duration
}

// NewUserLock creates a distributed per-user lock
func NewUserLock(client *Client, ttl, wait time.Duration) *UserLock {
	return &UserLock{
		client:       client,
		ttl:          ttl,
		wait:         wait,
		pollInterval: 25 * time.Millisecond,
	}
}

// Lock blocks until the user's lock is held, the wait budget elapses or ctx ends
func (l *UserLock) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	key := userLockPrefix + userID.String()
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire user lock: %w", err)
		}
		if ok {
			return func() {
				// release with a fresh context so a cancelled check still unlocks
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client.rdb, []string{key}, token).Err()
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, fraud.ErrUserLockUnavailable
		}

		timer := time.NewTimer(l.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(fraud.ErrUserLockUnavailable, ctx.Err())
		case <-timer.C:
		}
	}
}
