package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrCheckoutInProgress = errors.New("a checkout is already running for this user")

const keyPrefix = "dampfi:checkout:lock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// CheckoutLock guards against two concurrent checkout runs for the same user.
type CheckoutLock struct {
	client RedisClient
	ttl    time.Duration
}

func NewCheckoutLock(client RedisClient, ttl time.Duration) *CheckoutLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CheckoutLock{client: client, ttl: ttl}
}

// Acquire takes the user's lock or returns ErrCheckoutInProgress. The returned release
// function only deletes the lock if it is still held by this caller.
func (l *CheckoutLock) Acquire(ctx context.Context, userID int) (func(context.Context) error, error) {
	key := fmt.Sprintf("%s%d", keyPrefix, userID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire checkout lock: %w", err)
	}
	if !ok {
		return nil, ErrCheckoutInProgress
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release checkout lock: %w", err)
		}
		return nil
	}
	return release, nil
}
