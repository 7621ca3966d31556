package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-booking/internal/booking"
)

// releaseScript deletes the lock only if it still carries our token, so a
// holder whose lease expired cannot release someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease lock held as a Redis key set with NX and a TTL. The TTL
// caps how long a crashed holder can block a show; the database row lock
// stays the source of truth for correctness.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	log    *zap.Logger
}

// NewRedis builds a Redis lock. ttl is the lease and wait the longest a
// caller polls before giving up.
func NewRedis(client redis.UniversalClient, ttl, wait time.Duration, log *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = DefaultWait
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{client: client, prefix: "lock:", ttl: ttl, wait: wait, retry: 25 * time.Millisecond, log: log}
}

// Lock polls SET NX until it wins, ctx is done or the wait elapses.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	full := r.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", full, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s after %s", booking.ErrLockTimeout, key, r.wait)
		}
		t := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.release(full, token) })
	}, nil
}

// release deletes the key if it still carries token. It uses a fresh
// context so a cancelled request still frees the key.
func (r *Redis) release(full, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, r.client, []string{full}, token).Err(); err != nil {
		r.log.Warn("release show lock failed", zap.String("key", full), zap.Error(err))
	}
}
