package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"marketplace-backend/pkg/errutil"
)

var Module = fx.Module("lock",
	fx.Provide(NewRedisLocker),
)

// Locker hands out named mutual-exclusion locks shared across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error)
}

// Lock is a held named lock. Release is safe to call once; the lock also
// falls away on its own when the TTL passes.
type Lock struct {
	key     string
	token   string
	release func(ctx context.Context) error
}

// NewHeldLock wraps a lock another Locker implementation already acquired,
// binding its release action.
func NewHeldLock(key string, release func(ctx context.Context) error) *Lock {
	return &Lock{key: key, release: release}
}

func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.release == nil {
		return nil
	}
	return l.release(ctx)
}

// releaseScript deletes the key only when it still carries our token, so an
// expired-and-reacquired lock is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const acquireRetryInterval = 25 * time.Millisecond

type RedisLocker struct {
	rdb *redis.Client
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisLocker(p Params) Locker {
	return &RedisLocker{rdb: p.Redis}
}

// Acquire blocks until the lock is taken, the TTL-sized wait budget runs out,
// or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(ttl)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lock{
				key:   key,
				token: token,
				release: func(ctx context.Context) error {
					return releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
				},
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, errutil.Conflict("lock is held", errutil.WithDetails(errutil.Detail{
				Field:   "key",
				Message: key,
			}))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acquireRetryInterval):
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
