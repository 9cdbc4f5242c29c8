package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"marketplace-backend/pkg/errutil"
	"marketplace-backend/pkg/rediskey"
)

var Module = fx.Module("ratelimit",
	fx.Provide(New),
)

// bucketTTLFactor keeps buckets around long enough for any trailing-window
// read before redis expires them on its own.
const bucketTTLFactor = 10

// Limiter is a sliding-window counter over redis. The window is split into
// fixed-size buckets; a check increments the current bucket and sums the
// trailing window. The threshold comparison is >=: a caller that reaches the
// limit is rejected, not only one that exceeds it.
type Limiter struct {
	rdb *redis.Client
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func New(p Params) *Limiter {
	return &Limiter{rdb: p.Redis}
}

// Allow counts one event against the named window.
func (l *Limiter) Allow(ctx context.Context, name string, limit int64, window time.Duration) error {
	return l.AllowAmount(ctx, name, 1, limit, window)
}

// AllowAmount counts amount units against the named window. Used for the
// earn-amount caps, where the unit is the asset amount rather than a request.
func (l *Limiter) AllowAmount(ctx context.Context, name string, amount, limit int64, window time.Duration) error {
	if limit <= 0 {
		return nil
	}

	resolution := bucketResolution(window)
	now := time.Now().Truncate(resolution).Unix()
	step := int64(resolution / time.Second)
	buckets := int(window / resolution)
	if buckets < 1 {
		buckets = 1
	}

	current := rediskey.BuildRateLimitBucketKey(name, now)

	pipe := l.rdb.TxPipeline()
	pipe.IncrBy(ctx, current, amount)
	pipe.Expire(ctx, current, bucketTTLFactor*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	keys := make([]string, 0, buckets)
	for i := 0; i < buckets; i++ {
		keys = append(keys, rediskey.BuildRateLimitBucketKey(name, now-int64(i)*step))
	}

	values, err := l.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return err
	}

	var sum int64
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		sum += n
	}

	if sum >= limit {
		return errutil.TooManyRequest("rate limit reached", errutil.WithDetails(errutil.Detail{
			Field:   "window",
			Message: window.String(),
		}))
	}

	return nil
}

// bucketResolution is window/60 clamped to a one second floor.
func bucketResolution(window time.Duration) time.Duration {
	resolution := window / 60
	if resolution < time.Second {
		resolution = time.Second
	}
	return resolution
}
