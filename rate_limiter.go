package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errRateLimiterBackend = errors.New("rate limiter backend unavailable")

// emailRateLimiter enforces fixed-window send budgets per (user, action)
// with hourly and daily counters. Both windows must have headroom.
type emailRateLimiter struct {
	redis *redis.Client
	cfg   RateLimitConfig
}

func newEmailRateLimiter(redisClient *redis.Client, cfg RateLimitConfig) *emailRateLimiter {
	return &emailRateLimiter{redis: redisClient, cfg: cfg}
}

func (l *emailRateLimiter) hourKey(userID int64, action string, now time.Time) string {
	return fmt.Sprintf("%s:rl:h:%s:%d:%s", l.cfg.RedisKeyNS, now.UTC().Format("2006010215"), userID, action)
}

func (l *emailRateLimiter) dayKey(userID int64, action string, now time.Time) string {
	return fmt.Sprintf("%s:rl:d:%s:%d:%s", l.cfg.RedisKeyNS, now.UTC().Format("20060102"), userID, action)
}

// Allow consumes one send from both windows. It returns ErrRateLimited when
// either budget is spent. Counters are incremented before the check, so a
// denied request still burns the slot; that is intentional backpressure on
// abusive retry loops.
func (l *emailRateLimiter) Allow(ctx context.Context, userID int64, action string, now time.Time) error {
	if l == nil || !l.cfg.Enabled {
		return nil
	}

	hourKey := l.hourKey(userID, action, now)
	dayKey := l.dayKey(userID, action, now)

	pipe := l.redis.TxPipeline()
	hourCount := pipe.Incr(ctx, hourKey)
	pipe.Expire(ctx, hourKey, time.Hour)
	dayCount := pipe.Incr(ctx, dayKey)
	pipe.Expire(ctx, dayKey, 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", errRateLimiterBackend, err)
	}

	if hourCount.Val() > int64(l.cfg.PerHour) || dayCount.Val() > int64(l.cfg.PerDay) {
		return ErrRateLimited
	}
	return nil
}

// attemptCounter tracks short-lived failure counts, used for email OTP
// password-reset attempts and M2FA TOTP lockout bookkeeping outside the
// relational store.
type attemptCounter struct {
	redis *redis.Client
	ns    string
}

func newAttemptCounter(redisClient *redis.Client, ns string) *attemptCounter {
	return &attemptCounter{redis: redisClient, ns: ns}
}

func (c *attemptCounter) key(scope string, id string) string {
	return c.ns + ":attempts:" + scope + ":" + id
}

// Bump increments the failure count for (scope, id) and returns the new
// total. The TTL is set on first increment only.
func (c *attemptCounter) Bump(ctx context.Context, scope, id string, ttl time.Duration) (int, error) {
	key := c.key(scope, id)

	pipe := c.redis.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", errRateLimiterBackend, err)
	}
	return int(count.Val()), nil
}

func (c *attemptCounter) Reset(ctx context.Context, scope, id string) error {
	if err := c.redis.Del(ctx, c.key(scope, id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRateLimiterBackend, err)
	}
	return nil
}

func (c *attemptCounter) Count(ctx context.Context, scope, id string) (int, error) {
	n, err := c.redis.Get(ctx, c.key(scope, id)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", errRateLimiterBackend, err)
	}
	return n, nil
}
