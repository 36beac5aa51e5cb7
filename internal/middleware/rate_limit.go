package middleware

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go-marketplace-pos/pkg/apperr"
	"go-marketplace-pos/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitStore counts hits per key inside a window. *redis.Client satisfies it.
type RateLimitStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope, subject string) string
}

// RateLimitPolicy is a per-client-address ceiling for one route group.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	limit  int
}

func NewRateLimitPolicy(name string, window time.Duration, limit int) RateLimitPolicy {
	return RateLimitPolicy{
		name:   strings.ToLower(strings.TrimSpace(name)),
		window: window,
		limit:  limit,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

func (p RateLimitPolicy) scope() string {
	if p.name == "" {
		return "default"
	}
	return p.name
}

// RateLimit enforces policy with the shared store when one is configured, so every
// instance counts against the same window. Without a store it falls back to fiber's
// in-process limiter.
func RateLimit(policy RateLimitPolicy, store RateLimitStore, log *logger.Logger) fiber.Handler {
	if log == nil {
		log = logger.Nop()
	}
	if !policy.enabled() {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if store == nil {
		return limiter.New(limiter.Config{
			Max:        policy.limit,
			Expiration: policy.window,
			KeyGenerator: func(c *fiber.Ctx) string {
				return policy.scope() + ":" + c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return rateLimited(c, log, policy, 0)
			},
		})
	}

	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		key := store.RateLimitKey(policy.scope(), c.IP())
		count, err := store.IncrWithTTL(ctx, key, policy.window)
		if err != nil {
			// counter outage must not take payments down
			log.Warn(log.WithFields(ctx, map[string]any{"policy": policy.scope(), "error": err.Error()}), "rate_limit.store_unavailable")
			return c.Next()
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(policy.limit))
		if remaining := int64(policy.limit) - count; remaining > 0 {
			c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		} else {
			c.Set("X-RateLimit-Remaining", "0")
		}
		if count > int64(policy.limit) {
			return rateLimited(c, log, policy, count)
		}
		return c.Next()
	}
}

func rateLimited(c *fiber.Ctx, log *logger.Logger, policy RateLimitPolicy, count int64) error {
	fields := map[string]any{
		"policy":         policy.scope(),
		"ip":             c.IP(),
		"limit":          policy.limit,
		"window_seconds": int(policy.window.Seconds()),
	}
	if count > 0 {
		fields["attempts"] = count
	}
	log.Warn(log.WithFields(c.UserContext(), fields), "rate_limit.blocked")
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(policy.window.Seconds())))
	return apperr.New(apperr.CodeRateLimit, "Too many requests, please try again later")
}
