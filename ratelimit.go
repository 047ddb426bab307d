package rescache

import (
	"context"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter is a token-bucket consumer keyed by provider name, backed by
// Redis. It fails open: a backing-store error (Redis down, network
// partition) returns allowed=true with the error logged, rather than
// blocking requests that could otherwise succeed.
//
// Grounded on stormlightlabs-baseball's middleware.RateLimiter, which does
// the same "on Allow() error, just let the request through" thing for its
// HTTP layer; here the same policy is lifted into a standalone per-provider
// gate usable from ResilientStrategy.
type RateLimiter struct {
	limiter *redis_rate.Limiter
	perMin  int
}

// NewRateLimiter creates a rate limiter admitting up to ratePerMinute
// calls per minute, per provider key.
func NewRateLimiter(client redis.UniversalClient, ratePerMinute int) *RateLimiter {
	return &RateLimiter{
		limiter: redis_rate.NewLimiter(client),
		perMin:  ratePerMinute,
	}
}

// Allow reports whether a call to provider is currently permitted. On a
// Redis error it logs a warning and fails open (returns true).
func (r *RateLimiter) Allow(ctx context.Context, provider string) bool {
	allowed, _ := r.allow(ctx, provider)
	return allowed
}

// RetryAfter reports how long a caller should wait before the next Allow
// call to provider is likely to succeed. It consumes the same token-bucket
// check Allow does, so callers should use the bundled AllowWithRetryAfter
// instead of calling Allow and RetryAfter back to back: redis_rate has no
// non-consuming peek, and two separate Allow() round trips would spend two
// units of quota for one logical check. Returns 0 if the limiter is
// unreachable (fail-open) or disabled.
func (r *RateLimiter) RetryAfter(ctx context.Context, provider string) time.Duration {
	_, retryAfter := r.allow(ctx, provider)
	return retryAfter
}

// AllowWithRetryAfter performs a single token-bucket check and returns both
// the admission decision and the recommended backoff, so a caller that
// wants both does not spend quota twice.
func (r *RateLimiter) AllowWithRetryAfter(ctx context.Context, provider string) (bool, time.Duration) {
	return r.allow(ctx, provider)
}

func (r *RateLimiter) allow(ctx context.Context, provider string) (bool, time.Duration) {
	if r == nil || r.limiter == nil {
		return true, 0
	}
	res, err := r.limiter.Allow(ctx, rateLimitKey(provider), redis_rate.PerMinute(r.perMin))
	if err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("rate limiter backing store error, failing open")
		return true, 0
	}
	return res.Allowed > 0, res.RetryAfter
}

func rateLimitKey(provider string) string {
	return "rate:provider:" + provider
}
