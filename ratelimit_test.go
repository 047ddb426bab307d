package rescache_test

import (
	"context"
	"testing"
	"time"

	"github.com/caiofalcao/rescache"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUpToPerMinuteThenBlocks(t *testing.T) {
	client, _ := setupTestRedis(t)
	rl := rescache.NewRateLimiter(client, 2)

	assert.True(t, rl.Allow(context.Background(), "viacep"))
	assert.True(t, rl.Allow(context.Background(), "viacep"))
	assert.False(t, rl.Allow(context.Background(), "viacep"))

	assert.GreaterOrEqual(t, rl.RetryAfter(context.Background(), "viacep"), time.Duration(0))
}

func TestRateLimiter_NilLimiterFailsOpen(t *testing.T) {
	var rl *rescache.RateLimiter
	assert.True(t, rl.Allow(context.Background(), "viacep"))
	assert.Zero(t, rl.RetryAfter(context.Background(), "viacep"))
}

func TestRateLimiter_AllowWithRetryAfterConsumesOneToken(t *testing.T) {
	client, _ := setupTestRedis(t)
	rl := rescache.NewRateLimiter(client, 1)

	allowed, _ := rl.AllowWithRetryAfter(context.Background(), "viacep")
	assert.True(t, allowed)

	allowed, retryAfter := rl.AllowWithRetryAfter(context.Background(), "viacep")
	assert.False(t, allowed)
	assert.GreaterOrEqual(t, retryAfter, time.Duration(0))
}

func TestRateLimiter_SeparateProvidersHaveIndependentBudgets(t *testing.T) {
	client, _ := setupTestRedis(t)
	rl := rescache.NewRateLimiter(client, 1)

	assert.True(t, rl.Allow(context.Background(), "viacep"))
	assert.False(t, rl.Allow(context.Background(), "viacep"))
	assert.True(t, rl.Allow(context.Background(), "opencage"))
}
