package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrixloki/lokiai-biometrics/internal/monitoring"
)

func newFallbackLimiter(t *testing.T, config Config) *RateLimiter {
	t.Helper()

	// Empty addr keeps Redis disabled so checks take the in-memory path.
	client, err := NewRedisClient("", "", 0)
	require.NoError(t, err)

	return NewRateLimiter(client, config, monitoring.NewMetrics())
}

func TestFallbackAllowsWithinLimit(t *testing.T) {
	rl := newFallbackLimiter(t, DefaultConfig())

	result, err := rl.AllowIP(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, DefaultConfig().IPLimitPerMin, result.Limit)
}

func TestFallbackBlocksAfterBurst(t *testing.T) {
	config := Config{IPLimitPerMin: 2, UserLimitPerMin: 2, BurstMultiplier: 1}
	rl := newFallbackLimiter(t, config)

	blocked := false
	// Burst floor is 5 tokens; drain past it.
	for i := 0; i < 20; i++ {
		result, err := rl.AllowUser(context.Background(), "alice")
		require.NoError(t, err)
		if !result.Allowed {
			blocked = true
			assert.Greater(t, result.RetryAfter.Seconds(), 0.0)
			break
		}
	}
	assert.True(t, blocked, "sustained attempts must eventually be blocked")
}

func TestSeparateKeysDoNotInterfere(t *testing.T) {
	config := Config{IPLimitPerMin: 2, UserLimitPerMin: 2, BurstMultiplier: 1}
	rl := newFallbackLimiter(t, config)

	for i := 0; i < 20; i++ {
		rl.AllowUser(context.Background(), "alice")
	}

	result, err := rl.AllowUser(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, result.Allowed, "exhausting alice's budget must not block bob")
}

func TestStatsReportFallback(t *testing.T) {
	rl := newFallbackLimiter(t, DefaultConfig())
	rl.AllowIP(context.Background(), "10.0.0.1")

	stats := rl.GetStats()
	assert.Equal(t, false, stats["redis_enabled"])
	assert.Equal(t, 1, stats["fallback_limiters"])
}
