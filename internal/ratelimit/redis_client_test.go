package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledRedisClient(t *testing.T) {
	rc, err := NewRedisClient("", "", 0)
	require.NoError(t, err, "missing Redis must not be a startup failure")

	assert.False(t, rc.IsEnabled())
	assert.Error(t, rc.HealthCheck(context.Background()))
	assert.NoError(t, rc.Close())

	stats := rc.GetPoolStats()
	assert.Equal(t, false, stats["enabled"])
}
