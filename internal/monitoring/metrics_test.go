package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordAuthResult(t *testing.T) {
	m := NewMetrics()

	m.RecordAuthResult("statistical", true)
	m.RecordAuthResult("statistical", false)
	m.RecordAuthResult("voice", true)

	stats := m.GetStats()
	assert.Equal(t, int64(3), stats["auth_attempts"])
	assert.Equal(t, int64(2), stats["auth_accepts"])
	assert.Equal(t, int64(1), stats["auth_rejects"])

	counts := m.GetMethodCounts()
	assert.Equal(t, int64(2), counts["statistical"])
	assert.Equal(t, int64(1), counts["voice"])
}

func TestCacheHitRate(t *testing.T) {
	m := NewMetrics()

	m.IncrementCacheHit()
	m.IncrementCacheHit()
	m.IncrementCacheMiss()

	stats := m.GetStats()
	assert.InDelta(t, 66.66, stats["cache_hit_rate_percent"], 0.1)
}

func TestPercentileResponseTime(t *testing.T) {
	m := NewMetrics()

	for i := 1; i <= 100; i++ {
		m.RecordResponseTime(time.Duration(i) * time.Millisecond)
	}

	p50 := m.GetPercentileResponseTime(50)
	p99 := m.GetPercentileResponseTime(99)
	assert.True(t, p50 < p99, "p50 (%v) must be below p99 (%v)", p50, p99)
	assert.Equal(t, 100*time.Millisecond, m.GetPercentileResponseTime(100))
}

func TestPercentileEmpty(t *testing.T) {
	m := NewMetrics()
	assert.Equal(t, time.Duration(0), m.GetPercentileResponseTime(95))
}

func TestReset(t *testing.T) {
	m := NewMetrics()

	m.IncrementRequest()
	m.RecordAuthResult("voice", true)
	m.IncrementRateLimitIPBlock()
	m.Reset()

	stats := m.GetStats()
	assert.Equal(t, int64(0), stats["total_requests"])
	assert.Equal(t, int64(0), stats["auth_attempts"])
	assert.Empty(t, m.GetMethodCounts())
}
