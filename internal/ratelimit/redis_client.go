package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connection settings for the shared limiter window. Timeouts stay short so
// a slow Redis degrades a request to the in-memory path instead of stalling
// the verification itself.
const (
	redisDialTimeout  = 5 * time.Second
	redisOpTimeout    = 3 * time.Second
	redisPoolSize     = 10
	redisMinIdleConns = 2
)

// RedisClient holds the shared-window Redis connection behind an enabled
// flag. A disabled client is valid; every caller must tolerate it.
type RedisClient struct {
	client  *redis.Client
	enabled bool
	addr    string
}

// NewRedisClient connects to Redis for distributed rate limiting. An empty
// addr, or a failed initial ping, yields a disabled client and the limiter
// runs per-process.
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	if addr == "" {
		slog.Warn("REDIS_ADDR not set, verification throttling is per-process only")
		return &RedisClient{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisOpTimeout,
		WriteTimeout: redisOpTimeout,
		PoolSize:     redisPoolSize,
		MinIdleConns: redisMinIdleConns,
		PoolTimeout:  redisDialTimeout - time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Redis unreachable, verification throttling is per-process only",
			"addr", addr, "error", err)
		return &RedisClient{addr: addr}, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("Redis connected for rate limiting", "addr", addr, "db", db)

	return &RedisClient{client: client, enabled: true, addr: addr}, nil
}

// GetClient returns the underlying client for the sliding-window limiter.
// Nil when disabled.
func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}

// IsEnabled reports whether the shared window is available.
func (r *RedisClient) IsEnabled() bool {
	return r.enabled
}

// HealthCheck pings Redis. Reported by /health so operators can tell a
// deliberate fallback from an outage.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if !r.enabled {
		return fmt.Errorf("redis is disabled")
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool. Safe on a disabled client.
func (r *RedisClient) Close() error {
	if !r.enabled || r.client == nil {
		return nil
	}
	slog.Info("Closing Redis connection", "addr", r.addr)
	return r.client.Close()
}

// GetPoolStats returns connection pool statistics for the diagnostics
// endpoints.
func (r *RedisClient) GetPoolStats() map[string]interface{} {
	if !r.enabled || r.client == nil {
		return map[string]interface{}{"enabled": false}
	}

	stats := r.client.PoolStats()
	return map[string]interface{}{
		"enabled":     true,
		"addr":        r.addr,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}
