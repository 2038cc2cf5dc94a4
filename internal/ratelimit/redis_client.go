package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ZanzyTHEbar/learning-profile/internal/resilience"
)

// RedisClient is the optional shared store behind the IP and submission
// limits. Without it the limiter keeps its buckets in process memory.
type RedisClient struct {
	client *redis.Client
	addr   string

	// unreachable holds the startup ping error of a configured backend.
	unreachable error
}

// PoolStats is the connection pool view reported by /v1/stats.
type PoolStats struct {
	Status     resilience.Status `json:"status"`
	Addr       string            `json:"addr,omitempty"`
	Hits       uint32            `json:"hits"`
	Misses     uint32            `json:"misses"`
	Timeouts   uint32            `json:"timeouts"`
	TotalConns uint32            `json:"total_conns"`
	IdleConns  uint32            `json:"idle_conns"`
	StaleConns uint32            `json:"stale_conns"`
}

// NewRedisClient connects to addr. An empty addr disables the backend. An
// unreachable server returns a degraded client together with the ping error
// so the caller can log it and carry on limiting in memory.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	if addr == "" {
		slog.Info("Redis address not configured, rate limits are per process")
		return &RedisClient{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  4 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		err = fmt.Errorf("redis ping %s failed: %w", addr, err)
		return &RedisClient{addr: addr, unreachable: err}, err
	}

	slog.Info("Redis rate limit backend connected", "addr", addr, "db", db)
	return &RedisClient{client: client, addr: addr}, nil
}

// GetClient returns the connected client, nil unless the status is ok.
func (r *RedisClient) GetClient() *redis.Client {
	if r == nil {
		return nil
	}
	return r.client
}

// IsEnabled reports whether limits are shared through Redis.
func (r *RedisClient) IsEnabled() bool {
	return r != nil && r.client != nil
}

// Status maps the backend onto the health vocabulary: disabled when no
// address is configured, degraded when the configured server could not be
// reached and limits fell back to memory.
func (r *RedisClient) Status() resilience.Status {
	switch {
	case r.IsEnabled():
		return resilience.StatusOK
	case r != nil && r.unreachable != nil:
		return resilience.StatusDegraded
	default:
		return resilience.StatusDisabled
	}
}

// HealthCheck returns the check to register for the backend. It is nil when
// the backend is disabled, which the registry reports as disabled. A backend
// lost at startup keeps failing for the life of the process, since the
// limiter never reconnects.
func (r *RedisClient) HealthCheck() resilience.HealthCheckFunc {
	switch r.Status() {
	case resilience.StatusOK:
		return func(ctx context.Context) error { return r.client.Ping(ctx).Err() }
	case resilience.StatusDegraded:
		err := r.unreachable
		return func(context.Context) error { return err }
	default:
		return nil
	}
}

// Register adds the backend to h as an optional component.
func (r *RedisClient) Register(h *resilience.HealthRegistry) {
	h.Register("redis", false, r.HealthCheck())
}

// Close closes the connection pool.
func (r *RedisClient) Close() error {
	if !r.IsEnabled() {
		return nil
	}
	return r.client.Close()
}

// PoolStats reports the pool counters. Only Status and Addr are set when
// the backend is not connected.
func (r *RedisClient) PoolStats() PoolStats {
	out := PoolStats{Status: r.Status()}
	if r != nil {
		out.Addr = r.addr
	}
	if !r.IsEnabled() {
		return out
	}

	stats := r.client.PoolStats()
	out.Hits = stats.Hits
	out.Misses = stats.Misses
	out.Timeouts = stats.Timeouts
	out.TotalConns = stats.TotalConns
	out.IdleConns = stats.IdleConns
	out.StaleConns = stats.StaleConns
	return out
}
