package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/learning-profile/internal/monitoring"
)

// Config holds rate limiter configuration
type Config struct {
	IPPerMinute          int           // all API requests from one client IP
	SubmissionsPerMinute int           // assessment submissions per child and respondent
	BurstMultiplier      int           // in-memory bucket size as a multiple of the limit
	CleanupInterval      time.Duration // idle in-memory buckets are dropped after this
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPPerMinute:          120,
		SubmissionsPerMinute: 10,
		BurstMultiplier:      1,
		CleanupInterval:      time.Hour,
	}
}

// Rate is a number of events allowed per period.
type Rate struct {
	Limit  int
	Period time.Duration
}

// PerMinute returns a Rate of n events per minute.
func PerMinute(n int) Rate { return Rate{Limit: n, Period: time.Minute} }

func (r Rate) validate() error {
	if r.Limit <= 0 || r.Period <= 0 {
		return fmt.Errorf("invalid rate %d per %s", r.Limit, r.Period)
	}
	return nil
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter checks limits in Redis when available and falls back to
// per-key token buckets in memory.
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics

	fallback      map[string]*bucket
	fallbackMutex sync.Mutex

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewRateLimiter creates a limiter. metrics may be nil.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	if config.BurstMultiplier < 1 {
		config.BurstMultiplier = 1
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Hour
	}

	rl := &RateLimiter{
		redisClient: redisClient,
		config:      config,
		metrics:     metrics,
		fallback:    make(map[string]*bucket),
		now:         time.Now,
		stop:        make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupLoop()

	return rl
}

// Config returns the limiter configuration.
func (rl *RateLimiter) Config() Config { return rl.config }

// Allow consumes one event for key under r.
func (rl *RateLimiter) Allow(ctx context.Context, key string, r Rate) (*Result, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	if rl.redisLimiter != nil && rl.redisClient.IsEnabled() {
		result, err := rl.allowRedis(ctx, key, r)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitRedisError()
		}
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, r), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, r Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   r.Limit,
		Burst:  r.Limit,
		Period: r.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    rl.now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}, nil
}

func (rl *RateLimiter) allowFallback(key string, r Rate) *Result {
	now := rl.now()
	interval := r.Period / time.Duration(r.Limit)

	rl.fallbackMutex.Lock()
	b, exists := rl.fallback[key]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(interval), r.Limit*rl.config.BurstMultiplier)}
		rl.fallback[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	rl.fallbackMutex.Unlock()

	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	// Time until the bucket is full again.
	missing := float64(r.Limit*rl.config.BurstMultiplier) - tokens
	result := &Result{
		Allowed:   allowed,
		Limit:     r.Limit,
		Remaining: remaining,
		ResetAt:   now.Add(time.Duration(missing * float64(interval))),
	}
	if !allowed {
		result.RetryAfter = time.Duration((1 - tokens) * float64(interval))
		if result.RetryAfter <= 0 {
			result.RetryAfter = interval
		}
	}
	return result
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := rl.evictIdle(); n > 0 {
				slog.Debug("Evicted idle fallback rate limiters", "count", n)
			}
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle() int {
	cutoff := rl.now().Add(-rl.config.CleanupInterval)

	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	evicted := 0
	for key, b := range rl.fallback {
		if b.lastSeen.Before(cutoff) {
			delete(rl.fallback, key)
			evicted++
		}
	}
	return evicted
}

func (rl *RateLimiter) deleteFallbackPrefix(prefix string) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	deleted := 0
	for key := range rl.fallback {
		if strings.HasPrefix(key, prefix) {
			delete(rl.fallback, key)
			deleted++
		}
	}
	return deleted
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() error {
	rl.once.Do(func() { close(rl.stop) })
	return nil
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallback)
	rl.fallbackMutex.Unlock()

	return map[string]interface{}{
		"redis":                  rl.redisClient.PoolStats(),
		"fallback_limiters":      fallbackCount,
		"ip_per_minute":          rl.config.IPPerMinute,
		"submissions_per_minute": rl.config.SubmissionsPerMinute,
	}
}
