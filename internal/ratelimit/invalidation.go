package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// redis_rate stores every limiter key under this prefix.
const redisRatePrefix = "rate:"

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// InvalidateChild drops every submission counter kept for a child. Called
// when the child's data is erased so no per-child state outlives it.
func (rl *RateLimiter) InvalidateChild(ctx context.Context, childID string) (int, error) {
	prefix := submitKey(childID, "")
	deleted := rl.deleteFallbackPrefix(prefix)

	if !rl.redisClient.IsEnabled() {
		slog.Debug("Invalidated child rate limits (in-memory)", "count", deleted)
		return deleted, nil
	}

	n, err := rl.deleteByPattern(ctx, redisRatePrefix+globEscaper.Replace(prefix)+"*")
	return deleted + n, err
}

// deleteByPattern deletes all Redis keys matching a pattern
func (rl *RateLimiter) deleteByPattern(ctx context.Context, pattern string) (int, error) {
	client := rl.redisClient.GetClient()

	var (
		cursor       uint64
		deletedCount int
	)
	for {
		keys, nextCursor, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deletedCount, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			deleted, err := client.Del(ctx, keys...).Result()
			if err != nil {
				return deletedCount, fmt.Errorf("failed to delete keys: %w", err)
			}
			deletedCount += int(deleted)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	slog.Info("Deleted rate limit keys by pattern", "pattern", pattern, "count", deletedCount)
	return deletedCount, nil
}
