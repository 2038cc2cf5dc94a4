package ratelimit

import (
	"log/slog"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/learning-profile/internal/errors"
)

const (
	ipKeyPrefix     = "ratelimit:ip:"
	submitKeyPrefix = "ratelimit:submit:"
)

// IdentifyFunc names the caller a submission limit is counted against.
type IdentifyFunc func(c *gin.Context) string

// submitKey escapes the child id so no escaped id contains ':' and one
// child's key prefix never matches another child's keys.
func submitKey(childID, caller string) string {
	return submitKeyPrefix + url.QueryEscape(childID) + ":" + caller
}

// IPRateLimitMiddleware limits every request per client IP.
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return rl.middleware(PerMinute(rl.config.IPPerMinute), func(c *gin.Context) string {
		return ipKeyPrefix + c.ClientIP()
	})
}

// SubmissionRateLimitMiddleware limits submissions per child and caller.
// identify defaults to the client IP.
func (rl *RateLimiter) SubmissionRateLimitMiddleware(identify IdentifyFunc) gin.HandlerFunc {
	if identify == nil {
		identify = func(c *gin.Context) string { return c.ClientIP() }
	}
	return rl.middleware(PerMinute(rl.config.SubmissionsPerMinute), func(c *gin.Context) string {
		return submitKey(c.Param("childID"), identify(c))
	})
}

func (rl *RateLimiter) middleware(r Rate, keyFor func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFor(c)

		result, err := rl.Allow(c.Request.Context(), key, r)
		if err != nil {
			// Never block on a limiter failure.
			slog.Error("Rate limit check failed", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitBlock()
			}
			seconds := int(result.RetryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			apperrors.Abort(c, apperrors.NewRateLimitError(result.RetryAfter))
			return
		}

		c.Next()
	}
}
