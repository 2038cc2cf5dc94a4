package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

var startTime = time.Now()

// Logger provides structured logging with domain helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout at the given level
// ("debug", "info", "warn", "error"; anything else means info).
func NewLogger(level string) *Logger {
	return NewLoggerWithWriter(os.Stdout, ParseLevel(level))
}

// NewLoggerWithWriter creates a JSON logger writing to w.
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return NewLoggerWithWriter(io.Discard, slog.LevelError)
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(method, path, ip, userAgent string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// ScoringLogger logs one scored submission.
func (l *Logger) ScoringLogger(quizType, ageGroup string, answered int, personality string, duration time.Duration) {
	l.Info("Assessment Scored",
		"quiz_type", quizType,
		"age_group", ageGroup,
		"answered", answered,
		"personality", personality,
		"duration_us", duration.Microseconds(),
	)
}

// ConsolidationLogger logs one consolidation with its agreement outcome.
func (l *Logger) ConsolidationLogger(sources int, confidence float64, agreement string, requiresReview bool, duration time.Duration) {
	level := slog.LevelInfo
	if requiresReview {
		level = slog.LevelWarn
	}
	l.Log(context.Background(), level, "Profile Consolidated",
		"sources", sources,
		"confidence", confidence,
		"agreement", agreement,
		"requires_review", requiresReview,
		"duration_us", duration.Microseconds(),
	)
}

// APIErrorLogger logs API errors with context
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		caller = file + ":" + strconv.Itoa(line)
	}

	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"caller", caller,
	)
}

// CacheLogger logs cache operations
func (l *Logger) CacheLogger(operation, key string, hit bool, itemCount int) {
	l.Debug("Cache Operation",
		"operation", operation,
		"key", shorten(key),
		"hit", hit,
		"cache_size", itemCount,
	)
}

// SystemLogger logs system-level events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

// SecurityLogger logs security-related events
func (l *Logger) SecurityLogger(event, ip, userAgent string, details map[string]interface{}) {
	attrs := []any{
		"event", event,
		"ip", ip,
		"user_agent", userAgent,
	}
	for key, value := range details {
		attrs = append(attrs, key, value)
	}

	l.Warn("Security Event", attrs...)
}

// PerformanceLogger logs performance metrics
func (l *Logger) PerformanceLogger(metric string, value float64, unit string) {
	l.Info("Performance Metric",
		"metric", metric,
		"value", value,
		"unit", unit,
	)
}

// shorten keeps identifiers recognisable in logs without printing them whole.
func shorten(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12] + "..."
}
