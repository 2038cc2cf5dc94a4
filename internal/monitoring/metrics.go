package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxResponseSamples = 1000

// Metrics holds in-process counters reported by /stats.
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	CacheHits           int64
	CacheMisses         int64
	AssessmentsScored   int64
	ProfilesBuilt       int64
	ReviewsFlagged      int64
	AverageResponseTime int64 // exponential moving average, nanoseconds
	StartTime           time.Time

	responseTimes      []time.Duration
	responseTimesMutex sync.RWMutex

	requestCountByStatus map[int]int64
	statusMutex          sync.RWMutex

	RateLimitBlocks        int64
	RateLimitRedisErrors   int64
	RateLimitFallbackCount int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		responseTimes:        make([]time.Duration, 0, maxResponseSamples),
		requestCountByStatus: make(map[int]int64),
	}
}

func (m *Metrics) IncrementRequest()        { atomic.AddInt64(&m.RequestCount, 1) }
func (m *Metrics) IncrementError()          { atomic.AddInt64(&m.ErrorCount, 1) }
func (m *Metrics) IncrementCacheHit()       { atomic.AddInt64(&m.CacheHits, 1) }
func (m *Metrics) IncrementCacheMiss()      { atomic.AddInt64(&m.CacheMisses, 1) }
func (m *Metrics) IncrementScored()         { atomic.AddInt64(&m.AssessmentsScored, 1) }
func (m *Metrics) IncrementProfileBuilt()   { atomic.AddInt64(&m.ProfilesBuilt, 1) }
func (m *Metrics) IncrementReviewFlagged()  { atomic.AddInt64(&m.ReviewsFlagged, 1) }
func (m *Metrics) IncrementRateLimitBlock() { atomic.AddInt64(&m.RateLimitBlocks, 1) }

// IncrementRateLimitRedisError counts Redis failures that forced the in-memory limiter.
func (m *Metrics) IncrementRateLimitRedisError() { atomic.AddInt64(&m.RateLimitRedisErrors, 1) }

// IncrementRateLimitFallback counts checks served by the in-memory limiter.
func (m *Metrics) IncrementRateLimitFallback() { atomic.AddInt64(&m.RateLimitFallbackCount, 1) }

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	for {
		current := atomic.LoadInt64(&m.AverageResponseTime)
		next := duration.Nanoseconds()
		if current != 0 {
			next = (current + next) / 2
		}
		if atomic.CompareAndSwapInt64(&m.AverageResponseTime, current, next) {
			break
		}
	}

	m.responseTimesMutex.Lock()
	m.responseTimes = append(m.responseTimes, duration)
	if len(m.responseTimes) > maxResponseSamples {
		m.responseTimes = m.responseTimes[1:]
	}
	m.responseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.statusMutex.Lock()
	defer m.statusMutex.Unlock()
	m.requestCountByStatus[statusCode]++
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.responseTimesMutex.RLock()
	times := make([]time.Duration, len(m.responseTimes))
	copy(times, m.responseTimes)
	m.responseTimesMutex.RUnlock()

	if len(times) == 0 {
		return 0
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}
	if index < 0 {
		index = 0
	}
	return times[index]
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.statusMutex.RLock()
	defer m.statusMutex.RUnlock()

	distribution := make(map[int]int64, len(m.requestCountByStatus))
	for code, count := range m.requestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	cacheHitRate := float64(0)
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"start_time":             m.StartTime.Format(time.RFC3339),
		"total_requests":         requests,
		"error_count":            errors,
		"error_rate_percent":     errorRate,
		"cache_hits":             cacheHits,
		"cache_misses":           cacheMisses,
		"cache_hit_rate_percent": cacheHitRate,
		"assessments_scored":     atomic.LoadInt64(&m.AssessmentsScored),
		"profiles_built":         atomic.LoadInt64(&m.ProfilesBuilt),
		"reviews_flagged":        atomic.LoadInt64(&m.ReviewsFlagged),
		"avg_response_time_ms":   float64(atomic.LoadInt64(&m.AverageResponseTime)) / 1e6,

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1e6,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1e6,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1e6,
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"rate_limit":               m.GetRateLimitStats(),
	}
}

// GetRateLimitStats returns rate limiting statistics
func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	return map[string]interface{}{
		"blocks":         atomic.LoadInt64(&m.RateLimitBlocks),
		"redis_errors":   atomic.LoadInt64(&m.RateLimitRedisErrors),
		"fallback_count": atomic.LoadInt64(&m.RateLimitFallbackCount),
	}
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	for _, counter := range []*int64{
		&m.RequestCount, &m.ErrorCount, &m.CacheHits, &m.CacheMisses,
		&m.AssessmentsScored, &m.ProfilesBuilt, &m.ReviewsFlagged, &m.AverageResponseTime,
		&m.RateLimitBlocks, &m.RateLimitRedisErrors, &m.RateLimitFallbackCount,
	} {
		atomic.StoreInt64(counter, 0)
	}

	m.responseTimesMutex.Lock()
	m.responseTimes = m.responseTimes[:0]
	m.responseTimesMutex.Unlock()

	m.statusMutex.Lock()
	m.requestCountByStatus = make(map[int]int64)
	m.statusMutex.Unlock()

	m.StartTime = time.Now()
}
