// Package middleware holds transport-level gin middleware shared by the API.
package middleware

import (
	"compress/gzip"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum first write to compress (bytes)
	CompressionLevel int      // Gzip compression level (1-9, 9 is best compression)
	ContentTypes     []string // Content types to compress
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
			"text/css",
			"application/javascript",
		},
	}
}

// CompressionMiddleware gzips responses for clients that accept it.
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware. An invalid
// level falls back to the gzip default.
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	if config.CompressionLevel < gzip.HuffmanOnly || config.CompressionLevel > gzip.BestCompression {
		config.CompressionLevel = gzip.DefaultCompression
	}
	cm := &CompressionMiddleware{
		config: config,
		stats:  &CompressionStats{},
	}
	cm.pool.New = func() interface{} {
		gz, _ := gzip.NewWriterLevel(nil, config.CompressionLevel)
		return gz
	}
	return cm
}

// Handler returns the gin middleware.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") || c.Request.Method == "HEAD" {
			c.Next()
			return
		}

		w := &gzipResponseWriter{ResponseWriter: c.Writer, cm: cm}
		c.Writer = w
		defer w.finish()

		c.Writer.Header().Add("Vary", "Accept-Encoding")
		c.Next()
	}
}

func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.HasPrefix(contentType, ct) {
			return true
		}
	}
	return false
}

// gzipResponseWriter decides on the first write whether the body is
// compressed; headers are still unsent at that point.
type gzipResponseWriter struct {
	gin.ResponseWriter
	cm       *CompressionMiddleware
	gz       *gzip.Writer
	decided  bool
	original int64
	counter  countingWriter
}

type countingWriter struct {
	gin.ResponseWriter
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.ResponseWriter.Write(p)
	cw.n += int64(n)
	return n, err
}

func (w *gzipResponseWriter) decide(first []byte) {
	w.decided = true
	h := w.Header()
	if h.Get("Content-Encoding") != "" || len(first) < w.cm.config.MinSize || !w.cm.shouldCompress(h.Get("Content-Type")) {
		return
	}
	h.Set("Content-Encoding", "gzip")
	h.Del("Content-Length")

	w.counter = countingWriter{ResponseWriter: w.ResponseWriter}
	w.gz = w.cm.pool.Get().(*gzip.Writer)
	w.gz.Reset(&w.counter)
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	if !w.decided {
		w.decide(data)
	}
	w.original += int64(len(data))
	if w.gz == nil {
		return w.ResponseWriter.Write(data)
	}
	return w.gz.Write(data)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Size reports the uncompressed bytes handlers wrote.
func (w *gzipResponseWriter) Size() int {
	if w.gz == nil {
		return w.ResponseWriter.Size()
	}
	return int(w.original)
}

func (w *gzipResponseWriter) Flush() {
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *gzipResponseWriter) finish() {
	if w.gz == nil {
		if w.decided {
			w.cm.stats.RecordRequest(w.original, w.original, false)
		}
		return
	}
	_ = w.gz.Close()
	w.gz.Reset(nil)
	w.cm.pool.Put(w.gz)
	w.cm.stats.RecordRequest(w.original, w.counter.n, true)
	w.gz = nil
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
}

// RecordRequest records a request's compression stats
func (cs *CompressionStats) RecordRequest(originalSize, writtenSize int64, compressed bool) {
	atomic.AddInt64(&cs.TotalRequests, 1)
	if compressed {
		atomic.AddInt64(&cs.CompressedRequests, 1)
		atomic.AddInt64(&cs.TotalBytes, originalSize)
		atomic.AddInt64(&cs.CompressedBytes, writtenSize)
	}
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	total := atomic.LoadInt64(&cs.TotalBytes)
	compressed := atomic.LoadInt64(&cs.CompressedBytes)

	ratio := float64(0)
	if total > 0 {
		ratio = float64(compressed) / float64(total)
	}
	return map[string]interface{}{
		"total_requests":      atomic.LoadInt64(&cs.TotalRequests),
		"compressed_requests": atomic.LoadInt64(&cs.CompressedRequests),
		"total_bytes":         total,
		"compressed_bytes":    compressed,
		"compression_ratio":   ratio,
	}
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.GetStats()
}
