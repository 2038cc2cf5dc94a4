package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompressedRouter(cm *CompressionMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(cm.Handler())
	r.GET("/big", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"payload": strings.Repeat("a", 4096)})
	})
	r.GET("/small", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/text", func(c *gin.Context) {
		c.Data(http.StatusOK, "image/png", []byte(strings.Repeat("b", 4096)))
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestCompressionMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		acceptEncoding string
		wantGzip       bool
	}{
		{"large json compressed", "/big", "gzip, deflate", true},
		{"client without gzip", "/big", "", false},
		{"small body left alone", "/small", "gzip", false},
		{"binary content type left alone", "/text", "gzip", false},
		{"no body", "/empty", "gzip", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newCompressedRouter(NewCompressionMiddleware(DefaultCompressionConfig()))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if !tt.wantGzip {
				assert.Empty(t, w.Header().Get("Content-Encoding"))
				return
			}

			assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
			assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))

			zr, err := gzip.NewReader(w.Body)
			require.NoError(t, err)
			body, err := io.ReadAll(zr)
			require.NoError(t, err)
			assert.Contains(t, string(body), `"payload":"aaaa`)
		})
	}
}

func TestCompressionMiddleware_Stats(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	r := newCompressedRouter(cm)

	for _, path := range []string{"/big", "/small"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	stats := cm.GetStats()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, int64(1), stats["compressed_requests"])
	assert.Greater(t, stats["total_bytes"].(int64), stats["compressed_bytes"].(int64))
	assert.Less(t, stats["compression_ratio"].(float64), 0.5)
}

func TestNewCompressionMiddleware_InvalidLevel(t *testing.T) {
	cm := NewCompressionMiddleware(CompressionConfig{MinSize: 1, CompressionLevel: 42, ContentTypes: []string{"application/json"}})
	assert.Equal(t, gzip.DefaultCompression, cm.config.CompressionLevel)

	r := newCompressedRouter(cm)
	req := httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}
