package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		category ErrorCategory
		status   int
		code     string
	}{
		{"validation", NewValidationError("bad quiz type", "quizType"), CategoryValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"validation map", NewValidationErrorWithMap(map[string]string{"childId": "required"}), CategoryValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", NewNotFoundError("child", "c-1"), CategoryNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", NewUnauthorizedError("invalid invitation", nil), CategoryUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"rate limit", NewRateLimitError(30 * time.Second), CategoryRateLimit, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{"timeout", NewTimeoutError("slow", context.DeadlineExceeded), CategoryTimeout, http.StatusGatewayTimeout, "TIMEOUT_ERROR"},
		{"internal", NewInternalError("db down", fmt.Errorf("boom")), CategoryInternal, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"configuration", NewConfigurationError("missing secret", nil), CategoryConfiguration, http.StatusInternalServerError, "CONFIGURATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.code, tt.err.Code())
			assert.Contains(t, tt.err.Error(), "["+tt.code+"]")
			assert.True(t, IsCategory(tt.err, tt.category))
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("test validation error")
	assert.Equal(t, "[VALIDATION_ERROR] test validation error", err.Error())
}

func TestToAppError(t *testing.T) {
	assert.Nil(t, ToAppError(nil))

	original := NewNotFoundError("profile", "c-9")
	assert.Same(t, original, ToAppError(original))

	wrapped := WrapError(original, "loading %s", "c-9")
	assert.Same(t, original, ToAppError(wrapped))
	assert.True(t, IsCategory(wrapped, CategoryNotFound))

	assert.Equal(t, CategoryTimeout, ToAppError(context.Canceled).Category)
	assert.Equal(t, CategoryTimeout, ToAppError(fmt.Errorf("query: %w", context.DeadlineExceeded)).Category)
	assert.Equal(t, CategoryInternal, ToAppError(fmt.Errorf("disk full")).Category)
}

func TestInternalErrorHidesCause(t *testing.T) {
	err := NewInternalError("sqlite: database is locked", fmt.Errorf("locked"))
	body := err.Response()

	assert.Equal(t, "Internal server error", body["error"])
	assert.ErrorContains(t, err.Unwrap(), "locked")
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	base := fmt.Errorf("base")
	wrapped := WrapError(base, "saving assessment %d", 3)
	assert.EqualError(t, wrapped, "saving assessment 3: base")
	assert.ErrorIs(t, wrapped, base)
}

func TestErrorHandlerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(NewNotFoundError("child", "abc"))
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("unexpected"))
	})

	tests := []struct {
		path     string
		status   int
		category string
	}{
		{"/missing", http.StatusNotFound, "not_found"},
		{"/plain", http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.category, body["category"])
		})
	}
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RecoveryHandler())
	r.GET("/panic", func(c *gin.Context) {
		panic("scoring exploded")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestAbort(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/limited", func(c *gin.Context) {
		Abort(c, NewRateLimitError(time.Minute))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Contains(t, w.Body.String(), "retry_after")
}
