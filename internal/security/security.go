package security

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/learning-profile/internal/errors"
)

// Config holds security configuration
type Config struct {
	MaxIDLength    int           `json:"max_id_length"`
	MaxBodyBytes   int64         `json:"max_body_bytes"`
	RequestTimeout time.Duration `json:"request_timeout"`
	EnableHSTS     bool          `json:"enable_hsts"`
}

// DefaultConfig returns secure defaults
func DefaultConfig() Config {
	return Config{
		MaxIDLength:    64,
		MaxBodyBytes:   1 << 20,
		RequestTimeout: 30 * time.Second,
	}
}

// Middleware bundles the request hardening handlers.
type Middleware struct {
	config Config
}

// NewMiddleware creates a new security middleware instance
func NewMiddleware(config Config) *Middleware {
	def := DefaultConfig()
	if config.MaxIDLength <= 0 {
		config.MaxIDLength = def.MaxIDLength
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = def.MaxBodyBytes
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = def.RequestTimeout
	}
	return &Middleware{config: config}
}

// Identifiers: letters, digits and . _ : - separators, starting alphanumeric.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// ValidateID checks a child or respondent identifier.
func (m *Middleware) ValidateID(id string) error {
	switch {
	case id == "":
		return errors.New("identifier is required")
	case len(id) > m.config.MaxIDLength:
		return fmt.Errorf("identifier exceeds maximum length of %d characters", m.config.MaxIDLength)
	case strings.Contains(id, "\x00"):
		return errors.New("identifier contains invalid characters")
	case !utf8.ValidString(id):
		return errors.New("identifier contains invalid UTF-8 encoding")
	case strings.Contains(id, ".."):
		return errors.New("identifier contains consecutive dots")
	case !idPattern.MatchString(id):
		return errors.New("identifier contains invalid characters")
	}
	return nil
}

// ValidateParam rejects requests whose path parameter is not a valid identifier.
func (m *Middleware) ValidateParam(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.ValidateID(c.Param(name)); err != nil {
			apperrors.Abort(c, apperrors.NewValidationErrorWithMap(map[string]string{name: err.Error()}))
			return
		}
		c.Next()
	}
}

// SecurityHeaders adds security headers to responses
func (m *Middleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
	c.Header("Cache-Control", "no-store")

	// The swagger UI needs inline scripts and styles; nothing else does.
	if strings.HasPrefix(c.Request.URL.Path, "/swagger/") {
		c.Header("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
	} else {
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	}

	if m.config.EnableHSTS || c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	c.Next()
}

// ValidateContentType requires JSON on requests that carry a body.
func (m *Middleware) ValidateContentType(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		c.Next()
		return
	}
	if c.Request.ContentLength == 0 {
		c.Next()
		return
	}

	mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil || mediaType != "application/json" {
		builder := errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("Content-Type must be application/json")
		apperrors.Abort(c, apperrors.NewAppError(builder, apperrors.CategoryValidation, http.StatusUnsupportedMediaType))
		return
	}

	c.Next()
}

// LimitBody caps the request body; reads past the cap fail with
// *http.MaxBytesError.
func (m *Middleware) LimitBody(c *gin.Context) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, m.config.MaxBodyBytes)
	}
	c.Next()
}

// RequestTimeout enforces request timeout
func (m *Middleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), m.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(m.config.RequestTimeout.Seconds())))

	c.Next()
}

// Handlers returns the global chain in the order it should run.
func (m *Middleware) Handlers() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.SecurityHeaders,
		m.RequestTimeout,
		m.LimitBody,
		m.ValidateContentType,
	}
}
