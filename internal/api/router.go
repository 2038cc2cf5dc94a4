// Package api exposes the profile service over HTTP.
//
//	@title			Learning Profile API
//	@version		1.0
//	@description	Scores child learning assessments and consolidates them into profiles.
//	@BasePath		/
package api

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ZanzyTHEbar/learning-profile/internal/api/docs"
	"github.com/ZanzyTHEbar/learning-profile/internal/auth"
	"github.com/ZanzyTHEbar/learning-profile/internal/cache"
	"github.com/ZanzyTHEbar/learning-profile/internal/database"
	apperrors "github.com/ZanzyTHEbar/learning-profile/internal/errors"
	"github.com/ZanzyTHEbar/learning-profile/internal/middleware"
	"github.com/ZanzyTHEbar/learning-profile/internal/monitoring"
	"github.com/ZanzyTHEbar/learning-profile/internal/privacy"
	"github.com/ZanzyTHEbar/learning-profile/internal/profile"
	"github.com/ZanzyTHEbar/learning-profile/internal/ratelimit"
	"github.com/ZanzyTHEbar/learning-profile/internal/resilience"
	"github.com/ZanzyTHEbar/learning-profile/internal/security"
)

// Version is reported by /health.
const Version = "1.0.0"

// StatsSource reports store counts for /stats.
type StatsSource interface {
	Stats(ctx context.Context) (database.StoreStats, error)
}

// Dependencies is everything the router serves from. Service, Privacy,
// Limiter, Issuer and Health are required.
type Dependencies struct {
	Service *profile.Service
	Privacy *privacy.PrivacyService
	Limiter *ratelimit.RateLimiter
	Issuer  *auth.Issuer
	Health  *resilience.HealthRegistry

	Store   StatsSource
	DB      *database.DB
	Cache   *cache.Cache
	Metrics *monitoring.Metrics
	Logger  *monitoring.Logger

	// Gatherer backs /metrics; the default registry when nil.
	Gatherer prometheus.Gatherer

	Security          security.Config
	Compression       middleware.CompressionConfig
	CORSOrigins       []string
	RequireInvitation bool
	InvitationTTL     time.Duration

	// AdminToken, when set, must accompany POST /v1/invitations.
	AdminToken string
}

// NewRouter builds the gin engine with the full middleware chain.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = monitoring.NopLogger()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.InvitationTTL <= 0 {
		deps.InvitationTTL = 7 * 24 * time.Hour
	}

	if deps.Compression.MinSize <= 0 {
		deps.Compression = middleware.DefaultCompressionConfig()
	}

	h := &Handler{deps: deps, compression: middleware.NewCompressionMiddleware(deps.Compression)}
	sec := security.NewMiddleware(deps.Security)

	r := gin.New()
	r.Use(monitoring.MonitoringMiddleware(deps.Metrics, deps.Logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(deps.Logger))
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())
	r.Use(corsMiddleware(deps.CORSOrigins))
	r.Use(h.compression.Handler())
	r.Use(sec.Handlers()...)

	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/v1", deps.Limiter.IPRateLimitMiddleware())
	{
		v1.GET("/stats", h.stats)
		v1.GET("/privacy", h.privacyInfo)
		v1.POST("/score", h.score)
		v1.POST("/consolidate", h.consolidate)
		v1.POST("/invitations", auth.AdminMiddleware(deps.AdminToken), h.createInvitation)

		child := v1.Group("/children/:childID", sec.ValidateParam("childID"))
		child.POST("/assessments",
			auth.Middleware(deps.Issuer, deps.RequireInvitation),
			deps.Limiter.SubmissionRateLimitMiddleware(submitter),
			h.submitAssessment,
		)
		child.GET("/profile", h.getProfile)
		child.GET("/profile/latest", h.getLatestSnapshot)
		child.DELETE("", h.deleteChild)
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", auth.AdminHeader}
	cfg.ExposeHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"}
	cfg.MaxAge = 12 * time.Hour

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// submitter counts submissions against the invited respondent when there
// is one, otherwise against the client address.
func submitter(c *gin.Context) string {
	if inv, ok := auth.FromContext(c); ok && inv.RespondentID != "" {
		return "respondent:" + inv.RespondentID
	}
	return "ip:" + c.ClientIP()
}
