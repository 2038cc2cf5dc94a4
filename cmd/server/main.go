package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ZanzyTHEbar/learning-profile/internal/api"
	"github.com/ZanzyTHEbar/learning-profile/internal/auth"
	"github.com/ZanzyTHEbar/learning-profile/internal/cache"
	"github.com/ZanzyTHEbar/learning-profile/internal/config"
	"github.com/ZanzyTHEbar/learning-profile/internal/database"
	"github.com/ZanzyTHEbar/learning-profile/internal/monitoring"
	"github.com/ZanzyTHEbar/learning-profile/internal/privacy"
	"github.com/ZanzyTHEbar/learning-profile/internal/profile"
	"github.com/ZanzyTHEbar/learning-profile/internal/ratelimit"
	"github.com/ZanzyTHEbar/learning-profile/internal/resilience"
	"github.com/ZanzyTHEbar/learning-profile/internal/security"
)

const retentionInterval = 24 * time.Hour

// app is the wired server and everything that must be closed with it.
type app struct {
	router  *gin.Engine
	privacy *privacy.PrivacyService
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Error during shutdown", "error", err)
		}
	}
}

// newApp opens storage and wires every component from cfg. A Redis
// address that cannot be reached degrades to in-memory rate limiting.
func newApp(ctx context.Context, cfg *config.Config, logger *monitoring.Logger, reg *prometheus.Registry) (*app, error) {
	a := &app{}

	db, err := database.NewDB(ctx, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	repo := database.NewRepository(db)

	metrics := monitoring.NewMetrics()

	profileCache := cache.NewCache(cfg.CacheTTL, time.Minute)
	profileCache.SetMetrics(metrics)
	a.closers = append(a.closers, profileCache.Close)

	svc, err := profile.NewService(repo, profileCache, cfg.Weighting, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	svc.SetCounters(metrics)

	observer, err := monitoring.NewPrometheusObserver("learning_profile", reg)
	if err != nil {
		a.Close()
		return nil, err
	}
	svc.SetObserver(observer)

	redisClient, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Warn("Redis unreachable, rate limiting in memory", "addr", cfg.Redis.Addr, "error", err)
	}
	a.closers = append(a.closers, redisClient.Close)

	limitCfg := ratelimit.DefaultConfig()
	limitCfg.IPPerMinute = cfg.IPRateLimitPerMin
	limitCfg.SubmissionsPerMinute = cfg.RateLimitPerMin
	limiter := ratelimit.NewRateLimiter(redisClient, limitCfg, metrics)
	a.closers = append(a.closers, limiter.Close)

	issuer, err := auth.NewIssuer(cfg.JWTSecret)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.UsesDefaultSecret() {
		slog.Warn("Invitations are signed with the default secret; set LP_JWT_SECRET")
	}

	health := resilience.NewHealthRegistry(5 * time.Second)
	health.Register("database", true, func(ctx context.Context) error { return db.PingContext(ctx) })
	redisClient.Register(health)

	a.privacy = privacy.NewService(svc, cfg.RetentionDays, cfg.CacheTTL, limiter)

	secCfg := security.DefaultConfig()
	secCfg.RequestTimeout = cfg.RequestTimeout

	a.router = api.NewRouter(api.Dependencies{
		Service:           svc,
		Privacy:           a.privacy,
		Limiter:           limiter,
		Issuer:            issuer,
		Health:            health,
		Store:             repo,
		DB:                db,
		Cache:             profileCache,
		Metrics:           metrics,
		Logger:            logger,
		Gatherer:          reg,
		Security:          secCfg,
		CORSOrigins:       cfg.CORSOrigins,
		RequireInvitation: cfg.RequireInvitation,
		InvitationTTL:     cfg.InvitationTTL,
		AdminToken:        cfg.AdminToken,
	})
	return a, nil
}

func main() {
	cfg, err := config.Load(os.Getenv("LP_CONFIG"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := monitoring.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger.Logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(ctx, cfg, logger, reg)
	if err != nil {
		slog.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Scheduled retention purge (runs daily)
	go a.privacy.RunRetention(ctx, retentionInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port, "data_dir", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}
