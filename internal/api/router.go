package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quoteajob/quoteajob/internal/api/handlers"
	"github.com/quoteajob/quoteajob/internal/api/middleware"
	"github.com/quoteajob/quoteajob/internal/cache"
	"github.com/quoteajob/quoteajob/internal/config"
	"github.com/quoteajob/quoteajob/internal/logger"
	"github.com/quoteajob/quoteajob/internal/services"
)

// Services are the application services behind the public API.
type Services struct {
	Users         services.IUserService
	Jobs          services.IJobService
	Quotes        services.IQuoteService
	Profiles      services.IProfileService
	Subscriptions services.ISubscriptionService
	Admin         services.IAdminService
}

// SetupRouter configures and returns the main Gin engine. ctx bounds the rate limiter's
// background cleanup.
func SetupRouter(ctx context.Context, cfg *config.Config, svc Services, log *zap.Logger) *gin.Engine {
	r := gin.New()

	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, middleware.RateLimitSettings{
		SoftRefillRate: cfg.RateLimitSoftRefillRate,
		SoftBucketSize: cfg.RateLimitSoftBucketSize,
		HardRefillRate: cfg.RateLimitHardRefillRate,
		HardBucketSize: cfg.RateLimitHardBucketSize,
		JwtSecret:      cfg.JwtSecret,
	}, log)

	// Apply global middleware first (order matters)
	r.Use(logger.GinMiddleware(log), gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigin))
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(svc.Users)
	jobHandler := handlers.NewJobHandler(svc.Jobs)
	quoteHandler := handlers.NewQuoteHandler(svc.Quotes)
	profileHandler := handlers.NewProfileHandler(svc.Profiles)
	webhookHandler := handlers.NewWebhookHandler(svc.Subscriptions)
	adminHandler := handlers.NewAdminHandler(svc.Admin)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		v1.POST("/auth/signup", authHandler.Signup)
		v1.POST("/auth/login", authHandler.Login)
		v1.GET("/auth/verify", authHandler.VerifyEmail)

		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/:id", jobHandler.GetJob)

		// Signature verified inside; must not require a session.
		v1.POST("/stripe/webhook", webhookHandler.StripeWebhook)

		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.POST("/jobs", jobHandler.CreateJob)
			authRequired.PUT("/jobs/:id", jobHandler.UpdateJob)
			authRequired.DELETE("/jobs/:id", jobHandler.DeleteJob)

			authRequired.GET("/quotes", quoteHandler.ListQuotes)
			authRequired.POST("/quotes", quoteHandler.SubmitQuote)

			authRequired.GET("/profile", profileHandler.GetProfile)
			authRequired.PUT("/profile", profileHandler.UpdateProfile)
			authRequired.POST("/profile/insurance", profileHandler.RequestInsuranceUpload)
		}

		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.GET("/stats", adminHandler.Stats)
			adminRequired.GET("/jobs", adminHandler.ListJobs)
			adminRequired.POST("/jobs/:id/recompute", adminHandler.RecomputeJob)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine: health, metrics and the
// operations API. rdb may be nil.
func SetupServiceRouter(rdb *redis.Client, shutdownChan chan<- struct{}, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinMiddleware(log), gin.Recovery())

	serviceApi := handlers.NewServiceApiHandler(rdb, shutdownChan, log)

	r.GET("/health", func(c *gin.Context) {
		if rdb != nil {
			if err := cache.Check(c.Request.Context(), rdb); err != nil {
				log.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/api", serviceApi.HandleRequest)
	return r
}
