package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTTL         = 30 * time.Minute
)

// RateLimitSettings are token bucket sizes and refill rates (tokens per second).
// JwtSecret verifies the session tokens that exempt a request from the soft bucket.
type RateLimitSettings struct {
	SoftRefillRate int
	SoftBucketSize int
	HardRefillRate int
	HardBucketSize int
	JwtSecret      string
}

// clientLimiter stores rate limiters for a specific client.
type clientLimiter struct {
	softLimiter *rate.Limiter
	hardLimiter *rate.Limiter
	lastSeen    time.Time
}

// RateLimiterMiddleware limits requests per client IP. Every request draws from the hard
// bucket. Requests without a valid session token also draw from the smaller soft bucket.
type RateLimiterMiddleware struct {
	clients  map[string]*clientLimiter
	mu       sync.Mutex
	settings RateLimitSettings
	logger   *zap.Logger
	now      func() time.Time
}

// NewRateLimiterMiddleware creates a new RateLimiterMiddleware. Idle client entries are
// evicted until ctx is done.
func NewRateLimiterMiddleware(ctx context.Context, settings RateLimitSettings, logger *zap.Logger) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients:  make(map[string]*clientLimiter),
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
	go rm.cleanupLoop(ctx)
	return rm
}

// getClientLimiter retrieves or creates the rate limiters for a given client identifier.
func (rm *RateLimiterMiddleware) getClientLimiter(identifier string) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[identifier]
	if !exists {
		limiter = &clientLimiter{
			softLimiter: rate.NewLimiter(rate.Limit(rm.settings.SoftRefillRate), rm.settings.SoftBucketSize),
			hardLimiter: rate.NewLimiter(rate.Limit(rm.settings.HardRefillRate), rm.settings.HardBucketSize),
		}
		rm.clients[identifier] = limiter
	}
	limiter.lastSeen = rm.now()
	return limiter
}

func (rm *RateLimiterMiddleware) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rm.evictIdle(); n > 0 {
				rm.logger.Debug("rate limiter cleanup", zap.Int("removed", n))
			}
		}
	}
}

// evictIdle drops clients not seen for limiterIdleTTL and returns how many were removed.
func (rm *RateLimiterMiddleware) evictIdle() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	for id, client := range rm.clients {
		if rm.now().Sub(client.lastSeen) > limiterIdleTTL {
			delete(rm.clients, id)
			count++
		}
	}
	return count
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.ClientIP()
		limiter := rm.getClientLimiter(clientKey)

		if !limiter.hardLimiter.Allow() {
			rm.logger.Warn("hard rate limit exceeded", zap.String("client", clientKey), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		anonymous := !hasValidSession(c, rm.settings.JwtSecret)
		if anonymous && !limiter.softLimiter.Allow() {
			rm.logger.Info("soft rate limit exceeded", zap.String("client", clientKey), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, sign in to continue"})
			return
		}

		c.Next()
	}
}
