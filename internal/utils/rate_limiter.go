package utils

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type RateLimiterOptions struct {
	// Limit is requests per second
	Limit rate.Limit
	Burst int
	// ExpiryDuration is how long an idle key keeps its limiter
	ExpiryDuration time.Duration
	KeyFunc        func(*gin.Context) string
}

// DefaultRateLimiterOptions fits a 2s polling interval with room for retries.
func DefaultRateLimiterOptions() RateLimiterOptions {
	return RateLimiterOptions{
		Limit:          2,
		Burst:          5,
		ExpiryDuration: 10 * time.Minute,
		KeyFunc:        SubjectOrIP,
	}
}

// SubjectOrIP keys limits by verified subject, falling back to client IP.
func SubjectOrIP(c *gin.Context) string {
	if identity, ok := IdentityFrom(c); ok {
		return "sub:" + identity.Subject
	}
	return "ip:" + c.ClientIP()
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	mu      sync.Mutex
	options RateLimiterOptions
	clients map[string]*limiterEntry
	logger  *zap.Logger
}

func NewRateLimiter(logger *zap.Logger, options RateLimiterOptions) *RateLimiter {
	if options.KeyFunc == nil {
		options.KeyFunc = SubjectOrIP
	}
	if options.ExpiryDuration <= 0 {
		options.ExpiryDuration = 10 * time.Minute
	}
	return &RateLimiter{
		options: options,
		clients: make(map[string]*limiterEntry),
		logger:  logger,
	}
}

// Middleware must run after AuthMiddleware for subject keys to apply.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := r.options.KeyFunc(c)
		if !r.getLimiter(key).Allow() {
			r.logger.Warn("Rate limit exceeded",
				zap.String("client", key),
				zap.String("path", c.FullPath()),
			)
			c.Header("Retry-After", "1")
			c.Header("X-RateLimit-Limit", strconv.Itoa(r.options.Burst))
			AbortWithError(c, http.StatusTooManyRequests, "too many requests, please slow down")
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) getLimiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, exists := r.clients[key]
	if !exists {
		limiter := rate.NewLimiter(r.options.Limit, r.options.Burst)
		r.clients[key] = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// StartCleanup evicts idle keys every minute until ctx is done.
func (r *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.evict(time.Now())
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *RateLimiter) evict(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for k, v := range r.clients {
		if now.Sub(v.lastSeen) > r.options.ExpiryDuration {
			delete(r.clients, k)
			removed++
		}
	}
	return removed
}
