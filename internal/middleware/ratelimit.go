// ratelimit.go enforces per-client token-bucket rate limits. Each limiter
// covers one tier of the API (auth, general, export); a client is keyed by its
// authenticated user ID when present, falling back to the source IP, so token
// holders cannot dodge the budget by rotating addresses.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hiring-pipeline/hiring-pipeline/internal/safego"
)

// Buckets idle longer than this are dropped by the janitor.
const bucketIdleTimeout = 10 * time.Minute

// RateLimitConfig describes one limiter tier.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained refill rate.
	RequestsPerMinute int
	// BurstSize caps how many requests a quiet client may fire at once.
	BurstSize int
	// CleanupInterval is how often idle client buckets are evicted.
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig is the general API tier. The budget is generous
// because dashboard pages fan out into several list calls on load.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 200,
		BurstSize:         50,
		CleanupInterval:   5 * time.Minute,
	}
}

// AuthRateLimitConfig is the credential-exchange tier. It is deliberately
// tight: login and refresh are the brute-force surface.
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// ExportRateLimitConfig is the CSV export tier. Exports can scan the whole
// audit table, so only a handful per minute are allowed.
func ExportRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 6,
		BurstSize:         2,
		CleanupInterval:   5 * time.Minute,
	}
}

// bucket is the token state for one client key.
type bucket struct {
	tokens float64
	seen   time.Time
}

// refill credits tokens for the time elapsed since the last touch, capped at
// the burst size.
func (b *bucket) refill(cfg RateLimitConfig, now time.Time) {
	perSecond := float64(cfg.RequestsPerMinute) / 60.0
	b.tokens = min(float64(cfg.BurstSize), b.tokens+now.Sub(b.seen).Seconds()*perSecond)
	b.seen = now
}

// RateLimiter is a token-bucket limiter shared by every route in one tier.
type RateLimiter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*bucket
	stopCh  chan struct{}
}

// NewRateLimiter builds a limiter and starts its eviction janitor.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	safego.Go(rl.janitor)
	return rl
}

// janitor periodically drops buckets nobody has touched recently.
func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.Sub(b.seen) > bucketIdleTimeout {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop terminates the eviction janitor.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Allow spends one token for the key, reporting whether the request may
// proceed and how many whole tokens remain afterwards.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.config.BurstSize), seen: now}
		rl.buckets[key] = b
	} else {
		b.refill(rl.config, now)
	}

	if b.tokens < 1 {
		return false, 0
	}
	b.tokens--
	return true, int(b.tokens)
}

// RateLimitMiddleware enforces the limiter on each request. A nil limiter
// (rate limiting disabled in config) installs a pass-through.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		allowed, remaining := limiter.Allow(rateLimitKey(c))

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}

// rateLimitKey identifies the client: user ID when authenticated, source IP
// otherwise.
func rateLimitKey(c *gin.Context) string {
	if id, ok := UserID(c); ok {
		return "user:" + strconv.FormatInt(id, 10)
	}
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + c.Request.RemoteAddr
}
