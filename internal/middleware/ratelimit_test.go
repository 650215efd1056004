package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// ---------------------------------------------------------------------------
// Tier configs
// ---------------------------------------------------------------------------

func TestRateLimitTierConfigs(t *testing.T) {
	tests := []struct {
		name       string
		cfg        RateLimitConfig
		rpm, burst int
	}{
		{"general", DefaultRateLimitConfig(), 200, 50},
		{"auth", AuthRateLimitConfig(), 10, 5},
		{"export", ExportRateLimitConfig(), 6, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cfg.RequestsPerMinute != tt.rpm {
				t.Errorf("RequestsPerMinute = %d, want %d", tt.cfg.RequestsPerMinute, tt.rpm)
			}
			if tt.cfg.BurstSize != tt.burst {
				t.Errorf("BurstSize = %d, want %d", tt.cfg.BurstSize, tt.burst)
			}
			if tt.cfg.CleanupInterval != 5*time.Minute {
				t.Errorf("CleanupInterval = %v, want 5m", tt.cfg.CleanupInterval)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// RateLimiter.Allow
// ---------------------------------------------------------------------------

func newTestLimiter(rpm, burst int) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: rpm,
		BurstSize:         burst,
		CleanupInterval:   time.Hour, // keep the janitor out of the way
	})
}

func drain(rl *RateLimiter, key string) {
	for {
		ok, _ := rl.Allow(key)
		if !ok {
			return
		}
	}
}

func TestAllow_NewClientStartsWithFullBurst(t *testing.T) {
	rl := newTestLimiter(60, 5)
	defer rl.Stop()

	ok, remaining := rl.Allow("client-a")
	if !ok {
		t.Fatal("Allow() = false for first request, want true")
	}
	if remaining != 4 {
		t.Errorf("remaining = %d after first request at burst 5, want 4", remaining)
	}
}

func TestAllow_BurstExhaustion(t *testing.T) {
	burst := 3
	rl := newTestLimiter(600, burst)
	defer rl.Stop()

	allowed := 0
	for i := 0; i < burst+2; i++ {
		if ok, _ := rl.Allow("burst-key"); ok {
			allowed++
		}
	}
	if allowed != burst {
		t.Errorf("allowed %d requests at burst %d, want exactly %d", allowed, burst, burst)
	}
}

func TestAllow_RefillOverTime(t *testing.T) {
	rl := newTestLimiter(600, 2) // 10 tokens per second
	defer rl.Stop()

	drain(rl, "refill-key")
	time.Sleep(120 * time.Millisecond)

	if ok, _ := rl.Allow("refill-key"); !ok {
		t.Error("Allow() = false after refill interval, want true")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	rl := newTestLimiter(60, 2)
	defer rl.Stop()

	drain(rl, "key-a")

	if ok, _ := rl.Allow("key-b"); !ok {
		t.Error("Allow(key-b) = false after exhausting key-a, want true")
	}
}

// ---------------------------------------------------------------------------
// rateLimitKey
// ---------------------------------------------------------------------------

func TestRateLimitKey_PrefersUserID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "192.168.1.1:12345"
	c.Set(ContextUserID, int64(123))

	if key := rateLimitKey(c); key != "user:123" {
		t.Errorf("key = %q, want user:123", key)
	}
}

func TestRateLimitKey_FallsBackToIP(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	c.Request = req

	key := rateLimitKey(c)
	if len(key) < 3 || key[:3] != "ip:" {
		t.Errorf("key = %q, want ip:... for anonymous request", key)
	}
}

func TestRateLimitKey_UnusableUserIDFallsBackToIP(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	c.Request = req
	c.Set(ContextUserID, "not-an-int64")

	key := rateLimitKey(c)
	if len(key) < 3 || key[:3] != "ip:" {
		t.Errorf("key = %q, want ip:... when user id has the wrong type", key)
	}
}

// ---------------------------------------------------------------------------
// RateLimitMiddleware
// ---------------------------------------------------------------------------

func newRateLimitRouter(limiter *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(limiter))
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func sendFrom(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_AllowedRequestCarriesHeaders(t *testing.T) {
	rl := newTestLimiter(120, 20)
	defer rl.Stop()

	w := sendFrom(newRateLimitRouter(rl), "10.0.0.1:1234")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if limit := w.Header().Get("X-RateLimit-Limit"); limit != "120" {
		t.Errorf("X-RateLimit-Limit = %q, want 120", limit)
	}
	if remaining := w.Header().Get("X-RateLimit-Remaining"); remaining != "19" {
		t.Errorf("X-RateLimit-Remaining = %q, want 19", remaining)
	}
}

func TestRateLimitMiddleware_BlocksExhaustedClient(t *testing.T) {
	rl := newTestLimiter(1, 1)
	defer rl.Stop()
	r := newRateLimitRouter(rl)

	if w := sendFrom(r, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}

	w := sendFrom(r, "10.0.0.2:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if retryAfter := w.Header().Get("Retry-After"); retryAfter != "60" {
		t.Errorf("Retry-After = %q, want 60", retryAfter)
	}
	if remaining, _ := strconv.Atoi(w.Header().Get("X-RateLimit-Remaining")); remaining != 0 {
		t.Errorf("X-RateLimit-Remaining = %d on blocked request, want 0", remaining)
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	r := newRateLimitRouter(nil)

	// Far more requests than any tier would allow in one burst.
	for i := 0; i < 100; i++ {
		if w := sendFrom(r, "10.0.0.3:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200 with limiting disabled", i, w.Code)
		}
	}
}

// ---------------------------------------------------------------------------
// Janitor
// ---------------------------------------------------------------------------

func TestJanitor_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 600,
		BurstSize:         10,
		CleanupInterval:   10 * time.Millisecond,
	})
	defer rl.Stop()

	rl.Allow("stale-client")

	// Back-date the bucket past the idle timeout so the next tick evicts it.
	rl.mu.Lock()
	if b, ok := rl.buckets["stale-client"]; ok {
		b.seen = time.Now().Add(-bucketIdleTimeout - time.Minute)
	}
	rl.mu.Unlock()

	time.Sleep(60 * time.Millisecond)

	rl.mu.Lock()
	_, stillPresent := rl.buckets["stale-client"]
	rl.mu.Unlock()

	if stillPresent {
		t.Error("stale bucket still present after janitor interval")
	}
}
