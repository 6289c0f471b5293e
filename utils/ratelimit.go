package utils

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pocketbase/pocketbase/core"
)

// RateLimiter implements a sliding window rate limiter
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	config   RateLimitConfig
	now      func() time.Time
}

// RateLimitConfig defines rate limit settings
type RateLimitConfig struct {
	PublicLimit    int           // requests per window for public endpoints
	AuthLimit      int           // requests per window for authenticated
	WindowDuration time.Duration // sliding window duration
}

var (
	limiter     *RateLimiter
	limiterOnce sync.Once
)

// NewRateLimiter creates a rate limiter with the given config
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.WindowDuration <= 0 {
		config.WindowDuration = time.Minute
	}
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		config:   config,
		now:      time.Now,
	}
}

// GetRateLimiter returns the singleton rate limiter instance
func GetRateLimiter() *RateLimiter {
	limiterOnce.Do(func() {
		limiter = NewRateLimiter(RateLimitConfig{
			PublicLimit:    envInt("RATE_LIMIT_PUBLIC", 60),
			AuthLimit:      envInt("RATE_LIMIT_AUTH", 120),
			WindowDuration: time.Minute,
		})
		go limiter.cleanupLoop(5 * time.Minute)
		log.Printf("[RateLimit] Initialized with public=%d, auth=%d per minute",
			limiter.config.PublicLimit, limiter.config.AuthLimit)
	})
	return limiter
}

// Allow checks if a request should be allowed based on rate limits
func (rl *RateLimiter) Allow(key string, limit int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := rl.window(rl.requests[key], now)

	if len(valid) >= limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// window filters request times to those inside the sliding window
func (rl *RateLimiter) window(times []time.Time, now time.Time) []time.Time {
	windowStart := now.Add(-rl.config.WindowDuration)
	var valid []time.Time
	for _, t := range times {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	return valid
}

// Cleanup removes stale entries to prevent memory leaks
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, times := range rl.requests {
		if valid := rl.window(times, now); len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

func (rl *RateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	for range ticker.C {
		rl.Cleanup()
	}
}

// rateLimitResponse returns a 429 response with Retry-After header
func rateLimitResponse(e *core.RequestEvent, window time.Duration) error {
	e.Response.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
	return e.JSON(http.StatusTooManyRequests, map[string]string{
		"error": "Rate limit exceeded. Please try again later.",
	})
}

// Public returns middleware for public endpoints (tracks by IP)
func (rl *RateLimiter) Public(e *core.RequestEvent) error {
	key := "public:" + e.RealIP()
	if !rl.Allow(key, rl.config.PublicLimit) {
		log.Printf("[RateLimit] Public limit exceeded for IP %s", e.RealIP())
		return rateLimitResponse(e, rl.config.WindowDuration)
	}
	return e.Next()
}

// Auth returns middleware for authenticated endpoints (tracks by user ID or IP)
func (rl *RateLimiter) Auth(e *core.RequestEvent) error {
	key := "auth:" + e.RealIP()
	if e.Auth != nil {
		key = "auth:" + e.Auth.Id
	}
	if !rl.Allow(key, rl.config.AuthLimit) {
		log.Printf("[RateLimit] Auth limit exceeded for %s", key)
		return rateLimitResponse(e, rl.config.WindowDuration)
	}
	return e.Next()
}

// RateLimitPublic is middleware for public endpoints
func RateLimitPublic(e *core.RequestEvent) error {
	return GetRateLimiter().Public(e)
}

// RateLimitAuth is middleware for authenticated endpoints
func RateLimitAuth(e *core.RequestEvent) error {
	return GetRateLimiter().Auth(e)
}

func envInt(name string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(name)); err == nil && n > 0 {
		return n
	}
	return fallback
}
