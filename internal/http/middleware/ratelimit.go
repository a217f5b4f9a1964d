// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory, token-bucket rate limiter with one
// bucket per caller. Callers are keyed by the gateway user id when one was
// supplied and by client IP otherwise. Each user owns a Telegram session, so
// this is also the first line of defence against FLOOD_WAIT penalties.
//
// Features:
//   - Per-key token buckets using golang.org/x/time/rate
//   - Pluggable identity function (user ID or client IP)
//   - Bucket table bounded by an LRU (github.com/hashicorp/golang-lru/v2)
//
// Notes:
//   - This limiter is process-local, like the per-user Telegram clients it
//     protects.
//   - It is abuse control, not an authorization mechanism.
package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// defaultMaxBuckets bounds the number of callers tracked at once.
const defaultMaxBuckets = 10_000

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP returns a keyFunc that prefers the gateway user id (see
// UserID) and falls back to the client IP address.
//
// The resulting keys are prefixed to avoid collisions between user and IP
// namespaces (e.g., "user:abc123" vs "ip:203.0.113.7").
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if s := UserIDFrom(c); s != "" {
			return "user:" + s
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimiter implements a per-key token-bucket rate limiter.
//
// Buckets are created on demand. When the table is full the least recently
// used bucket is dropped; a dropped caller simply starts with a full bucket.
//
// This type is safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu      sync.Mutex
	buckets *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter constructs a RateLimiter with the given tokens-per-second
// and burst size, keyed by keyFn.
//
//   - rps:   tokens replenished per second (0 allows no requests; use >0).
//   - burst: maximum burst size; values <= 0 are coerced to 1.
//   - keyFn: function that maps a request to a bucket identity.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	return newRateLimiter(rps, burst, keyFn, defaultMaxBuckets)
}

func newRateLimiter(rps float64, burst int, keyFn keyFunc, maxBuckets int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if maxBuckets <= 0 {
		maxBuckets = defaultMaxBuckets
	}
	cache, _ := lru.New[string, *rate.Limiter](maxBuckets) // only fails for size <= 0
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: cache,
	}
}

// bucket returns the limiter for key, creating it if absent.
func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if lim, ok := rl.buckets.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets.Add(key, lim)
	return lim
}

// Handler returns a Gin middleware that enforces per-key token-bucket limits.
//
// Denied requests get a 429 with the standard error envelope and a minimal
// Retry-After header:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "request_id": "<uuid>",
//	  "code":       "too_many_requests",
//	  "message":    "rate limit exceeded"
//	}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.bucket(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		rateLimited.Inc()
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
