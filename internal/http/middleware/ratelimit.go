// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the edge rate limiter: an in-memory token bucket per
// caller, with opportunistic eviction of idle buckets. It protects the whole
// API from floods; the per-user click window ("Too many clicks!") is a
// separate rule enforced by ClickService against persisted click timestamps.
//
// The limiter is process-local. A horizontally scaled deployment needs a
// shared limiter (e.g. Redis-backed) to enforce one global budget.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity that owns a rate-limit bucket. The returned
// string must be stable for the duration of a request.
type keyFunc func(*gin.Context) string

// KeyByClientIP keys buckets by the caller's IP address. The click API is
// unauthenticated, so the transport-level identity is the only one available
// at the edge.
func KeyByClientIP() keyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

// bucket pairs a token bucket with its last-use time for idle eviction.
type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// bucketSweepEvery is the number of lookups between idle-bucket sweeps.
const bucketSweepEvery = 5000

// RateLimiter enforces per-key token-bucket limits. Buckets are created on
// demand and evicted after sitting idle for ttl. Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	ttl     time.Duration
	ops     uint64
}

// NewRateLimiter constructs a limiter replenishing rps tokens per second with
// the given burst capacity, keyed by keyFn. A burst <= 0 is coerced to 1.
// Install it with Handler().
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
		ttl:     10 * time.Minute,
	}
}

// bucketFor returns the limiter for key, creating it on first sight.
//
// Every bucketSweepEvery lookups, idle buckets are dropped first, before the
// requested key is touched: an expired entry must not be refreshed by the
// very lookup that should evict it.
func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.ops++
	if rl.ops >= bucketSweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.seen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.ops = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.seen = now
		return b.lim
	}
	b := &bucket{lim: rate.NewLimiter(rl.rps, rl.burst), seen: now}
	rl.buckets[key] = b
	return b.lim
}

// IsRateBypass reports whether IdempotencyValidator flagged this request as a
// replay of an already-completed operation. Handler() skips limiting for
// replays so a retry can never be starved out of its stored answer.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the enforcement middleware.
//
// Replays (IsRateBypass) pass through untouched. Everything else draws one
// token from its bucket; an empty bucket answers 429 with Retry-After and
// the standard error envelope:
//
//	{ "request_id": "<uuid>", "code": "rate_limited", "message": "rate limit exceeded" }
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.bucketFor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
