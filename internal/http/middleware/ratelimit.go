// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory, per-identity token-bucket rate limiter
// (golang.org/x/time/rate) with opportunistic eviction of idle buckets. Keys
// prefer the reader a request is about (path :id or user_id query) and fall
// back to the client IP, so one noisy reader cannot starve the others.
//
// Some routes must never be limited: the open-tracking pixel is fetched by
// mail clients and a 429 there would only lose an open. Those are passed via
// RateLimitOptions.Exempt.
//
// The limiter is process-local; it protects a single instance.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByReaderOrIP keys buckets by the reader id in the :id path parameter or
// the user_id query parameter, falling back to the client IP. Prefixes keep
// the two namespaces apart.
func KeyByReaderOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id := strings.TrimSpace(c.Param("id")); id != "" && strings.Contains(c.FullPath(), "/users/:id") {
			return "user:" + id
		}
		if id := strings.TrimSpace(c.Query("user_id")); id != "" {
			return "user:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

// visitor holds a single rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitOptions configures NewRateLimiter.
type RateLimitOptions struct {
	RPS   float64 // tokens replenished per second
	Burst int     // bucket size; values <= 0 become 1
	Key   keyFunc // nil uses KeyByReaderOrIP
	// Exempt lists request paths (exact match on the URL path) that are never
	// limited.
	Exempt []string
}

// RateLimiter implements a per-key token-bucket rate limiter. It is safe for
// concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	exempt   map[string]struct{}
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter constructs a RateLimiter from opts.
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	key := opts.Key
	if key == nil {
		key = KeyByReaderOrIP()
	}
	exempt := make(map[string]struct{}, len(opts.Exempt))
	for _, p := range opts.Exempt {
		exempt[p] = struct{}{}
	}
	return &RateLimiter{
		rps:      rate.Limit(opts.RPS),
		burst:    burst,
		keyFn:    key,
		exempt:   exempt,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor returns (and touches) the limiter for key, creating it if
// absent. Every 5000 lookups idle buckets are evicted first, so a stale
// bucket is dropped even when it is the one being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay that should not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the Gin middleware. Denied requests get 429 with a
// Retry-After header (whole seconds until the next token, at least 1) and the
// standard error envelope.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := rl.exempt[c.Request.URL.Path]; ok || IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.getVisitor(rl.keyFn(c))
		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter(lim)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": GetRequestID(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfter estimates the wait for one token without consuming it.
func retryAfter(lim *rate.Limiter) int {
	r := lim.Reserve()
	if !r.OK() {
		return 1
	}
	d := r.Delay()
	r.Cancel()
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
