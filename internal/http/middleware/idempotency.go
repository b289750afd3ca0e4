// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency support for digest sends. A client that
// retries POST /users/{id}/deliveries with the same Idempotency-Key must not
// cause a second email. The middleware validates the header, asks a lookup
// whether (recipient, key) already produced a delivery, and annotates the
// request so that:
//   - handlers can read the normalized key (GetIdempotencyKey)
//   - handlers can answer with the stored delivery (ReplayedDelivery)
//   - the rate limiter lets replays through (IsRateBypass)
//
// Persistence stays behind the IdempotencyLookup function.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey      = "idem.key"
	ctxKeyIdemDelivery = "idem.delivery" // uint: delivery produced by the first request
	ctxKeyRateBypass   = "rate.bypass"   // bool: true to skip rate limiting
)

// defaultKeyPattern accepts RFC 7230 token characters commonly used in keys.
var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key stored by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// ReplayedDelivery returns the delivery recorded for a previous request with
// the same (recipient, key), if any.
func ReplayedDelivery(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxKeyIdemDelivery)
	if !ok {
		return 0, false
	}
	id, _ := v.(uint)
	return id, id != 0
}

// IsReplay reports whether the request replays a completed send.
func IsReplay(c *gin.Context) bool {
	_, ok := ReplayedDelivery(c)
	return ok
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil uses ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Scope extracts the recipient the key is bound to. Nil uses the :id
	// path parameter.
	Scope func(*gin.Context) string
}

// IdempotencyLookup returns the delivery stored for (scope, key) while the
// record is still valid at now. deliveryID == 0 means no replay. Errors are
// treated as a miss so that lookups never block sending.
type IdempotencyLookup func(ctx context.Context, scope, key string, now time.Time) (deliveryID uint, err error)

// IdempotencyValidator validates the Idempotency-Key header (if present),
// stashes it, and marks replays found by lookup. Requests without the header
// pass through untouched; an invalid key is rejected with 400.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	scope := opts.Scope
	if scope == nil {
		scope = func(c *gin.Context) string { return c.Param("id") }
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": GetRequestID(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if s := scope(c); lookup != nil && s != "" {
			id, err := lookup(c.Request.Context(), s, key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if err == nil && id != 0 {
				c.Set(ctxKeyIdemDelivery, id)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
