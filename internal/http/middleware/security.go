// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file hardens responses. SecurityHeaders applies to every route;
// ContentSecurityPolicy is attached only to the server-rendered pages reached
// from email links (feedback confirmation, unsubscribe, preferences).
//
// Webmail clients fetch the open-tracking pixel from their own origin or an
// image proxy, so the pixel path is served with a cross-origin resource
// policy while everything else stays same-origin.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultPageCSP fits the server-rendered pages: inline styles only, no
// scripts, no framing, forms post back to the same origin.
const DefaultPageCSP = "default-src 'none'; style-src 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'; base-uri 'none'"

// DefaultHSTSMaxAge is used when SecurityOptions.HSTSMaxAge is unset.
const DefaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only. Turn
	// it on when the proxy to app hop is HTTPS too.
	EnableHSTS bool
	HSTSMaxAge time.Duration
	// NoStore forbids caching of every response.
	NoStore bool
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
	// CrossOriginPaths are served with Cross-Origin-Resource-Policy:
	// cross-origin (tracking images); all other paths get same-origin.
	CrossOriginPaths []string
}

// SecurityHeaders sets nosniff, frame denial, no-referrer and a resource
// policy on every response, plus the optional headers enabled in opt. When
// a request id is present it is exposed to browser clients.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = DefaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	crossOrigin := make(map[string]struct{}, len(opt.CrossOriginPaths))
	for _, p := range opt.CrossOriginPaths {
		crossOrigin[p] = struct{}{}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if _, ok := crossOrigin[c.Request.URL.Path]; ok {
			h.Set("Cross-Origin-Resource-Policy", "cross-origin")
		} else {
			h.Set("Cross-Origin-Resource-Policy", "same-origin")
		}

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if h.Get(HeaderRequestID) != "" {
			const expose = "Access-Control-Expose-Headers"
			switch cur := h.Get(expose); {
			case cur == "":
				h.Set(expose, HeaderRequestID)
			case !strings.Contains(cur, HeaderRequestID):
				h.Set(expose, cur+", "+HeaderRequestID)
			}
		}

		c.Next()
	}
}

// ContentSecurityPolicy sets Content-Security-Policy. An empty policy means
// DefaultPageCSP.
func ContentSecurityPolicy(policy string) gin.HandlerFunc {
	if strings.TrimSpace(policy) == "" {
		policy = DefaultPageCSP
	}
	return func(c *gin.Context) {
		c.Header("Content-Security-Policy", policy)
		c.Next()
	}
}

// isHTTPS reports a direct TLS connection or X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
