// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger. Tracking links
// carry reader identifiers and sometimes addresses in their query string, so
// nothing reaches the log before it is scrubbed:
//   - values of sensitive query parameters (user_id, email, ...) are masked
//   - emails, phone numbers and UUIDs are replaced anywhere in query/headers
//   - sensitive headers (Authorization, Cookie, Set-Cookie, plus custom) are
//     masked entirely
//
// Bodies are never logged. The middleware also attaches a request-scoped
// logger (see LoggerFrom) carrying the request id and route.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultMaskQuery lists query parameters whose values identify a reader.
var DefaultMaskQuery = []string{"user_id", "email", "token"}

// RedactOptions configures additional scrub behavior for RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are header names (case-insensitive) replaced with
	// "[REDACTED]" in addition to Authorization, Cookie and Set-Cookie.
	MaskHeaders []string
	// MaskQuery are query parameter names whose values are replaced with
	// "[REDACTED]". Nil means DefaultMaskQuery.
	MaskQuery []string
}

var (
	// UUIDs go before phones so the phone pattern cannot eat UUID segments.
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+(@|%40)[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// scrub replaces identifiers in free text.
func scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// redactQuery masks the values of names in raw and then scrubs the rest.
// An unparsable query is scrubbed as plain text.
func redactQuery(raw string, names map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return scrub(raw)
	}
	for k := range vals {
		if _, ok := names[strings.ToLower(k)]; ok {
			for i := range vals[k] {
				vals[k][i] = "[REDACTED]"
			}
		}
	}
	// Encode escapes the brackets; keep the marker readable.
	out := strings.ReplaceAll(vals.Encode(), "%5BREDACTED%5D", "[REDACTED]")
	return scrub(out)
}

// RedactingLogger returns a Gin middleware that logs each request with
// sensitive values scrubbed. 5xx responses and requests with Gin errors log
// at error level, 4xx at warn, everything else at info.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}
	query := opts.MaskQuery
	if query == nil {
		query = DefaultMaskQuery
	}
	maskQuery := make(map[string]struct{}, len(query))
	for _, q := range query {
		if q = strings.ToLower(strings.TrimSpace(q)); q != "" {
			maskQuery[q] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := truncate(redactQuery(c.Request.URL.RawQuery, maskQuery), maxQueryLogLength)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = scrub(strings.Join(vv, ", "))
		}

		reqID := GetRequestID(c)
		if reqID == "" {
			reqID = c.GetHeader(HeaderRequestID)
		}
		lg := log.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &lg)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = lg.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", scrub(c.Errors.String()))
			}
		case status >= 400:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}
		ev.
			Str("query", safeQuery).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
