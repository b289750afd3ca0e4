package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securedRouter(opt SecurityOptions, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(pre...)
	r.Use(SecurityHeaders(opt))
	for _, p := range []string{"/track/open", "/api/v1/deliveries"} {
		r.GET(p, func(c *gin.Context) { c.Status(http.StatusOK) })
	}
	return r
}

func TestSecurityHeaders_Options(t *testing.T) {
	tests := []struct {
		name   string
		opt    SecurityOptions
		path   string
		tls    bool
		xfp    string
		want   map[string]string
		absent []string
	}{
		{
			name: "baseline api",
			path: "/api/v1/deliveries",
			want: map[string]string{
				"X-Content-Type-Options":       "nosniff",
				"X-Frame-Options":              "DENY",
				"Referrer-Policy":              "no-referrer",
				"Cross-Origin-Resource-Policy": "same-origin",
			},
			absent: []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security"},
		},
		{
			name: "pixel is cross-origin",
			opt:  SecurityOptions{CrossOriginPaths: []string{"/track/open"}},
			path: "/track/open",
			want: map[string]string{"Cross-Origin-Resource-Policy": "cross-origin"},
		},
		{
			name: "cross-origin list does not leak to api",
			opt:  SecurityOptions{CrossOriginPaths: []string{"/track/open"}},
			path: "/api/v1/deliveries",
			want: map[string]string{"Cross-Origin-Resource-Policy": "same-origin"},
		},
		{
			name: "policy and no-store",
			opt:  SecurityOptions{EnablePolicy: true, NoStore: true},
			path: "/api/v1/deliveries",
			want: map[string]string{
				"Permissions-Policy":                "geolocation=(), microphone=(), camera=(), payment=()",
				"X-Permitted-Cross-Domain-Policies": "none",
				"Cache-Control":                     "no-store",
				"Pragma":                            "no-cache",
				"Expires":                           "0",
			},
		},
		{
			name:   "hsts skipped over plain http",
			opt:    SecurityOptions{EnableHSTS: true},
			path:   "/api/v1/deliveries",
			absent: []string{"Strict-Transport-Security"},
		},
		{
			name: "hsts default max-age over tls",
			opt:  SecurityOptions{EnableHSTS: true},
			path: "/api/v1/deliveries",
			tls:  true,
			want: map[string]string{"Strict-Transport-Security": "max-age=15552000; includeSubDomains; preload"},
		},
		{
			name: "hsts behind proxy",
			opt:  SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour},
			path: "/track/open",
			xfp:  "HTTPS",
			want: map[string]string{"Strict-Transport-Security": "max-age=3600; includeSubDomains; preload"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.tls {
				req.TLS = &tls.ConnectionState{}
			}
			if tc.xfp != "" {
				req.Header.Set("X-Forwarded-Proto", tc.xfp)
			}
			w := httptest.NewRecorder()
			securedRouter(tc.opt).ServeHTTP(w, req)

			for k, v := range tc.want {
				if got := w.Header().Get(k); got != v {
					t.Errorf("%s = %q; want %q", k, got, v)
				}
			}
			for _, k := range tc.absent {
				if got := w.Header().Get(k); got != "" {
					t.Errorf("%s should be unset, got %q", k, got)
				}
			}
		})
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	withID := func(existing string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Writer.Header().Set(HeaderRequestID, "rid-1")
			if existing != "" {
				c.Writer.Header().Set("Access-Control-Expose-Headers", existing)
			}
			c.Next()
		}
	}
	cases := map[string]struct {
		existing string
		want     string
	}{
		"fresh":     {"", HeaderRequestID},
		"appended":  {"ETag", "ETag, " + HeaderRequestID},
		"no repeat": {"ETag, " + HeaderRequestID, "ETag, " + HeaderRequestID},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			securedRouter(SecurityOptions{}, withID(tc.existing)).
				ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/deliveries", nil))
			if got := w.Header().Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("expose = %q; want %q", got, tc.want)
			}
		})
	}

	w := httptest.NewRecorder()
	securedRouter(SecurityOptions{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/track/open", nil))
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "" {
		t.Fatalf("no request id, nothing to expose: %q", got)
	}
}

func Test_isHTTPS(t *testing.T) {
	cases := []struct {
		tls  bool
		xfp  string
		want bool
	}{
		{false, "", false},
		{false, "http", false},
		{false, "https", true},
		{false, "Https", true},
		{true, "", true},
		{true, "http", true},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.tls {
			r.TLS = &tls.ConnectionState{}
		}
		if tc.xfp != "" {
			r.Header.Set("X-Forwarded-Proto", tc.xfp)
		}
		if got := isHTTPS(r); got != tc.want {
			t.Errorf("isHTTPS(tls=%v, xfp=%q) = %v", tc.tls, tc.xfp, got)
		}
	}
}

func TestContentSecurityPolicy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	pages := r.Group("/", ContentSecurityPolicy(""))
	pages.GET("/unsubscribe", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api", func(c *gin.Context) { c.Status(http.StatusOK) })
	custom := r.Group("/custom", ContentSecurityPolicy("default-src 'self'"))
	custom.GET("", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(path string) string {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Header().Get("Content-Security-Policy")
	}
	if got := get("/unsubscribe"); got != DefaultPageCSP {
		t.Fatalf("page CSP = %q", got)
	}
	if got := get("/api"); got != "" {
		t.Fatalf("api should carry no CSP, got %q", got)
	}
	if got := get("/custom"); got != "default-src 'self'" {
		t.Fatalf("custom CSP = %q", got)
	}
}
