package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.POST("/api/v1/deliveries/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	cases := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"absent", "", false},
		{"scheduler job id", "digest-run:2026-10-16.u42", true},
		{"uuid", "0b7c8f5e-6d0a-4d36-9d55-0f1b7c3e9a10", true},
		{"spaces", "abc 123", false},
		{"header injection", "abc\r\nX-Evil: 1", false},
		{"too long", strings.Repeat("a", maxRequestIDLength+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/deliveries/test", nil)
			if tc.incoming != "" {
				req.Header.Set(HeaderRequestID, tc.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			if got != w.Body.String() {
				t.Fatalf("header %q and context %q disagree", got, w.Body.String())
			}
			if tc.keep {
				if got != tc.incoming {
					t.Fatalf("id = %q; want %q kept", got, tc.incoming)
				}
				return
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("expected a generated uuid, got %q", got)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("json envelope before write", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID(), RedactingLogger(RedactOptions{}), Recovery())
		r.GET("/api/v1/deliveries/:id", func(c *gin.Context) { panic("nil renderer") })

		req := httptest.NewRequest(http.MethodGet, "/api/v1/deliveries/3", nil)
		req.Header.Set(HeaderRequestID, "rid-panic")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("body: %v", err)
		}
		if body["code"] != "internal_error" || body["request_id"] != "rid-panic" {
			t.Fatalf("body = %v", body)
		}
		if out := buf.String(); !strings.Contains(out, `"panic recovered"`) || !strings.Contains(out, `"request_id":"rid-panic"`) {
			t.Fatalf("log = %s", out)
		}
	})

	t.Run("status only after the pixel was written", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID(), Recovery())
		r.GET("/track/open", func(c *gin.Context) {
			c.Data(http.StatusOK, "image/gif", []byte("GIF89a"))
			panic("after write")
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/track/open", nil))
		if strings.Contains(w.Body.String(), "internal_error") {
			t.Fatalf("no JSON once the body started: %q", w.Body.String())
		}
		if !strings.Contains(buf.String(), "panic recovered") {
			t.Fatalf("log = %s", buf.String())
		}
	})
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("falls back to global", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.GET("/", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("index")
			c.Status(http.StatusOK)
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if !strings.Contains(buf.String(), `"message":"index"`) || strings.Contains(buf.String(), `"request_id"`) {
			t.Fatalf("log = %s", buf.String())
		}
	})

	t.Run("request scoped", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID(), RedactingLogger(RedactOptions{}))
		r.GET("/api/v1/users/:id/deliveries", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("history")
			c.Status(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/u7/deliveries", nil)
		req.Header.Set(HeaderRequestID, "rid-7")
		r.ServeHTTP(httptest.NewRecorder(), req)

		first := strings.SplitN(buf.String(), "\n", 2)[0]
		for _, want := range []string{`"message":"history"`, `"request_id":"rid-7"`, `"path":"/api/v1/users/:id/deliveries"`} {
			if !strings.Contains(first, want) {
				t.Fatalf("missing %s in %s", want, first)
			}
		}
	})
}

func TestHelpers_asString_truncate(t *testing.T) {
	if asString("x") != "x" || asString(123) != "" || asString(nil) != "" {
		t.Fatalf("asString")
	}
	for _, tc := range []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"abcdefgh", 5, "abcde…"},
		{"abc", 0, "abc"},
	} {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q", tc.in, tc.max, got)
		}
	}
}
