package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestIdempotencyHelpers_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false by default")
	}
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key must read as absent")
	}
	c.Set(ctxKeyIdemDelivery, "7")
	if _, ok := ReplayedDelivery(c); ok {
		t.Fatalf("non-uint delivery must read as absent")
	}
	c.Set(ctxKeyIdemDelivery, uint(7))
	if id, ok := ReplayedDelivery(c); !ok || id != 7 || !IsReplay(c) {
		t.Fatalf("ReplayedDelivery = %d %v", id, ok)
	}
}

type lookupCall struct {
	scope, key string
}

func newIdemRouter(opts IdempotencyOptions, lookup IdempotencyLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/users/:id/deliveries", IdempotencyValidator(opts, lookup), func(c *gin.Context) {
		key, _ := GetIdempotencyKey(c)
		id, replay := ReplayedDelivery(c)
		c.JSON(http.StatusOK, gin.H{"key": key, "replay": replay, "delivery_id": id, "bypass": IsRateBypass(c)})
	})
	return r
}

func doIdem(r *gin.Engine, path, key string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestIdempotencyValidator_NoHeader_NoLookup(t *testing.T) {
	called := false
	r := newIdemRouter(IdempotencyOptions{}, func(context.Context, string, string, time.Time) (uint, error) {
		called = true
		return 0, nil
	})
	w, body := doIdem(r, "/users/u1/deliveries", "")
	if w.Code != http.StatusOK || called || body["replay"] != false {
		t.Fatalf("unexpected: code=%d called=%v body=%v", w.Code, called, body)
	}
}

func TestIdempotencyValidator_InvalidKeys(t *testing.T) {
	r := newIdemRouter(IdempotencyOptions{MaxLen: 8, Pattern: regexp.MustCompile(`^[a-z0-9-]+$`)}, nil)
	for _, key := range []string{"toolongkey123", "BAD_KEY"} {
		w, body := doIdem(r, "/users/u1/deliveries", key)
		if w.Code != http.StatusBadRequest || body["code"] != "bad_idempotency_key" {
			t.Fatalf("key %q: code=%d body=%v", key, w.Code, body)
		}
	}
}

func TestIdempotencyValidator_MissAndHit(t *testing.T) {
	var calls []lookupCall
	lookup := func(_ context.Context, scope, key string, now time.Time) (uint, error) {
		calls = append(calls, lookupCall{scope, key})
		if now.Location() != time.UTC {
			t.Fatalf("lookup time must be UTC")
		}
		if scope == "u1" && key == "k-1" {
			return 42, nil
		}
		return 0, nil
	}
	r := newIdemRouter(IdempotencyOptions{}, lookup)

	_, miss := doIdem(r, "/users/u2/deliveries", "k-1")
	if miss["replay"] != false || miss["key"] != "k-1" || miss["bypass"] != false {
		t.Fatalf("miss body = %v", miss)
	}
	_, hit := doIdem(r, "/users/u1/deliveries", "k-1")
	if hit["replay"] != true || hit["delivery_id"] != float64(42) || hit["bypass"] != true {
		t.Fatalf("hit body = %v", hit)
	}
	if len(calls) != 2 || calls[0] != (lookupCall{"u2", "k-1"}) || calls[1] != (lookupCall{"u1", "k-1"}) {
		t.Fatalf("lookup calls = %v", calls)
	}
}

func TestIdempotencyValidator_LookupErrorIsMiss(t *testing.T) {
	buf := captureLogger(t)
	r := newIdemRouter(IdempotencyOptions{}, func(context.Context, string, string, time.Time) (uint, error) {
		return 9, errors.New("db down")
	})
	w, body := doIdem(r, "/users/u1/deliveries", "k-2")
	if w.Code != http.StatusOK || body["replay"] != false {
		t.Fatalf("lookup error must not replay: %v", body)
	}
	if !strings.Contains(buf.String(), "idempotency lookup failed") {
		t.Fatalf("expected warning log, got %s", buf.String())
	}
}

func TestIdempotencyValidator_CustomScope(t *testing.T) {
	var gotScope string
	r := newIdemRouter(IdempotencyOptions{Scope: func(c *gin.Context) string { return c.GetHeader("X-Tenant") }},
		func(_ context.Context, scope, _ string, _ time.Time) (uint, error) {
			gotScope = scope
			return 0, nil
		})
	req := httptest.NewRequest(http.MethodPost, "/users/u1/deliveries", nil)
	req.Header.Set(HeaderIdempotencyKey, "k")
	req.Header.Set("X-Tenant", "acme")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if gotScope != "acme" {
		t.Fatalf("scope = %q", gotScope)
	}
}
