package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/news-digest-mailer/internal/config"
	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/http/middleware"
	"github.com/tbourn/news-digest-mailer/internal/mailer"
	"github.com/tbourn/news-digest-mailer/internal/repo"
	"github.com/tbourn/news-digest-mailer/internal/services"
	"github.com/tbourn/news-digest-mailer/internal/templates"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		BaseURL:        "https://news.example.com",
		RateRPS:        100,
		RateBurst:      100,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

// newTestServices wires the real services over db with a dry-run transport.
func newTestServices(t *testing.T, db *gorm.DB) Services {
	t.Helper()
	renderer, err := templates.New()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	subjects, err := services.NewSubjectComposer(nil, services.DefaultMaxSubjectLength)
	if err != nil {
		t.Fatalf("subjects: %v", err)
	}
	fb := &services.FeedbackService{DB: db}
	return Services{
		Deliveries: &services.DeliveryService{
			DB:          db,
			Users:       &services.SubscriberDirectory{DB: db},
			Renderer:    renderer,
			Subjects:    subjects,
			Highlights:  &services.HighlightExtractor{Provider: &services.OneLinerStore{DB: db}},
			Sender:      mailer.DryRunSender{},
			Feedback:    fb,
			BaseURL:     "https://news.example.com",
			SendTimeout: 10 * time.Second,
		},
		Feedback:    fb,
		Preferences: &services.PreferencesService{DB: db},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	r := gin.New()
	RegisterRoutes(r, db, newTestServices(t, db), cfg)
	return r, db
}

func do(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const digestBody = `{"categories":{"Technology & Gadgets":[{"id":7,"title":"Chips get faster","ai_summary":"Vendors shipped 40% faster parts this year.","source_link":"https://src.example.com/chips"}]}}`

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := do(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	w = do(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	if w = do(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w = do(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newTestRouter(t, cfg)

	w := do(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_SendReplayHistoryAndTracking(t *testing.T) {
	r, db := newTestRouter(t, testConfig())

	// profile
	w := do(r, http.MethodPut, "/api/v1/users/u1", `{"email":"reader@example.com","selected_categories":["Technology & Gadgets"]}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /users/u1 = %d %s", w.Code, w.Body.String())
	}

	// first send
	key := map[string]string{middleware.HeaderIdempotencyKey: "send-1"}
	w = do(r, http.MethodPost, "/api/v1/users/u1/deliveries", digestBody, key)
	if w.Code != http.StatusOK {
		t.Fatalf("send = %d %s", w.Code, w.Body.String())
	}
	var first services.SendResult
	_ = json.Unmarshal(w.Body.Bytes(), &first)
	if !first.Success || first.DeliveryID == 0 || first.Message != "Email sent to reader@example.com" {
		t.Fatalf("unexpected send result: %+v", first)
	}

	// retry with the same key: same delivery, no second row
	w = do(r, http.MethodPost, "/api/v1/users/u1/deliveries", digestBody, key)
	if w.Code != http.StatusOK || w.Header().Get("Idempotent-Replay") != "true" {
		t.Fatalf("replay = %d headers=%v", w.Code, w.Header())
	}
	var replay services.SendResult
	_ = json.Unmarshal(w.Body.Bytes(), &replay)
	if replay.DeliveryID != first.DeliveryID {
		t.Fatalf("replay delivery = %d; want %d", replay.DeliveryID, first.DeliveryID)
	}
	var rows int64
	db.Model(&domain.Delivery{}).Count(&rows)
	if rows != 1 {
		t.Fatalf("deliveries = %d; want 1", rows)
	}

	// history with ETag
	w = do(r, http.MethodGet, "/api/v1/users/u1/deliveries", "", nil)
	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || etag == "" {
		t.Fatalf("history = %d etag=%q", w.Code, etag)
	}
	if w = do(r, http.MethodGet, "/api/v1/users/u1/deliveries", "", map[string]string{"If-None-Match": etag}); w.Code != http.StatusNotModified {
		t.Fatalf("conditional history = %d", w.Code)
	}

	// pixel counts an open and is never rate limited
	w = do(r, http.MethodGet, fmt.Sprintf("/track/open?delivery_id=%d", first.DeliveryID), "", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/gif" {
		t.Fatalf("pixel = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if got := w.Header().Get("Cross-Origin-Resource-Policy"); got != "cross-origin" {
		t.Fatalf("pixel CORP = %q", got)
	}
	d, err := repo.GetDelivery(context.Background(), db, first.DeliveryID)
	if err != nil || d.OpenCount != 1 {
		t.Fatalf("open count: %v %+v", err, d)
	}

	// feedback page carries the page CSP
	w = do(r, http.MethodGet, fmt.Sprintf("/track/feedback?user_id=u1&article_id=7&feedback=like&delivery_id=%d", first.DeliveryID), "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Thanks for the Like!") {
		t.Fatalf("feedback page = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Security-Policy") != middleware.DefaultPageCSP {
		t.Fatalf("missing page CSP")
	}

	// unsubscribe then send is refused
	if w = do(r, http.MethodGet, "/unsubscribe?user_id=u1", "", nil); w.Code != http.StatusOK {
		t.Fatalf("unsubscribe = %d", w.Code)
	}
	w = do(r, http.MethodPost, "/api/v1/users/u1/deliveries", digestBody, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("send after unsubscribe = %d %s", w.Code, w.Body.String())
	}

	// engagement reflects the send, open and like
	w = do(r, http.MethodGet, "/api/v1/users/u1/engagement?days=7", "", nil)
	var eng map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &eng)
	if eng["total_emails"] != 1.0 || eng["total_opens"] != 1.0 || eng["total_likes"] != 1.0 {
		t.Fatalf("engagement = %v", eng)
	}
}

func TestRegisterRoutes_IdempotencyScopeOnlyOnSend(t *testing.T) {
	r, db := newTestRouter(t, testConfig())
	if _, err := repo.CreateIdempotency(context.Background(), db, "9", "k", 123, http.StatusOK, time.Hour); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// GET /deliveries/9 must not be treated as a replay of user "9"
	w := do(r, http.MethodGet, "/api/v1/deliveries/9", "", map[string]string{middleware.HeaderIdempotencyKey: "k"})
	if w.Code != http.StatusNotFound || w.Header().Get("Idempotent-Replay") != "" {
		t.Fatalf("GET /deliveries/9 = %d replay=%q", w.Code, w.Header().Get("Idempotent-Replay"))
	}

	// a malformed key is rejected before anything runs
	w = do(r, http.MethodPost, "/api/v1/users/u1/deliveries", digestBody, map[string]string{middleware.HeaderIdempotencyKey: "bad key!"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad key = %d", w.Code)
	}
}

func TestRegisterRoutes_RateLimitExemptsPixel(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r, _ := newTestRouter(t, cfg)

	if w := do(r, http.MethodGet, "/api/v1/users/u1/email-preferences", "", nil); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/users/u1/email-preferences", "", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d", w.Code)
	}
	for i := 0; i < 3; i++ {
		if w := do(r, http.MethodGet, "/track/open?delivery_id=999", "", nil); w.Code != http.StatusOK {
			t.Fatalf("pixel %d = %d", i, w.Code)
		}
	}
}

func TestRegisterRoutes_Gzip(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())
	w := do(r, http.MethodGet, "/", "", map[string]string{"Accept-Encoding": "gzip"})
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("index = %d encoding=%q", w.Code, w.Header().Get("Content-Encoding"))
	}
	w = do(r, http.MethodGet, "/track/open?delivery_id=1", "", map[string]string{"Accept-Encoding": "gzip"})
	if w.Header().Get("Content-Encoding") != "" {
		t.Fatalf("pixel must not be compressed")
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := do(r, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}
