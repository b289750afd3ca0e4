package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/repo"
	"github.com/tbourn/news-digest-mailer/internal/services"
)

// stubDeliveries records calls and answers with canned results.
type stubDeliveries struct {
	mu sync.Mutex

	sendRes    services.SendResult
	bulkRes    services.BulkResult
	previewOut string
	previewErr error
	history    []domain.Delivery
	historyErr error
	byID       map[uint]*domain.Delivery
	getErr     error

	sends    []string
	digests  []domain.Digest
	bulk     []services.BulkItem
	testUser *string
}

func (s *stubDeliveries) SendDigest(_ context.Context, userID string, d domain.Digest) services.SendResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, userID)
	s.digests = append(s.digests, d)
	return s.sendRes
}

func (s *stubDeliveries) SendBulk(_ context.Context, items []services.BulkItem) services.BulkResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulk = items
	return s.bulkRes
}

func (s *stubDeliveries) SendTest(_ context.Context, userID string) services.SendResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testUser = &userID
	return s.sendRes
}

func (s *stubDeliveries) Preview(context.Context, string, domain.Digest) (string, error) {
	return s.previewOut, s.previewErr
}

func (s *stubDeliveries) History(context.Context, string, int) ([]domain.Delivery, error) {
	return s.history, s.historyErr
}

func (s *stubDeliveries) Get(_ context.Context, id uint) (*domain.Delivery, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if d, ok := s.byID[id]; ok {
		return d, nil
	}
	return nil, services.ErrDeliveryNotFound
}

type stubFeedback struct {
	mu sync.Mutex

	recordErr error
	openErr   error
	summary   repo.EngagementSummary
	sumErr    error

	inputs []services.FeedbackInput
	opens  []uint
	days   int
}

func (s *stubFeedback) Record(_ context.Context, in services.FeedbackInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	if strings.TrimSpace(in.Kind) == "" {
		return services.ErrInvalidFeedback
	}
	s.inputs = append(s.inputs, in)
	return nil
}

func (s *stubFeedback) RecordOpen(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens = append(s.opens, id)
	return s.openErr
}

func (s *stubFeedback) Summary(_ context.Context, _ string, days int) (repo.EngagementSummary, error) {
	s.days = days
	return s.summary, s.sumErr
}

type stubPrefs struct {
	prefs     domain.EmailPreferences
	updErr    error
	setErr    error
	subs      map[string]*domain.Subscriber
	upsertErr error

	enabled map[string]bool
	lastUpd services.PreferencesUpdate
}

func (s *stubPrefs) Get(_ context.Context, userID string) (domain.EmailPreferences, error) {
	p := s.prefs
	if p.UserID == "" {
		p = domain.DefaultEmailPreferences(userID)
	}
	if on, ok := s.enabled[userID]; ok {
		p.EmailEnabled = on
	}
	return p, nil
}

func (s *stubPrefs) Update(_ context.Context, userID string, upd services.PreferencesUpdate) (domain.EmailPreferences, error) {
	s.lastUpd = upd
	if s.updErr != nil {
		return domain.EmailPreferences{}, s.updErr
	}
	p := domain.DefaultEmailPreferences(userID)
	if upd.DeliveryFrequency != nil {
		p.DeliveryFrequency = *upd.DeliveryFrequency
	}
	return p, nil
}

func (s *stubPrefs) SetEnabled(_ context.Context, userID string, enabled bool) error {
	if s.setErr != nil {
		return s.setErr
	}
	if s.enabled == nil {
		s.enabled = map[string]bool{}
	}
	s.enabled[userID] = enabled
	return nil
}

func (s *stubPrefs) GetSubscriber(_ context.Context, userID string) (*domain.Subscriber, error) {
	if sub, ok := s.subs[userID]; ok {
		return sub, nil
	}
	return nil, services.ErrUserNotFound
}

func (s *stubPrefs) UpsertSubscriber(_ context.Context, sub *domain.Subscriber) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if s.subs == nil {
		s.subs = map[string]*domain.Subscriber{}
	}
	s.subs[sub.UserID] = sub
	return nil
}

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// mount registers route with h on a fresh engine, running mw first.
func mount(method, route string, h gin.HandlerFunc, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.Handle(method, route, h)
	return r
}

func call(r http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return e
}
