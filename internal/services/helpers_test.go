package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/news-digest-mailer/internal/ai"
	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/mailer"
	"github.com/tbourn/news-digest-mailer/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

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
	// shared-cache memory DBs lock per table; one connection avoids
	// SQLITE_LOCKED under concurrent tests
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// stubUsers is a UserDirectory backed by a map.
type stubUsers struct {
	users map[string]*domain.Subscriber
	err   error
}

func (s *stubUsers) GetUserPreferences(_ context.Context, userID string) (*domain.Subscriber, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// stubSender records every email and answers with fn.
type stubSender struct {
	mu    sync.Mutex
	sent  []mailer.Email
	calls atomic.Int32
	fn    func(ctx context.Context, e *mailer.Email) (mailer.Receipt, error)
}

func (s *stubSender) Send(ctx context.Context, e *mailer.Email) (mailer.Receipt, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.sent = append(s.sent, *e)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(ctx, e)
	}
	return mailer.Receipt{MessageID: "<msg-1@test>"}, nil
}

// stubAI counts calls and answers with fn.
type stubAI struct {
	calls atomic.Int32
	fn    func(title, content string) (ai.Result, error)
}

func (s *stubAI) GenerateSummary(_ context.Context, title, content string) (ai.Result, error) {
	s.calls.Add(1)
	if s.fn != nil {
		return s.fn(title, content)
	}
	return ai.Result{Content: "AI subject"}, nil
}

type stubHighlights struct {
	mu   sync.Mutex
	text string
	err  error
	got  []string
}

func (s *stubHighlights) RandomHighlight(_ context.Context, categories []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = categories
	return s.text, s.err
}

func techDigest(n int) domain.Digest {
	arts := make([]domain.Article, 0, n)
	for i := 1; i <= n; i++ {
		arts = append(arts, domain.Article{
			ID:         int64(i),
			Title:      fmt.Sprintf("Story %d", i),
			AISummary:  "Chip sales rose 12% this year.",
			SourceLink: fmt.Sprintf("https://example.com/%d", i),
		})
	}
	var cats domain.CategoryMap
	cats.Set("Technology & Gadgets", arts)
	return domain.Digest{Categories: cats}
}
