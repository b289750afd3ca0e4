// Package services – collaborators
//
// The delivery pipeline depends on three outside systems: a user directory,
// a text generator, and a source of short highlight sentences. Each is an
// interface here so tests substitute stubs; the gorm-backed implementations
// below read the local subscribers and oneliners tables.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/news-digest-mailer/internal/ai"
	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/repo"
)

// UserDirectory resolves a user to their subscriber profile. Implementations
// return ErrUserNotFound for unknown users.
type UserDirectory interface {
	GetUserPreferences(ctx context.Context, userID string) (*domain.Subscriber, error)
}

// Summarizer generates short texts. ai.Client satisfies it.
type Summarizer interface {
	GenerateSummary(ctx context.Context, title, content string) (ai.Result, error)
}

// HighlightProvider returns one curated sentence for the given categories.
type HighlightProvider interface {
	RandomHighlight(ctx context.Context, categories []string) (string, error)
}

// SubscriberDirectory is a UserDirectory over the subscribers table.
type SubscriberDirectory struct {
	DB *gorm.DB
}

func (d *SubscriberDirectory) GetUserPreferences(ctx context.Context, userID string) (*domain.Subscriber, error) {
	s, err := repo.GetSubscriber(ctx, d.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return s, err
}

// StaticOneLiner is returned when the store has nothing at all.
const StaticOneLiner = "Stay informed with today's most important developments across technology, science, and global affairs."

// OneLinerStore is a HighlightProvider over the oneliners table. Lookup order:
// each requested category for today, any category today, any date, then
// StaticOneLiner.
type OneLinerStore struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (s *OneLinerStore) RandomHighlight(ctx context.Context, categories []string) (string, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	today := domain.MetricDate(now())

	for _, c := range categories {
		if text, err := s.pick(ctx, c, today); text != "" || err != nil {
			return text, err
		}
	}
	if text, err := s.pick(ctx, "", today); text != "" || err != nil {
		return text, err
	}
	if text, err := s.pick(ctx, "", ""); text != "" || err != nil {
		return text, err
	}
	return StaticOneLiner, nil
}

func (s *OneLinerStore) pick(ctx context.Context, category, day string) (string, error) {
	o, err := repo.RandomOneLiner(ctx, s.DB, category, day)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return "", nil
	case err != nil:
		return "", err
	}
	return o.Text, nil
}
