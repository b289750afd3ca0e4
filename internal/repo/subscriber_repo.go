// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the subscriber directory used to
// resolve recipients and their selected categories.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/news-digest-mailer/internal/domain"
)

// GetSubscriber returns the subscriber with userID or ErrNotFound.
func GetSubscriber(ctx context.Context, db *gorm.DB, userID string) (*domain.Subscriber, error) {
	var s domain.Subscriber
	if err := db.WithContext(ctx).First(&s, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSubscriber inserts s or replaces the stored profile for s.UserID.
func UpsertSubscriber(ctx context.Context, db *gorm.DB, s *domain.Subscriber) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.DigestFrequency == "" {
		s.DigestFrequency = "daily"
	}
	if s.ArticlesPerDigest <= 0 {
		s.ArticlesPerDigest = 10
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"email", "selected_categories", "digest_frequency", "articles_per_digest", "updated_at",
			}),
		}).
		Create(s).Error
}
