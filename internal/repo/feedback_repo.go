// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// FeedbackRecord model.
//
// Feedback is an append-only event log: there is no unique constraint and
// repeated clicks on the same link produce repeated rows.
//
// Functions:
//
//   - CreateFeedbackRecord(ctx, db, rec) -> error
//     Inserts one event. CreatedAt defaults to now (UTC).
//
//   - ListFeedback(ctx, db, userID, limit) -> []domain.FeedbackRecord, error
//     Returns the latest events for a user, newest first.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/news-digest-mailer/internal/domain"
)

// CreateFeedbackRecord appends rec to the feedback history.
func CreateFeedbackRecord(ctx context.Context, db *gorm.DB, rec *domain.FeedbackRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Source == "" {
		rec.Source = "email"
	}
	return db.WithContext(ctx).Create(rec).Error
}

// ListFeedback returns up to limit events for userID, newest first.
func ListFeedback(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.FeedbackRecord, error) {
	var out []domain.FeedbackRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
