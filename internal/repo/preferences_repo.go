// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// EmailPreferences model. There is at most one row per user; writers upsert
// on user_id so concurrent updates never produce duplicates.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/news-digest-mailer/internal/domain"
)

// preferenceColumns are rewritten on conflict.
var preferenceColumns = []string{
	"email_enabled",
	"delivery_frequency",
	"delivery_time",
	"delivery_timezone",
	"email_format",
	"include_feedback_links",
	"include_social_sharing",
	"personalized_subject",
	"updated_at",
}

// GetEmailPreferences returns the stored preferences for userID or
// ErrNotFound when the user never saved any.
func GetEmailPreferences(ctx context.Context, db *gorm.DB, userID string) (*domain.EmailPreferences, error) {
	var p domain.EmailPreferences
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertEmailPreferences inserts p or overwrites the existing row for
// p.UserID.
func UpsertEmailPreferences(ctx context.Context, db *gorm.DB, p *domain.EmailPreferences) error {
	now := time.Now().UTC()
	p.ID = 0
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(preferenceColumns),
		}).
		Create(p).Error
}

// SetEmailEnabled toggles delivery for userID. A missing row is created from
// the defaults first.
func SetEmailEnabled(ctx context.Context, db *gorm.DB, userID string, enabled bool) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := GetEmailPreferences(ctx, tx, userID)
		if errors.Is(err, ErrNotFound) {
			d := domain.DefaultEmailPreferences(userID)
			p = &d
		} else if err != nil {
			return err
		}
		p.EmailEnabled = enabled
		return UpsertEmailPreferences(ctx, tx, p)
	})
}
