// Package services – PreferencesService
//
// This file implements reader-facing settings: per-user email preferences
// (merge updates, opt-in/opt-out) and the subscriber profile consumed by the
// delivery pipeline. Missing preference rows read as the defaults.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/repo"
)

// PreferencesUpdate is a partial update; nil fields keep their value.
type PreferencesUpdate struct {
	EmailEnabled         *bool   `json:"email_enabled,omitempty"`
	DeliveryFrequency    *string `json:"delivery_frequency,omitempty"`
	DeliveryTime         *string `json:"delivery_time,omitempty"`
	DeliveryTimezone     *string `json:"delivery_timezone,omitempty"`
	EmailFormat          *string `json:"email_format,omitempty"`
	IncludeFeedbackLinks *bool   `json:"include_feedback_links,omitempty"`
	IncludeSocialSharing *bool   `json:"include_social_sharing,omitempty"`
	PersonalizedSubject  *bool   `json:"personalized_subject,omitempty"`
}

// PreferencesService manages email preferences and subscriber profiles.
type PreferencesService struct {
	DB *gorm.DB
}

// Get returns the stored preferences or the defaults for userID.
func (s *PreferencesService) Get(ctx context.Context, userID string) (domain.EmailPreferences, error) {
	p, err := repo.GetEmailPreferences(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.DefaultEmailPreferences(userID), nil
	}
	if err != nil {
		return domain.EmailPreferences{}, err
	}
	return *p, nil
}

// Update merges upd into the current preferences and stores the result.
func (s *PreferencesService) Update(ctx context.Context, userID string, upd PreferencesUpdate) (domain.EmailPreferences, error) {
	cur, err := s.Get(ctx, userID)
	if err != nil {
		return domain.EmailPreferences{}, err
	}
	if upd.EmailEnabled != nil {
		cur.EmailEnabled = *upd.EmailEnabled
	}
	if upd.DeliveryFrequency != nil {
		cur.DeliveryFrequency = strings.ToLower(strings.TrimSpace(*upd.DeliveryFrequency))
	}
	if upd.DeliveryTime != nil {
		cur.DeliveryTime = strings.TrimSpace(*upd.DeliveryTime)
	}
	if upd.DeliveryTimezone != nil {
		cur.DeliveryTimezone = strings.TrimSpace(*upd.DeliveryTimezone)
	}
	if upd.EmailFormat != nil {
		cur.EmailFormat = strings.ToLower(strings.TrimSpace(*upd.EmailFormat))
	}
	if upd.IncludeFeedbackLinks != nil {
		cur.IncludeFeedbackLinks = *upd.IncludeFeedbackLinks
	}
	if upd.IncludeSocialSharing != nil {
		cur.IncludeSocialSharing = *upd.IncludeSocialSharing
	}
	if upd.PersonalizedSubject != nil {
		cur.PersonalizedSubject = *upd.PersonalizedSubject
	}
	if err := validatePreferences(cur); err != nil {
		return domain.EmailPreferences{}, err
	}
	cur.UserID = userID
	if err := repo.UpsertEmailPreferences(ctx, s.DB, &cur); err != nil {
		return domain.EmailPreferences{}, err
	}
	return s.Get(ctx, userID)
}

// SetEnabled turns delivery on or off for userID.
func (s *PreferencesService) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidPreferences
	}
	return repo.SetEmailEnabled(ctx, s.DB, userID, enabled)
}

func validatePreferences(p domain.EmailPreferences) error {
	switch p.DeliveryFrequency {
	case "daily", "weekly", "manual":
	default:
		return fmt.Errorf("%w: delivery_frequency %q", ErrInvalidPreferences, p.DeliveryFrequency)
	}
	if _, err := time.Parse("15:04", p.DeliveryTime); err != nil {
		return fmt.Errorf("%w: delivery_time %q", ErrInvalidPreferences, p.DeliveryTime)
	}
	if _, err := time.LoadLocation(p.DeliveryTimezone); err != nil || p.DeliveryTimezone == "" {
		return fmt.Errorf("%w: delivery_timezone %q", ErrInvalidPreferences, p.DeliveryTimezone)
	}
	switch p.EmailFormat {
	case "html", "text":
	default:
		return fmt.Errorf("%w: email_format %q", ErrInvalidPreferences, p.EmailFormat)
	}
	return nil
}

// GetSubscriber returns the profile for userID or ErrUserNotFound.
func (s *PreferencesService) GetSubscriber(ctx context.Context, userID string) (*domain.Subscriber, error) {
	sub, err := repo.GetSubscriber(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return sub, err
}

// UpsertSubscriber creates or replaces the profile of sub.UserID.
func (s *PreferencesService) UpsertSubscriber(ctx context.Context, sub *domain.Subscriber) error {
	if sub == nil || strings.TrimSpace(sub.UserID) == "" {
		return ErrInvalidSubscriber
	}
	return repo.UpsertSubscriber(ctx, s.DB, sub)
}
