// Package services – FeedbackService
//
// This file implements FeedbackService, which records reader engagement:
// article feedback from tracking links, email opens, and sends. Every
// feedback event is appended to feedback_history and folded into the daily
// engagement_metrics row for the user (UTC day bucket) in the same
// transaction. Counters are applied as column = column + n, so concurrent
// events never lose updates.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/repo"
)

// Feedback kinds.
const (
	FeedbackLike         = "like"
	FeedbackDislike      = "dislike"
	FeedbackMoreLikeThis = "more_like_this"
	FeedbackShare        = "share"
	FeedbackClick        = "click"
)

// Share platforms with a dedicated counter. Other platforms only count
// towards shares_total.
const (
	PlatformTwitter  = "twitter"
	PlatformLinkedIn = "linkedin"
	PlatformWhatsApp = "whatsapp"
)

// FeedbackInput is one reader action on one article.
type FeedbackInput struct {
	UserID        string
	ArticleID     int64
	Kind          string
	DeliveryID    uint
	SharePlatform string
	Source        string
}

// FeedbackService implements the engagement use-cases.
type FeedbackService struct {
	DB  *gorm.DB
	Now func() time.Time
}

// feedbackLabel bounds the metrics label: kinds outside the named set are
// recorded as "other".
func feedbackLabel(kind string) string {
	switch kind {
	case FeedbackLike, FeedbackDislike, FeedbackMoreLikeThis, FeedbackShare, FeedbackClick:
		return kind
	}
	return "other"
}

// Record appends the event and updates today's aggregates.
//
// Validation: UserID and Kind must be non-empty and ArticleID positive;
// otherwise ErrInvalidFeedback. Kinds are an open set: anything without a
// dedicated counter only counts as a click. Duplicate events are legal and
// each one counts.
//
// A delivery-scoped event also bumps the delivery's click_count; an unknown
// delivery id is logged and ignored.
func (s *FeedbackService) Record(ctx context.Context, in FeedbackInput) error {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(
			attribute.String("user.id", in.UserID),
			attribute.Int64("article.id", in.ArticleID),
			attribute.String("feedback.kind", in.Kind),
		),
	)
	defer span.End()

	in.UserID = strings.TrimSpace(in.UserID)
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	in.SharePlatform = strings.ToLower(strings.TrimSpace(in.SharePlatform))
	if in.UserID == "" || in.ArticleID <= 0 || in.Kind == "" {
		return ErrInvalidFeedback
	}

	now := s.now()
	rec := &domain.FeedbackRecord{
		UserID:       in.UserID,
		ArticleID:    in.ArticleID,
		FeedbackType: in.Kind,
		Source:       in.Source,
		CreatedAt:    now,
	}
	if in.DeliveryID != 0 {
		id := in.DeliveryID
		rec.DeliveryID = &id
	}
	if in.Kind == FeedbackShare && in.SharePlatform != "" {
		p := in.SharePlatform
		rec.SharePlatform = &p
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateFeedbackRecord(ctx, tx, rec); err != nil {
			return err
		}
		return repo.IncrementEngagement(ctx, tx, in.UserID, domain.MetricDate(now), feedbackDelta(in.Kind, in.SharePlatform))
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("record feedback: %w", err)
	}
	feedbackTotal.WithLabelValues(feedbackLabel(in.Kind)).Inc()

	if in.DeliveryID != 0 {
		if err := repo.IncrementDeliveryClick(ctx, s.DB, in.DeliveryID); err != nil {
			log.Warn().Err(err).Uint("delivery_id", in.DeliveryID).Msg("click count update failed")
		}
	}
	return nil
}

// feedbackDelta maps an event to its counter increments.
func feedbackDelta(kind, platform string) repo.EngagementDelta {
	d := repo.EngagementDelta{TotalClicks: 1}
	switch kind {
	case FeedbackLike:
		d.ArticlesLiked = 1
	case FeedbackDislike:
		d.ArticlesDisliked = 1
	case FeedbackShare:
		d.SharesTotal = 1
		switch platform {
		case PlatformTwitter:
			d.SharesTwitter = 1
		case PlatformLinkedIn:
			d.SharesLinkedIn = 1
		case PlatformWhatsApp:
			d.SharesWhatsApp = 1
		}
	}
	return d
}

// RecordSent bumps emails_sent for userID today.
func (s *FeedbackService) RecordSent(ctx context.Context, userID string) error {
	return repo.IncrementEngagement(ctx, s.DB, userID, domain.MetricDate(s.now()), repo.EngagementDelta{EmailsSent: 1})
}

// RecordOpen counts an open of deliveryID on the delivery row and on the
// recipient's day row. Unknown ids yield ErrDeliveryNotFound.
func (s *FeedbackService) RecordOpen(ctx context.Context, deliveryID uint) error {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "RecordOpen", trace.WithAttributes(attribute.Int64("delivery.id", int64(deliveryID))))
	defer span.End()

	d, err := repo.GetDelivery(ctx, s.DB, deliveryID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrDeliveryNotFound
	}
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.IncrementDeliveryOpen(ctx, tx, deliveryID); err != nil {
			return err
		}
		return repo.IncrementEngagement(ctx, tx, d.UserID, domain.MetricDate(s.now()), repo.EngagementDelta{EmailsOpened: 1})
	})
	if err != nil {
		return err
	}
	feedbackTotal.WithLabelValues("open").Inc()
	return nil
}

// Summary aggregates the last days days (today included) for userID.
func (s *FeedbackService) Summary(ctx context.Context, userID string, days int) (repo.EngagementSummary, error) {
	if days <= 0 {
		days = 30
	}
	since := s.now().AddDate(0, 0, -(days - 1))
	return repo.SummarizeEngagement(ctx, s.DB, userID, since)
}

func (s *FeedbackService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
