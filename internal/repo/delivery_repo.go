// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Delivery
// model.
//
// Every write is a single statement so concurrent sends never interleave a
// partial update. Status transitions are guarded by `status = 'pending'`:
// once a row reaches sent or failed it is never rewritten, and the guarded
// functions return ErrNotPending instead.
//
// Functions:
//
//   - CreateDelivery(ctx, db, userID, email) -> *domain.Delivery, error
//     Inserts a pending row and returns it with its autoincrement ID.
//
//   - UpdateDeliveryContent(ctx, db, id, subject, html, content) -> error
//     Stores the rendered subject/body/digest on a pending row.
//
//   - MarkDeliverySent(ctx, db, id, externalID, sentAt) -> error
//   - MarkDeliveryFailed(ctx, db, id, message) -> error
//     Move a pending row to its terminal state.
//
//   - GetDelivery(ctx, db, id) -> *domain.Delivery, error
//   - ListDeliveries(ctx, db, userID, limit) -> []domain.Delivery, error
//
//   - IncrementDeliveryOpen / IncrementDeliveryClick(ctx, db, id) -> error
//     Bump engagement counters regardless of status.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/news-digest-mailer/internal/domain"
)

// ErrNotPending is returned by guarded updates when the row exists but has
// already reached a terminal status.
var ErrNotPending = errors.New("delivery is not pending")

// CreateDelivery inserts a pending delivery for userID addressed to email.
func CreateDelivery(ctx context.Context, db *gorm.DB, userID, email string) (*domain.Delivery, error) {
	now := time.Now().UTC()
	d := &domain.Delivery{
		UserID:       userID,
		EmailAddress: email,
		Status:       domain.StatusPending,
		Method:       domain.MethodSMTP,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDeliveryContent writes the generated subject, body and structured
// digest. Only pending rows are touched.
func UpdateDeliveryContent(ctx context.Context, db *gorm.DB, id uint, subject, html string, content []byte) error {
	return guardedUpdate(ctx, db, id, map[string]any{
		"subject_line": subject,
		"email_html":   html,
		"content":      datatypes.JSON(content),
		"updated_at":   time.Now().UTC(),
	})
}

// MarkDeliverySent finalizes a pending delivery as sent.
func MarkDeliverySent(ctx context.Context, db *gorm.DB, id uint, externalID string, sentAt time.Time) error {
	fields := map[string]any{
		"status":     domain.StatusSent,
		"sent_at":    sentAt.UTC(),
		"updated_at": time.Now().UTC(),
	}
	if externalID != "" {
		fields["external_id"] = externalID
	}
	return guardedUpdate(ctx, db, id, fields)
}

// MarkDeliveryFailed finalizes a pending delivery as failed with message.
func MarkDeliveryFailed(ctx context.Context, db *gorm.DB, id uint, message string) error {
	return guardedUpdate(ctx, db, id, map[string]any{
		"status":        domain.StatusFailed,
		"error_message": message,
		"updated_at":    time.Now().UTC(),
	})
}

func guardedUpdate(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Delivery{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Delivery{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrNotPending
}

// GetDelivery fetches a delivery by ID, or ErrNotFound.
func GetDelivery(ctx context.Context, db *gorm.DB, id uint) (*domain.Delivery, error) {
	var d domain.Delivery
	if err := db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDeliveries returns the latest limit deliveries for userID, newest
// first.
func ListDeliveries(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Delivery, error) {
	var out []domain.Delivery
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// IncrementDeliveryOpen adds one to open_count.
func IncrementDeliveryOpen(ctx context.Context, db *gorm.DB, id uint) error {
	return incrementDelivery(ctx, db, id, "open_count")
}

// IncrementDeliveryClick adds one to click_count.
func IncrementDeliveryClick(ctx context.Context, db *gorm.DB, id uint) error {
	return incrementDelivery(ctx, db, id, "click_count")
}

func incrementDelivery(ctx context.Context, db *gorm.DB, id uint, col string) error {
	res := db.WithContext(ctx).
		Model(&domain.Delivery{}).
		Where("id = ?", id).
		UpdateColumn(col, gorm.Expr(col+" + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
