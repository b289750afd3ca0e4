package repo

// Aggregates behind the delivery history ETag.

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/news-digest-mailer/internal/domain"
)

// DeliveriesStats returns the number of deliveries for userID and the
// greatest UpdatedAt among them (nil when the user has none).
func DeliveriesStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Delivery{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// MAX() would come back as TEXT from sqlite.
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
