// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the one-liner store: short highlight
// sentences generated upstream per category and day.
//
// Functions:
//
//   - CreateOneLiners(ctx, db, rows) -> error
//   - RandomOneLiner(ctx, db, category, day) -> *domain.OneLiner, error
//     Picks a random row, optionally filtered by category and/or day, and
//     bumps its usage_count. Empty filters match everything.
//   - PurgeOneLinersBefore(ctx, db, day) -> (int64, error)
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/news-digest-mailer/internal/domain"
)

// CreateOneLiners inserts rows in a single batch.
func CreateOneLiners(ctx context.Context, db *gorm.DB, rows []domain.OneLiner) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
	}
	return db.WithContext(ctx).Create(&rows).Error
}

// RandomOneLiner returns a random one-liner matching the optional filters,
// or ErrNotFound when none match.
func RandomOneLiner(ctx context.Context, db *gorm.DB, category, day string) (*domain.OneLiner, error) {
	q := db.WithContext(ctx).Model(&domain.OneLiner{})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if day != "" {
		q = q.Where("generation_date = ?", day)
	}
	var o domain.OneLiner
	if err := q.Order("RANDOM()").Limit(1).Take(&o).Error; err != nil {
		return nil, err
	}
	// usage is informational; a failed bump does not hide the result
	_ = db.WithContext(ctx).Model(&domain.OneLiner{}).
		Where("id = ?", o.ID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
	return &o, nil
}

// PurgeOneLinersBefore deletes one-liners generated before day (YYYY-MM-DD).
func PurgeOneLinersBefore(ctx context.Context, db *gorm.DB, day string) (int64, error) {
	res := db.WithContext(ctx).Where("generation_date < ?", day).Delete(&domain.OneLiner{})
	return res.RowsAffected, res.Error
}
