// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the daily engagement aggregates.
//
// Rows are keyed by (user_id, metric_date). IncrementEngagement creates the
// day row with insert-if-absent and then applies column = column + delta in a
// single UPDATE, so concurrent increments never lose counts.
package repo

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/news-digest-mailer/internal/domain"
)

// EngagementDelta lists counter increments for one day row. Zero fields are
// left untouched.
type EngagementDelta struct {
	EmailsSent       int
	EmailsOpened     int
	TotalClicks      int
	ArticlesLiked    int
	ArticlesDisliked int
	SharesTotal      int
	SharesTwitter    int
	SharesLinkedIn   int
	SharesWhatsApp   int
}

func (d EngagementDelta) columns() map[string]int {
	all := map[string]int{
		"emails_sent":       d.EmailsSent,
		"emails_opened":     d.EmailsOpened,
		"total_clicks":      d.TotalClicks,
		"articles_liked":    d.ArticlesLiked,
		"articles_disliked": d.ArticlesDisliked,
		"shares_total":      d.SharesTotal,
		"shares_twitter":    d.SharesTwitter,
		"shares_linkedin":   d.SharesLinkedIn,
		"shares_whatsapp":   d.SharesWhatsApp,
	}
	for k, v := range all {
		if v == 0 {
			delete(all, k)
		}
	}
	return all
}

// EnsureEngagementRow creates the (userID, day) row if it does not exist.
func EnsureEngagementRow(ctx context.Context, db *gorm.DB, userID, day string) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.EngagementMetrics{UserID: userID, MetricDate: day}).Error
}

// IncrementEngagement applies delta to the (userID, day) row, creating it
// first when needed.
func IncrementEngagement(ctx context.Context, db *gorm.DB, userID, day string, delta EngagementDelta) error {
	cols := delta.columns()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := EnsureEngagementRow(ctx, tx, userID, day); err != nil {
			return err
		}
		if len(cols) == 0 {
			return nil
		}
		updates := make(map[string]any, len(cols))
		for col, n := range cols {
			updates[col] = gorm.Expr(col+" + ?", n)
		}
		return tx.Model(&domain.EngagementMetrics{}).
			Where("user_id = ? AND metric_date = ?", userID, day).
			UpdateColumns(updates).Error
	})
}

// GetEngagement returns the row for (userID, day) or ErrNotFound.
func GetEngagement(ctx context.Context, db *gorm.DB, userID, day string) (*domain.EngagementMetrics, error) {
	var m domain.EngagementMetrics
	if err := db.WithContext(ctx).Where("user_id = ? AND metric_date = ?", userID, day).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// EngagementSummary is the aggregate over a window of days.
type EngagementSummary struct {
	TotalEmails   int64   `json:"total_emails"`
	TotalOpens    int64   `json:"total_opens"`
	TotalClicks   int64   `json:"total_clicks"`
	TotalLikes    int64   `json:"total_likes"`
	TotalDislikes int64   `json:"total_dislikes"`
	TotalShares   int64   `json:"total_shares"`
	AvgClickRate  float64 `json:"avg_click_rate"`
}

// SummarizeEngagement aggregates every day row for userID whose metric_date
// is on or after since (UTC). Days with no sent emails are excluded from the
// click-rate average; the average is rounded to three decimals.
func SummarizeEngagement(ctx context.Context, db *gorm.DB, userID string, since time.Time) (EngagementSummary, error) {
	var row struct {
		TotalEmails   int64
		TotalOpens    int64
		TotalClicks   int64
		TotalLikes    int64
		TotalDislikes int64
		TotalShares   int64
		AvgClickRate  *float64
	}
	err := db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(emails_sent), 0)       AS total_emails,
			COALESCE(SUM(emails_opened), 0)     AS total_opens,
			COALESCE(SUM(total_clicks), 0)      AS total_clicks,
			COALESCE(SUM(articles_liked), 0)    AS total_likes,
			COALESCE(SUM(articles_disliked), 0) AS total_dislikes,
			COALESCE(SUM(shares_total), 0)      AS total_shares,
			AVG(total_clicks * 1.0 / NULLIF(emails_sent, 0)) AS avg_click_rate
		FROM engagement_metrics
		WHERE user_id = ? AND metric_date >= ?`,
		userID, domain.MetricDate(since)).Scan(&row).Error
	if err != nil {
		return EngagementSummary{}, err
	}
	out := EngagementSummary{
		TotalEmails:   row.TotalEmails,
		TotalOpens:    row.TotalOpens,
		TotalClicks:   row.TotalClicks,
		TotalLikes:    row.TotalLikes,
		TotalDislikes: row.TotalDislikes,
		TotalShares:   row.TotalShares,
	}
	if row.AvgClickRate != nil {
		out.AvgClickRate = math.Round(*row.AvgClickRate*1000) / 1000
	}
	return out, nil
}
