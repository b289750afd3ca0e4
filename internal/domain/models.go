// Package domain defines the persistence models for email deliveries,
// per-user email preferences, feedback events, and daily engagement
// aggregates. These types are mapped with GORM and form the core data layer
// of the digest mailer.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Delivery statuses. A delivery starts pending and moves exactly once to
// one of the two terminal states.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// MethodSMTP is the only delivery method produced by this service.
const MethodSMTP = "smtp"

// Delivery represents a single attempt to send a digest email. The row is
// created in pending state before rendering so that its ID can be embedded
// in tracking links, then updated with the rendered content and finally with
// the terminal status.
//
// Fields:
//   - ID: autoincrement primary key, exposed in tracking URLs.
//   - UserID / EmailAddress: recipient identity at the time of sending.
//   - SubjectLine / EmailHTML: generated content (empty while pending).
//   - Content: the structured digest (ordered category -> articles) as JSON.
//   - Status: pending|sent|failed (enforced by DB constraint).
//   - Method: transport used, always "smtp".
//   - SentAt / ExternalID: set on success (ExternalID is the SMTP Message-ID).
//   - ErrorMessage: set on failure, verbatim transport or pipeline message.
//   - OpenCount / ClickCount: engagement counters updated by tracking.
type Delivery struct {
	ID           uint           `json:"id"            gorm:"primaryKey;autoIncrement"`
	UserID       string         `json:"user_id"       gorm:"type:varchar(64);not null;index:idx_deliveries_user,priority:1"`
	EmailAddress string         `json:"email_address" gorm:"type:varchar(320);not null"`
	SubjectLine  string         `json:"subject_line"  gorm:"type:text;not null"`
	Content      datatypes.JSON `json:"content,omitempty"`
	EmailHTML    string         `json:"-"             gorm:"column:email_html;type:text;not null"`
	Status       string         `json:"status"        gorm:"type:varchar(16);not null;index;check:status IN ('pending','sent','failed')"`
	Method       string         `json:"method"        gorm:"type:varchar(16);not null"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	ExternalID   *string        `json:"external_id,omitempty"   gorm:"type:varchar(255)"`
	ErrorMessage *string        `json:"error_message,omitempty" gorm:"type:text"`
	OpenCount    int            `json:"open_count"    gorm:"not null;default:0"`
	ClickCount   int            `json:"click_count"   gorm:"not null;default:0"`
	CreatedAt    time.Time      `json:"created_at"    gorm:"index:idx_deliveries_user,priority:2"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Delivery.
func (Delivery) TableName() string { return "email_deliveries" }

// Terminal reports whether the delivery reached sent or failed.
func (d Delivery) Terminal() bool {
	return d.Status == StatusSent || d.Status == StatusFailed
}

// EmailPreferences holds the per-user delivery settings. There is at most one
// row per user; an absent row means DefaultEmailPreferences.
//
// Boolean columns deliberately carry no DB default: GORM skips zero values
// for columns with defaults, which would turn an explicit false into true.
type EmailPreferences struct {
	ID                   uint      `json:"-"                      gorm:"primaryKey;autoIncrement"`
	UserID               string    `json:"user_id"                gorm:"type:varchar(64);not null;uniqueIndex:ux_email_prefs_user"`
	EmailEnabled         bool      `json:"email_enabled"          gorm:"not null"`
	DeliveryFrequency    string    `json:"delivery_frequency"     gorm:"type:varchar(16);not null"`
	DeliveryTime         string    `json:"delivery_time"          gorm:"type:varchar(5);not null"`
	DeliveryTimezone     string    `json:"delivery_timezone"      gorm:"type:varchar(64);not null"`
	EmailFormat          string    `json:"email_format"           gorm:"type:varchar(16);not null"`
	IncludeFeedbackLinks bool      `json:"include_feedback_links" gorm:"not null"`
	IncludeSocialSharing bool      `json:"include_social_sharing" gorm:"not null"`
	PersonalizedSubject  bool      `json:"personalized_subject"   gorm:"not null"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName returns the database table name for EmailPreferences.
func (EmailPreferences) TableName() string { return "email_preferences" }

// DefaultEmailPreferences returns the settings implied by a missing row.
func DefaultEmailPreferences(userID string) EmailPreferences {
	return EmailPreferences{
		UserID:               userID,
		EmailEnabled:         true,
		DeliveryFrequency:    "daily",
		DeliveryTime:         "08:00",
		DeliveryTimezone:     "UTC",
		EmailFormat:          "html",
		IncludeFeedbackLinks: true,
		IncludeSocialSharing: true,
		PersonalizedSubject:  true,
	}
}

// FeedbackRecord is an append-only event describing one reader action on
// one article. Duplicates are legal: they represent repeated clicks.
type FeedbackRecord struct {
	ID            uint      `json:"id"                       gorm:"primaryKey;autoIncrement"`
	UserID        string    `json:"user_id"                  gorm:"type:varchar(64);not null;index"`
	ArticleID     int64     `json:"article_id"               gorm:"not null;index"`
	DeliveryID    *uint     `json:"delivery_id,omitempty"    gorm:"index"`
	FeedbackType  string    `json:"feedback_type"            gorm:"type:varchar(32);not null"`
	Source        string    `json:"source"                   gorm:"type:varchar(32);not null"`
	SharePlatform *string   `json:"share_platform,omitempty" gorm:"type:varchar(32)"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for FeedbackRecord.
func (FeedbackRecord) TableName() string { return "feedback_history" }

// EngagementMetrics aggregates feedback events per user and UTC calendar
// day. Counters only ever grow within a day.
type EngagementMetrics struct {
	ID               uint   `json:"-"                 gorm:"primaryKey;autoIncrement"`
	UserID           string `json:"user_id"           gorm:"type:varchar(64);not null;uniqueIndex:ux_engagement_user_day,priority:1"`
	MetricDate       string `json:"metric_date"       gorm:"type:varchar(10);not null;uniqueIndex:ux_engagement_user_day,priority:2"`
	EmailsSent       int    `json:"emails_sent"       gorm:"not null;default:0"`
	EmailsOpened     int    `json:"emails_opened"     gorm:"not null;default:0"`
	TotalClicks      int    `json:"total_clicks"      gorm:"not null;default:0"`
	ArticlesLiked    int    `json:"articles_liked"    gorm:"not null;default:0"`
	ArticlesDisliked int    `json:"articles_disliked" gorm:"not null;default:0"`
	SharesTotal      int    `json:"shares_total"      gorm:"not null;default:0"`
	SharesTwitter    int    `json:"shares_twitter"    gorm:"not null;default:0"`
	SharesLinkedIn   int    `json:"shares_linkedin"   gorm:"column:shares_linkedin;not null;default:0"`
	SharesWhatsApp   int    `json:"shares_whatsapp"   gorm:"column:shares_whatsapp;not null;default:0"`
}

// TableName returns the database table name for EngagementMetrics.
func (EngagementMetrics) TableName() string { return "engagement_metrics" }

// MetricDate formats t as the UTC day bucket used by EngagementMetrics.
func MetricDate(t time.Time) string { return t.UTC().Format("2006-01-02") }

// Subscriber is the local view of a digest reader: where to send and which
// categories they follow. SelectedCategories is stored as a JSON array; rows
// written by older tooling may hold a bare category string instead.
type Subscriber struct {
	UserID             string         `json:"user_id"             gorm:"type:varchar(64);primaryKey"`
	Email              string         `json:"email"               gorm:"type:varchar(320)"`
	SelectedCategories datatypes.JSON `json:"selected_categories" swaggertype:"array,string"`
	DigestFrequency    string         `json:"digest_frequency"    gorm:"type:varchar(16);not null;default:'daily'"`
	ArticlesPerDigest  int            `json:"articles_per_digest" gorm:"not null;default:10"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Subscriber.
func (Subscriber) TableName() string { return "subscribers" }

// Categories decodes SelectedCategories. A JSON array is returned as is, a
// JSON string (or raw non-JSON text) is treated as a single category.
func (s Subscriber) Categories() []string {
	raw := strings.TrimSpace(string(s.SelectedCategories))
	if raw == "" || raw == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return compact(list)
	}
	var one string
	if err := json.Unmarshal([]byte(raw), &one); err == nil {
		// the string itself may be an encoded list
		if err := json.Unmarshal([]byte(one), &list); err == nil {
			return compact(list)
		}
		return compact([]string{one})
	}
	return compact([]string{raw})
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// OneLiner is a short curated highlight sentence produced upstream for a
// category and generation day.
type OneLiner struct {
	ID             uint      `json:"id"              gorm:"primaryKey;autoIncrement"`
	Category       string    `json:"category"        gorm:"type:varchar(128);not null;index:idx_oneliner_cat_day,priority:1"`
	Text           string    `json:"text"            gorm:"type:text;not null"`
	GenerationDate string    `json:"generation_date" gorm:"type:varchar(10);not null;index:idx_oneliner_cat_day,priority:2;index"`
	UsageCount     int       `json:"usage_count"     gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for OneLiner.
func (OneLiner) TableName() string { return "oneliners" }
