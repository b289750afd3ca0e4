package templates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/news-digest-mailer/internal/domain"
)

// ErrUnknownTemplate is returned when a layout name is not registered.
var ErrUnknownTemplate = errors.New("unknown template")

// Required field names, in the order they are reported.
const (
	FieldUserID         = "user_id"
	FieldCategories     = "categories"
	FieldUserPrefs      = "user_prefs"
	FieldEmailPrefs     = "email_prefs"
	FieldHighlights     = "highlights"
	FieldBaseURL        = "base_url"
	FieldUnsubscribeURL = "unsubscribe_url"
)

var defaultRequired = []string{
	FieldUserID, FieldCategories, FieldUserPrefs, FieldEmailPrefs,
	FieldHighlights, FieldBaseURL, FieldUnsubscribeURL,
}

// Data is everything a layout needs to produce one email. A zero string or a
// nil pointer/map counts as missing for the required fields; an empty but
// non-nil Categories is present and renders a "no articles" notice.
type Data struct {
	UserID         string
	Categories     domain.CategoryMap
	UserPrefs      *domain.Subscriber
	EmailPrefs     *domain.EmailPreferences
	Highlights     *domain.Highlights
	BaseURL        string
	UnsubscribeURL string

	// DeliveryID is embedded in tracking links when non-zero.
	DeliveryID uint
	// GeneratedAt drives every date shown in the header.
	GeneratedAt time.Time
}

// TemplateDataError lists the required fields a layout found missing.
type TemplateDataError struct {
	Template string
	Missing  []string
}

func (e *TemplateDataError) Error() string {
	return fmt.Sprintf("template %s: Missing required template fields: %s", e.Template, strings.Join(e.Missing, ", "))
}

// missingFields reports which of required are absent in d.
func missingFields(required []string, d *Data) []string {
	if d == nil {
		return append([]string(nil), required...)
	}
	var out []string
	for _, f := range required {
		var absent bool
		switch f {
		case FieldUserID:
			absent = strings.TrimSpace(d.UserID) == ""
		case FieldCategories:
			absent = d.Categories == nil
		case FieldUserPrefs:
			absent = d.UserPrefs == nil
		case FieldEmailPrefs:
			absent = d.EmailPrefs == nil
		case FieldHighlights:
			absent = d.Highlights == nil
		case FieldBaseURL:
			absent = strings.TrimSpace(d.BaseURL) == ""
		case FieldUnsubscribeURL:
			absent = strings.TrimSpace(d.UnsubscribeURL) == ""
		}
		if absent {
			out = append(out, f)
		}
	}
	return out
}
