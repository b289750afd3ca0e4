package handlers

import (
	"embed"
	"html/template"
	"net/url"

	"github.com/tbourn/news-digest-mailer/internal/domain"
)

//go:embed pages/*.gohtml
var pagesFS embed.FS

var pages = template.Must(template.ParseFS(pagesFS, "pages/*.gohtml"))

// messagePage is the data of the single-message pages (feedback
// confirmation, unsubscribe, index).
type messagePage struct {
	Icon           template.HTML
	Title          string
	Message        string
	PreferencesURL string
}

// preferencesPage is the data of the read-only preferences page.
type preferencesPage struct {
	Title          string
	Subscriber     *domain.Subscriber
	Categories     []string
	Prefs          domain.EmailPreferences
	UnsubscribeURL string
}

// feedbackPages holds the confirmation shown for each feedback kind.
var feedbackPages = map[string]messagePage{
	"like": {
		Icon:    "&#128077;",
		Title:   "Thanks for the Like!",
		Message: "We'll show you more articles like this one in your future digests.",
	},
	"dislike": {
		Icon:    "&#128078;",
		Title:   "Got It!",
		Message: "We'll avoid showing you similar articles in the future. Your feedback helps us improve.",
	},
	"more_like_this": {
		Icon:    "&#10133;",
		Title:   "Perfect!",
		Message: "We'll prioritize this type of content in your future digests.",
	},
	"share": {
		Icon:    "&#128279;",
		Title:   "Thanks for Sharing!",
		Message: "Sharing helps other readers find stories worth their time.",
	},
	"click": {
		Icon:    "&#128240;",
		Title:   "Thanks!",
		Message: "Your reading activity helps us tune your digest.",
	},
}

func userLink(path, userID string) string {
	return path + "?" + url.Values{"user_id": {userID}}.Encode()
}
