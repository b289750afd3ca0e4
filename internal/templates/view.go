package templates

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/news-digest-mailer/internal/domain"
)

// categoryStyle is the color and emoji of a known category.
type categoryStyle struct {
	name  string
	color string
	emoji string
}

// categoryStyles is ordered: its colors double as the title palette.
var categoryStyles = []categoryStyle{
	{"Science & Discovery", "#667eea", "🔬"},
	{"Technology & Gadgets", "#f093fb", "💻"},
	{"Health & Wellness", "#4facfe", "🏥"},
	{"Business & Finance", "#43e97b", "💼"},
	{"Global Affairs", "#fa709a", "🌍"},
	{"Environment & Climate", "#c471f5", "🌱"},
	{"Good Vibes (Positive News)", "#f6d365", "😊"},
	{"Pop Culture & Lifestyle", "#fda085", "🎭"},
	{"For Young Minds (Youth-Focused)", "#a8edea", "🎓"},
	{"DIY, Skills & How-To", "#ffd89b", "🔧"},
}

const (
	defaultColor = "#667eea"
	defaultEmoji = "📰"
	defaultIcon  = "📌"
)

func lookupStyle(category string) (categoryStyle, bool) {
	for _, s := range categoryStyles {
		if s.name == category {
			return s, true
		}
	}
	// legacy short name
	if category == "For Young Minds" {
		return categoryStyles[8], true
	}
	return categoryStyle{}, false
}

// CategoryColor returns the accent color for category.
func CategoryColor(category string) string {
	if s, ok := lookupStyle(category); ok {
		return s.color
	}
	return defaultColor
}

// CategoryEmoji returns the emoji for category, defaulting to 📰.
func CategoryEmoji(category string) string {
	if s, ok := lookupStyle(category); ok {
		return s.emoji
	}
	return defaultEmoji
}

func categoryIcon(category string) string {
	if s, ok := lookupStyle(category); ok {
		return s.emoji
	}
	return defaultIcon
}

// paletteColor returns the title color for the n-th article (1-based).
func paletteColor(n int) string {
	if n < 1 {
		n = 1
	}
	return categoryStyles[(n-1)%len(categoryStyles)].color
}

var lower = cases.Lower(language.English)

// ----------------------------------------------------------------------------
// View model

type view struct {
	Layout         string
	UserID         string
	Email          string
	HeaderDate     string
	HeaderTime     string
	Highlights     domain.Highlights
	ShowHighlights bool
	Sections       []sectionView
	ArticleCount   int
	CategoryCount  int
	BaseURL        string
	UnsubscribeURL string
	PreferencesURL string
	AccountURL     string
	OpenPixelURL   string
	Year           int
}

type button struct {
	Emoji string
	Label string
}

type sectionView struct {
	Name     string
	Icon     string
	Emoji    string
	Color    string
	Articles []articleView
}

type articleView struct {
	Title      string
	Link       string
	Author     string
	Date       string
	Summary    template.HTML
	TitleStyle template.CSS
	BadgeStyle template.CSS
	ImageURL   string
	Actions    *actionLinks
	Buttons    [3]button
	Shares     []shareLink
}

type actionLinks struct {
	Like    string
	Dislike string
	More    string
}

type shareLink struct {
	Platform string
	Label    string
	URL      string
}

// buildView turns Data into what the layout templates consume. It reads no
// clock and no randomness: the output depends on d and spec only.
func buildView(spec *layoutSpec, d *Data, md *summaryHTML) *view {
	base := strings.TrimRight(d.BaseURL, "/")
	gen := d.GeneratedAt
	v := &view{
		Layout:         spec.name,
		UserID:         d.UserID,
		Email:          "you",
		HeaderDate:     gen.Format(spec.headerDate),
		HeaderTime:     gen.Format("03:04 PM"),
		Highlights:     *d.Highlights,
		BaseURL:        base,
		UnsubscribeURL: d.UnsubscribeURL,
		PreferencesURL: base + "/preferences?user_id=" + queryEscape(d.UserID),
		AccountURL:     base + "/user_management",
		Year:           gen.Year(),
	}
	if d.UserPrefs != nil && strings.TrimSpace(d.UserPrefs.Email) != "" {
		v.Email = d.UserPrefs.Email
	}
	if d.DeliveryID != 0 {
		v.OpenPixelURL = fmt.Sprintf("%s/track/open?delivery_id=%d", base, d.DeliveryID)
	}
	if spec.fullHighlights {
		v.ShowHighlights = v.Highlights.Any()
	} else {
		v.ShowHighlights = v.Highlights.OneLiner != ""
	}

	prefs := domain.DefaultEmailPreferences(d.UserID)
	if d.EmailPrefs != nil {
		prefs = *d.EmailPrefs
	}

	counter := 0
	for _, sec := range d.Categories.NonEmpty() {
		sv := sectionView{
			Name:  sec.Name,
			Icon:  categoryIcon(sec.Name),
			Emoji: CategoryEmoji(sec.Name),
			Color: CategoryColor(sec.Name),
		}
		for _, a := range sec.Articles {
			counter++
			sv.Articles = append(sv.Articles, buildArticle(spec, d, base, prefs, sec.Name, a, counter, md))
		}
		v.Sections = append(v.Sections, sv)
		v.ArticleCount += len(sec.Articles)
	}
	v.CategoryCount = len(v.Sections)
	return v
}

func buildArticle(spec *layoutSpec, d *Data, base string, prefs domain.EmailPreferences, category string, a domain.Article, n int, md *summaryHTML) articleView {
	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = spec.untitled
	}
	link := strings.TrimSpace(a.SourceLink)
	if link == "" {
		link = "#"
	}

	summary := cleanSummary(a.Summary())
	if summary == "" {
		summary = spec.fallbackSummary(title, category)
	}
	summary = truncate(summary, spec.summaryCap)

	color := paletteColor(n)
	if spec.categoryColored {
		color = CategoryColor(category)
	}

	av := articleView{
		Title:      title,
		Link:       link,
		Author:     strings.TrimSpace(a.Author),
		Date:       spec.articleDate(a.PublicationDate),
		Summary:    md.render(summary),
		TitleStyle: template.CSS("color: " + color + ";"),
		BadgeStyle: template.CSS("background: " + color + ";"),
		Buttons:    spec.buttons,
	}
	if av.Author == "" {
		av.Author = spec.defaultAuthor
	}
	if a.HasImage() {
		av.ImageURL = strings.TrimSpace(a.ImageURL)
	}
	if prefs.IncludeFeedbackLinks && a.ID != 0 {
		av.Actions = &actionLinks{
			Like:    feedbackURL(base, d.UserID, a.ID, "like", d.DeliveryID),
			Dislike: feedbackURL(base, d.UserID, a.ID, "dislike", d.DeliveryID),
			More:    feedbackURL(base, d.UserID, a.ID, "more_like_this", d.DeliveryID),
		}
	}
	if prefs.IncludeSocialSharing {
		for _, s := range spec.shares {
			av.Shares = append(av.Shares, shareLink{
				Platform: s.platform,
				Label:    s.label,
				URL:      shareURL(s.platform, title, a.SourceLink),
			})
		}
	}
	return av
}

// feedbackURL builds the tracking link for one article action.
func feedbackURL(base, userID string, articleID int64, kind string, deliveryID uint) string {
	u := fmt.Sprintf("%s/track/feedback?user_id=%s&article_id=%d&feedback=%s",
		base, queryEscape(userID), articleID, kind)
	if deliveryID != 0 {
		u += fmt.Sprintf("&delivery_id=%d", deliveryID)
	}
	return u
}

func shareURL(platform, title, link string) string {
	t, l := queryEscape(title), queryEscape(link)
	switch platform {
	case "twitter":
		return "https://twitter.com/intent/tweet?text=" + t + "&url=" + l
	case "linkedin":
		return "https://www.linkedin.com/sharing/share-offsite/?url=" + l
	case "whatsapp":
		return "https://wa.me/?text=" + t + "%20" + l
	case "email":
		return "mailto:?subject=" + t + "&body=" + l
	}
	return l
}

// queryEscape percent-encodes s with %20 for spaces.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// cleanSummary trims whitespace and wrapping quote characters.
func cleanSummary(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}

// truncate caps s at n runes, appending "..." when cut.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

var publicationLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func parsePublicationDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range publicationLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// longDate formats as "January 02, 2006"; unparsable input keeps its first
// ten characters.
func longDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, ok := parsePublicationDate(s); ok {
		return t.Format("January 02, 2006")
	}
	if utf8.RuneCountInString(s) > 10 {
		return string([]rune(s)[:10])
	}
	return s
}

// shortDate formats as "Jan 02, 2006", or "Recent".
func shortDate(s string) string {
	if t, ok := parsePublicationDate(s); ok {
		return t.Format("Jan 02, 2006")
	}
	return "Recent"
}
