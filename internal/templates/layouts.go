package templates

import (
	"bytes"
	"fmt"
	"html/template"
)

// Layout names.
const (
	LayoutNewsDigest = "news_digest"
	LayoutModernNews = "modern_news"
	LayoutNewspaper  = "newspaper"
	LayoutMagazine   = "magazine"
	LayoutMobileCard = "mobile_card"
)

// Layout is one visual rendering of a digest. The set is closed: the
// renderer only ever holds the five layouts defined in this file.
type Layout interface {
	Name() string
	RequiredFields() []string
	Render(d *Data) (string, error)
}

type shareSpec struct {
	platform string
	label    string
}

// layoutSpec captures what differs between layouts outside the markup.
type layoutSpec struct {
	name            string
	summaryCap      int
	headerDate      string
	buttons         [3]button
	shares          []shareSpec
	fullHighlights  bool
	categoryColored bool
	mobile          bool
	untitled        string
	defaultAuthor   string
}

func (s *layoutSpec) fallbackSummary(title, category string) string {
	if s.mobile {
		return fmt.Sprintf("Discover the latest insights in %s. Click to read the full story.", lower.String(category))
	}
	return "Read the full article: " + title
}

func (s *layoutSpec) articleDate(raw string) string {
	if s.mobile {
		return shortDate(raw)
	}
	return longDate(raw)
}

var layoutSpecs = []layoutSpec{
	{
		name:       LayoutNewsDigest,
		summaryCap: 300,
		headerDate: "January 02, 2006",
		buttons:    [3]button{{"👍", "Like"}, {"👎", "Dislike"}, {"➕", "More"}},
		shares: []shareSpec{
			{"twitter", "🐦"}, {"linkedin", "💼"}, {"whatsapp", "💬"}, {"email", "📧"},
		},
		fullHighlights: true,
		untitled:       "Untitled",
	},
	{
		name:       LayoutModernNews,
		summaryCap: 250,
		headerDate: "January 02",
		buttons:    [3]button{{"", "Like"}, {"", "Skip"}, {"", "More"}},
		shares:     []shareSpec{{"twitter", "🐦"}, {"linkedin", "💼"}},
		untitled:   "Untitled",
	},
	{
		name:       LayoutNewspaper,
		summaryCap: 400,
		headerDate: "Monday, January 02, 2006",
		buttons:    [3]button{{"", "Good"}, {"", "Skip"}, {"", "More"}},
		shares:     []shareSpec{{"twitter", "Share"}},
		untitled:   "Untitled",
	},
	{
		name:       LayoutMagazine,
		summaryCap: 300,
		headerDate: "January 02",
		buttons:    [3]button{{"💚", "Love"}, {"⏭️", "Skip"}, {"🔥", "More"}},
		shares:     []shareSpec{{"twitter", "🐦"}, {"linkedin", "💼"}},
		untitled:   "Untitled",
	},
	{
		name:       LayoutMobileCard,
		summaryCap: 300,
		headerDate: "January 02, 2006",
		buttons:    [3]button{{"👍", ""}, {"👎", ""}, {"⭐", ""}},
		shares: []shareSpec{
			{"twitter", "🐦 Twitter"}, {"linkedin", "💼 LinkedIn"}, {"whatsapp", "💬 WhatsApp"},
		},
		categoryColored: true,
		mobile:          true,
		untitled:        "Untitled Article",
		defaultAuthor:   "Unknown Author",
	},
}

// htmlLayout renders a layoutSpec through its named template.
type htmlLayout struct {
	spec *layoutSpec
	tmpl *template.Template
	md   *summaryHTML
}

func (l *htmlLayout) Name() string { return l.spec.name }

func (l *htmlLayout) RequiredFields() []string {
	return append([]string(nil), defaultRequired...)
}

func (l *htmlLayout) Render(d *Data) (string, error) {
	if missing := missingFields(l.RequiredFields(), d); len(missing) > 0 {
		return "", &TemplateDataError{Template: l.spec.name, Missing: missing}
	}
	v := buildView(l.spec, d, l.md)
	var buf bytes.Buffer
	if err := l.tmpl.ExecuteTemplate(&buf, l.spec.name, v); err != nil {
		return "", fmt.Errorf("template %s: %w", l.spec.name, err)
	}
	return buf.String(), nil
}
