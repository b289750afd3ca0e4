package templates

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// summaryHTML converts a lightweight-Markdown summary into sanitized inline
// HTML. Raw HTML in the source is dropped by goldmark and anything that
// survives conversion is filtered through a small allow-list.
type summaryHTML struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func newSummaryHTML() *summaryHTML {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "b", "i", "code", "ul", "ol", "li")
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return &summaryHTML{md: goldmark.New(), policy: p}
}

func (s *summaryHTML) render(src string) template.HTML {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	out := strings.TrimSpace(s.policy.Sanitize(buf.String()))
	// a single paragraph is unwrapped so it sits inline in the layout
	if strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") && strings.Count(out, "<p>") == 1 {
		out = strings.TrimSuffix(strings.TrimPrefix(out, "<p>"), "</p>")
	}
	return template.HTML(out)
}
