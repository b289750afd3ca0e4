package templates

import (
	"bytes"
	"html/template"
	"time"

	"github.com/tbourn/news-digest-mailer/internal/domain"
)

var fallbackTmpl = template.Must(template.ParseFS(htmlFS, "html/fallback.gohtml"))

type fallbackView struct {
	UserID        string
	ArticleCount  int
	CategoryCount int
	Generated     string
	Error         string
	Categories    domain.CategoryMap
}

// FallbackDocument is the minimal page shown by previews when a layout
// fails. It only depends on html/template, never on the layout set.
func FallbackDocument(userID string, categories domain.CategoryMap, generatedAt time.Time, cause error) string {
	v := fallbackView{
		UserID:        userID,
		CategoryCount: len(categories),
		Generated:     generatedAt.Format("2006-01-02 15:04:05"),
		Categories:    categories,
		Error:         "unknown error",
	}
	for _, s := range categories {
		v.ArticleCount += len(s.Articles)
	}
	if cause != nil {
		v.Error = cause.Error()
	}
	var buf bytes.Buffer
	if err := fallbackTmpl.ExecuteTemplate(&buf, "fallback", v); err != nil {
		return "<html><body><h1>News Digest Preview</h1><p>" + template.HTMLEscapeString(v.Error) + "</p></body></html>"
	}
	return buf.String()
}
