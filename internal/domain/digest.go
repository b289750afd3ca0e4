package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Article is one summarized news item inside a digest. Only Title is
// required; every other field may be absent.
type Article struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	AISummary       string `json:"ai_summary,omitempty"`
	OriginalSummary string `json:"original_summary,omitempty"`
	SourceLink      string `json:"source_link,omitempty"`
	Author          string `json:"author,omitempty"`
	PublicationDate string `json:"publication_date,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
}

// Summary prefers the AI summary and falls back to the publisher summary.
func (a Article) Summary() string {
	if s := strings.TrimSpace(a.AISummary); s != "" {
		return s
	}
	return strings.TrimSpace(a.OriginalSummary)
}

// HasImage reports whether the article carries an http(s) image URL.
func (a Article) HasImage() bool {
	u := strings.TrimSpace(a.ImageURL)
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// CategorySection is a named group of articles.
type CategorySection struct {
	Name     string
	Articles []Article
}

// CategoryMap is an insertion-ordered mapping of category name to articles.
// It encodes as a JSON object whose key order follows the slice order, so
// rendering is stable across a store and reload.
type CategoryMap []CategorySection

// Set appends name or replaces its articles if already present.
func (m *CategoryMap) Set(name string, articles []Article) {
	for i := range *m {
		if (*m)[i].Name == name {
			(*m)[i].Articles = articles
			return
		}
	}
	*m = append(*m, CategorySection{Name: name, Articles: articles})
}

// Get returns the articles for name.
func (m CategoryMap) Get(name string) ([]Article, bool) {
	for _, s := range m {
		if s.Name == name {
			return s.Articles, true
		}
	}
	return nil, false
}

// Names returns category names in order.
func (m CategoryMap) Names() []string {
	out := make([]string, 0, len(m))
	for _, s := range m {
		out = append(out, s.Name)
	}
	return out
}

// NonEmpty returns the sections that carry at least one article.
func (m CategoryMap) NonEmpty() CategoryMap {
	out := make(CategoryMap, 0, len(m))
	for _, s := range m {
		if len(s.Articles) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// MarshalJSON encodes the map as an ordered JSON object.
func (m CategoryMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		arts := s.Articles
		if arts == nil {
			arts = []Article{}
		}
		v, err := json.Marshal(arts)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (m *CategoryMap) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("categories: expected object, got %v", tok)
	}
	out := CategoryMap{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("categories: expected key, got %v", tok)
		}
		var arts []Article
		if err := dec.Decode(&arts); err != nil {
			return fmt.Errorf("categories[%q]: %w", name, err)
		}
		out.Set(name, arts)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// Digest is the structured content of one email.
type Digest struct {
	Categories  CategoryMap `json:"categories"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// ArticleCount is the number of articles across all categories.
func (d Digest) ArticleCount() int {
	n := 0
	for _, s := range d.Categories {
		n += len(s.Articles)
	}
	return n
}

// Articles flattens the digest in category order.
func (d Digest) Articles() []Article {
	out := make([]Article, 0, d.ArticleCount())
	for _, s := range d.Categories {
		out = append(out, s.Articles...)
	}
	return out
}

// HasImages reports whether any article carries a usable image.
func (d Digest) HasImages() bool {
	for _, s := range d.Categories {
		for _, a := range s.Articles {
			if a.HasImage() {
				return true
			}
		}
	}
	return false
}

// Highlights are the short callouts shown above the article list. Any field
// may be empty; an empty field is simply not rendered.
type Highlights struct {
	TopStat       string `json:"top_stat,omitempty"`
	TopQuote      string `json:"top_quote,omitempty"`
	OneLiner      string `json:"one_liner,omitempty"`
	TrendingTopic string `json:"trending_topic,omitempty"`
}

// Any reports whether at least one highlight is set.
func (h Highlights) Any() bool {
	return h.TopStat != "" || h.TopQuote != "" || h.OneLiner != "" || h.TrendingTopic != ""
}
