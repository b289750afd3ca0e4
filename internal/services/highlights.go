// Package services – HighlightExtractor
//
// Highlights are the callouts above the article list: a curated one-liner,
// the first category as trending topic, and a numeric sentence and a quote
// mined from the article summaries with the sentence index. Digests without
// a quoted passage get a pull quote instead: the summary sentence closest to
// the lead article's title.
package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/search"
)

// FallbackOneLiner is used when the highlight provider fails.
const FallbackOneLiner = "Stay informed with today's most important developments."

// HighlightExtractor builds domain.Highlights for a digest.
type HighlightExtractor struct {
	// Provider is optional; nil yields FallbackOneLiner.
	Provider HighlightProvider
	// IndexOptions tune the sentence index used for stat and quote mining.
	IndexOptions []search.Option
}

// Extract never fails: every collaborator error degrades to a fallback.
func (h *HighlightExtractor) Extract(ctx context.Context, digest domain.Digest, profile *domain.Subscriber) domain.Highlights {
	tr := otel.Tracer("services/HighlightExtractor")
	ctx, span := tr.Start(ctx, "Extract",
		trace.WithAttributes(attribute.Int("digest.articles", digest.ArticleCount())),
	)
	defer span.End()

	if h == nil {
		h = &HighlightExtractor{}
	}
	var out domain.Highlights
	out.OneLiner = h.oneLiner(ctx, profile)
	if len(digest.Categories) > 0 {
		out.TrendingTopic = digest.Categories[0].Name
	}

	var texts []string
	for _, a := range digest.Articles() {
		if s := a.Summary(); s != "" {
			texts = append(texts, s)
		}
	}
	if len(texts) > 0 {
		idx := search.NewSentenceIndex(texts, h.IndexOptions...)
		out.TopStat = idx.BestStat()
		out.TopQuote = idx.BestQuote()
		if out.TopQuote == "" {
			out.TopQuote = pullQuote(idx, leadTitle(digest), out.TopStat)
		}
	}
	return out
}

// pullQuote ranks the indexed sentences against query and returns the best
// one that is not already used as the stat.
func pullQuote(idx *search.Sentences, query, stat string) string {
	for _, r := range idx.TopK(query, 2) {
		if r.Snippet != stat {
			return r.Snippet
		}
	}
	return ""
}

func leadTitle(digest domain.Digest) string {
	for _, c := range digest.Categories {
		if len(c.Articles) > 0 {
			return c.Articles[0].Title
		}
	}
	return ""
}

func (h *HighlightExtractor) oneLiner(ctx context.Context, profile *domain.Subscriber) string {
	if h.Provider == nil {
		return FallbackOneLiner
	}
	var cats []string
	if profile != nil {
		cats = profile.Categories()
	}
	text, err := h.Provider.RandomHighlight(ctx, cats)
	if err != nil {
		log.Warn().Err(err).Msg("highlight provider failed")
		return FallbackOneLiner
	}
	if text = strings.TrimSpace(text); text == "" {
		return FallbackOneLiner
	}
	return text
}
