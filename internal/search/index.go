// Package search provides a small, deterministic, concurrency-safe in-memory
// index over sentences taken from article summaries. It is used to pick the
// highlight callouts of a digest:
//
//   - TopK ranks sentences against a free-text query (Jaccard similarity)
//   - BestStat picks the sentence that reads most like a statistic
//   - BestQuote picks the longest quoted passage
//
// The index is immutable after construction and holds no logger; callers
// decide what to log. Ties are broken deterministically (shorter text first,
// then lexical order) so the same input always yields the same highlight.
//
// Scoring uses Jaccard similarity between the query token set and each
// sentence's token set: score = |Q ∩ S| / |Q ∪ S|.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Result is a ranked snippet with its similarity score.
type Result struct {
	Snippet string
	Score   float64
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minRunes  int
	maxRunes  int
	stopwords map[string]struct{}
	maxDocs   int
}

func defaultConfig() config {
	return config{
		minRunes: 20,
		maxRunes: 240,
	}
}

// WithMinRunes drops sentences shorter than n runes.
func WithMinRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minRunes = n
		}
	}
}

// WithMaxRunes drops sentences longer than n runes (0 disables the cap).
func WithMaxRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxRunes = n
		}
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	text    string
	tokens  map[string]struct{}
	numbers int
	runes   int
}

// Sentences is an index over the sentences of a set of texts.
type Sentences struct {
	cfg    config
	docs   []doc
	quotes []string
}

// NewSentenceIndex cleans every text, splits it into sentences and indexes
// those within the configured length window. Quoted passages are collected
// from the cleaned texts before splitting so multi-sentence quotes survive.
func NewSentenceIndex(texts []string, opts ...Option) *Sentences {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	s := &Sentences{cfg: cfg}
	seen := make(map[string]struct{})
	for _, raw := range texts {
		clean := CleanSummary(raw)
		if clean == "" {
			continue
		}
		s.quotes = append(s.quotes, extractQuotes(clean, cfg)...)
		for _, sent := range SplitSentences(clean) {
			if cfg.maxDocs > 0 && len(s.docs) >= cfg.maxDocs {
				return s
			}
			if _, dup := seen[sent]; dup {
				continue
			}
			n := utf8.RuneCountInString(sent)
			if n < cfg.minRunes || (cfg.maxRunes > 0 && n > cfg.maxRunes) {
				continue
			}
			toks := tokenize(sent, cfg.stopwords)
			if len(toks) == 0 {
				continue
			}
			seen[sent] = struct{}{}
			s.docs = append(s.docs, doc{
				text:    sent,
				tokens:  toks,
				numbers: len(numberRE.FindAllString(sent, -1)),
				runes:   n,
			})
		}
	}
	return s
}

// Len is the number of indexed sentences.
func (s *Sentences) Len() int { return len(s.docs) }

// TopK returns up to k best-matching sentences by Jaccard similarity.
func (s *Sentences) TopK(q string, k int) []Result {
	if len(s.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, s.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	buf := make([]scored, 0, len(s.docs))
	for _, d := range s.docs {
		score := jaccard(qTokens, d.tokens)
		if score <= 0 {
			continue
		}
		buf = append(buf, scored{snippet: d.text, score: score, runes: d.runes})
	}
	return topResults(buf, k)
}

// statVocabulary nudges BestStat towards sentences that report a figure.
var statVocabulary = map[string]struct{}{
	"percent": {}, "million": {}, "billion": {}, "trillion": {}, "thousand": {},
	"rise": {}, "rose": {}, "fell": {}, "fall": {}, "increase": {}, "increased": {},
	"decrease": {}, "decreased": {}, "growth": {}, "grew": {}, "record": {},
	"average": {}, "doubled": {}, "tripled": {}, "per": {}, "year": {}, "survey": {},
}

// BestStat returns the sentence that carries the most numeric figures,
// weighted by statistical wording. It returns "" when no sentence contains
// a number.
func (s *Sentences) BestStat() string {
	buf := make([]scored, 0, len(s.docs))
	for _, d := range s.docs {
		if d.numbers == 0 {
			continue
		}
		score := float64(d.numbers) + 2*jaccard(statVocabulary, d.tokens)
		if strings.ContainsAny(d.text, "%$€£") {
			score++
		}
		buf = append(buf, scored{snippet: d.text, score: score, runes: d.runes})
	}
	if res := topResults(buf, 1); len(res) > 0 {
		return res[0].Snippet
	}
	return ""
}

// BestQuote returns the longest quoted passage, or "".
func (s *Sentences) BestQuote() string {
	best := ""
	bestN := 0
	for _, q := range s.quotes {
		n := utf8.RuneCountInString(q)
		if n > bestN || (n == bestN && q < best) {
			best, bestN = q, n
		}
	}
	return best
}

// ----------------------------------------------------------------------------
// Helpers

type scored struct {
	snippet string
	score   float64
	runes   int
}

func topResults(buf []scored, k int) []Result {
	if len(buf) == 0 {
		return nil
	}
	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].runes != buf[b].runes {
			return buf[a].runes < buf[b].runes
		}
		return buf[a].snippet < buf[b].snippet
	})
	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for i := 0; i < k; i++ {
		out[i] = Result{Snippet: buf[i].snippet, Score: buf[i].score}
	}
	return out
}

var (
	wordRE   = regexp.MustCompile(`\p{L}+\p{N}*`)
	numberRE = regexp.MustCompile(`\d[\d,.]*%?`)
	quoteRE  = regexp.MustCompile(`"([^"]+)"|“([^”]+)”`)
)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	over := overlap(a, b)
	if over == 0 {
		return 0
	}
	return float64(over) / float64(len(a)+len(b)-over)
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func extractQuotes(text string, cfg config) []string {
	var out []string
	for _, m := range quoteRE.FindAllStringSubmatch(text, -1) {
		q := m[1]
		if q == "" {
			q = m[2]
		}
		q = strings.TrimSpace(q)
		n := utf8.RuneCountInString(q)
		if n < cfg.minRunes || (cfg.maxRunes > 0 && n > cfg.maxRunes) {
			continue
		}
		out = append(out, q)
	}
	return out
}
