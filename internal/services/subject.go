// Package services – SubjectComposer
//
// Subjects come from the AI generator when the per-send budget allows it and
// the answer fits the length limit; otherwise from the embedded phrase
// tables. The fallback phrase is chosen by hashing the user and the day, so
// one user sees a stable subject for a given day while different users vary.
package services

import (
	"context"
	_ "embed"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/mailer"
)

// DefaultMaxSubjectLength is the RFC 2822 recommended line length.
const DefaultMaxSubjectLength = 78

//go:embed phrases.yaml
var phrasesYAML []byte

type phraseTables struct {
	Unknown    string              `yaml:"unknown"`
	Categories map[string][]string `yaml:"categories"`
	Generic    []string            `yaml:"generic"`
}

func loadPhrases(raw []byte) (*phraseTables, error) {
	var p phraseTables
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("phrases: %w", err)
	}
	if len(p.Generic) == 0 || p.Unknown == "" {
		return nil, fmt.Errorf("phrases: generic and unknown entries are required")
	}
	return &p, nil
}

// SubjectComposer produces email subject lines.
type SubjectComposer struct {
	// AI is optional; nil always uses the phrase tables.
	AI        Summarizer
	MaxLength int
	Now       func() time.Time

	phrases *phraseTables
}

// NewSubjectComposer parses the embedded phrase tables.
func NewSubjectComposer(gen Summarizer, maxLength int) (*SubjectComposer, error) {
	p, err := loadPhrases(phrasesYAML)
	if err != nil {
		return nil, err
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxSubjectLength
	}
	return &SubjectComposer{AI: gen, MaxLength: maxLength, Now: time.Now, phrases: p}, nil
}

// Compose returns the subject for digest, consuming at most one call from
// budget. The result never exceeds MaxLength runes.
func (c *SubjectComposer) Compose(ctx context.Context, budget *CallBudget, userID string, digest domain.Digest) string {
	tr := otel.Tracer("services/SubjectComposer")
	ctx, span := tr.Start(ctx, "Compose", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	names := digest.Categories.Names()
	if s, ok := c.fromAI(ctx, budget, digest.ArticleCount(), names); ok {
		span.SetAttributes(attribute.String("subject.source", "ai"))
		return s
	}
	span.SetAttributes(attribute.String("subject.source", "phrases"))
	return c.Fallback(userID, names)
}

func (c *SubjectComposer) fromAI(ctx context.Context, budget *CallBudget, articles int, categories []string) (string, bool) {
	if c.AI == nil {
		return "", false
	}
	if !budget.Acquire() {
		aiCallsTotal.WithLabelValues("budget").Inc()
		return "", false
	}
	res, err := c.AI.GenerateSummary(ctx, "Subject Generation", SubjectPrompt(articles, categories))
	if err != nil {
		aiCallsTotal.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("ai subject failed")
		return "", false
	}
	s := cleanAIText(res.Content)
	if s == "" || utf8.RuneCountInString(s) > c.maxLength() {
		aiCallsTotal.WithLabelValues("rejected").Inc()
		return "", false
	}
	aiCallsTotal.WithLabelValues("ok").Inc()
	return s, true
}

// SubjectPrompt is the instruction sent to the generator.
func SubjectPrompt(articles int, categories []string) string {
	return fmt.Sprintf("Generate a personalized email subject line for a news digest with:\n- %d articles\n- Categories: %s\n\nMake it engaging, specific, and under 60 characters.",
		articles, strings.Join(categories, ", "))
}

// Fallback picks a phrase for categories without calling the generator.
func (c *SubjectComposer) Fallback(userID string, categories []string) string {
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	r := strings.NewReplacer(
		"{day}", now.Format("Monday"),
		"{date}", now.Format("Jan 02"),
		"{n}", strconv.Itoa(len(categories)),
	)

	var table []string
	if len(categories) == 1 {
		cat := categories[0]
		table = c.phrases.Categories[cat]
		if len(table) == 0 {
			r = strings.NewReplacer("{category}", cat, "{date}", now.Format("Jan 02"))
			return mailer.TruncateSubject(r.Replace(c.phrases.Unknown), c.maxLength())
		}
	} else {
		table = c.phrases.Generic
	}
	pick := table[phraseIndex(userID, domain.MetricDate(now), len(table))]
	return mailer.TruncateSubject(r.Replace(pick), c.maxLength())
}

func (c *SubjectComposer) maxLength() int {
	if c.MaxLength <= 0 {
		return DefaultMaxSubjectLength
	}
	return c.MaxLength
}

func phraseIndex(userID, day string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(day))
	return int(h.Sum32() % uint32(n))
}

// cleanAIText trims whitespace and wrapping quote characters.
func cleanAIText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
