// Package services – DeliveryService
//
// This file implements DeliveryService, the orchestrator that turns a digest
// into one sent email. A send resolves the user, checks their email
// preferences, records a pending delivery, composes subject, highlights and
// HTML, hands the message to the transport, and finally records the terminal
// status. Once the pending row exists every path ends in sent or failed,
// including timeouts and panics.
//
// Concurrency: sends for the same user are serialized; sends for different
// users run in parallel. SendBulk fans out over a bounded errgroup.
//
// Observability: each send is one OpenTelemetry span; outcomes are counted in
// digest_deliveries_total.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/mailer"
	"github.com/tbourn/news-digest-mailer/internal/repo"
	"github.com/tbourn/news-digest-mailer/internal/templates"
)

const (
	DefaultSendTimeout = 60 * time.Second
	DefaultBulkWorkers = 4

	// finalizeTimeout bounds the status write that follows a send.
	finalizeTimeout = 10 * time.Second
)

// SendResult is the outcome of one send. Err carries one of the service
// sentinels for programmatic checks; Message is for humans and logs.
type SendResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DeliveryID uint   `json:"delivery_id,omitempty"`
	Err        error  `json:"-"`
}

// BulkItem is one user's digest in a bulk send.
type BulkItem struct {
	UserID string        `json:"user_id"`
	Digest domain.Digest `json:"digest"`
}

// BulkResult aggregates a bulk send. Errors follow input order and read
// "{user}: {message}".
type BulkResult struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

// DeliveryService orchestrates digest sends.
type DeliveryService struct {
	DB         *gorm.DB
	Users      UserDirectory
	Renderer   *templates.Renderer
	Subjects   *SubjectComposer
	Highlights *HighlightExtractor
	Sender     mailer.Sender
	// Feedback is optional; when set, successful sends bump emails_sent.
	Feedback *FeedbackService

	BaseURL     string
	MaxAICalls  int
	SendTimeout time.Duration
	BulkWorkers int

	locks keyLock
}

// SendDigest delivers digest to userID. It never returns a Go error: every
// failure is reported through SendResult.
func (s *DeliveryService) SendDigest(ctx context.Context, userID string, digest domain.Digest) (res SendResult) {
	tr := otel.Tracer("services/DeliveryService")
	ctx, span := tr.Start(ctx, "SendDigest",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("digest.articles", digest.ArticleCount()),
		),
	)
	defer span.End()

	timeout := s.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// sends to one reader queue behind each other, within the same deadline
	unlock, err := s.locks.lock(ctx, userID)
	if err != nil {
		res = failure(ErrTimeout, "Email delivery timed out after %s", timeout)
		if !errors.Is(err, context.DeadlineExceeded) {
			res = SendResult{Message: fmt.Sprintf("Email delivery failed: %v", err), Err: err}
		}
		s.observe(span, res)
		return res
	}
	defer unlock()

	var deliveryID uint
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("user_id", userID).Msg("send panicked")
			res = SendResult{
				Message:    fmt.Sprintf("Email delivery failed: %v", r),
				DeliveryID: deliveryID,
				Err:        fmt.Errorf("panic: %v", r),
			}
			if deliveryID != 0 {
				s.finalizeFailed(ctx, deliveryID, res.Message)
			}
		}
		s.observe(span, res)
	}()

	profile, err := s.Users.GetUserPreferences(ctx, userID)
	switch {
	case errors.Is(err, ErrUserNotFound) || (err == nil && profile == nil):
		return failure(ErrUserNotFound, "User %s not found", userID)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return failure(ErrTimeout, "Email delivery timed out after %s", timeout)
	case err != nil:
		log.Error().Err(err).Str("user_id", userID).Msg("user lookup failed")
		return SendResult{Message: fmt.Sprintf("Email delivery failed: %v", err), Err: err}
	}
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		return failure(ErrMissingEmail, "No email address for user %s", userID)
	}

	prefs := s.emailPreferences(ctx, userID)
	if !prefs.EmailEnabled {
		return failure(ErrDeliveryDisabled, "Email delivery disabled for user %s", userID)
	}

	d, err := repo.CreateDelivery(ctx, s.DB, userID, email)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("delivery recording failed")
		return failure(ErrRecordingFailed, "Failed to record delivery attempt")
	}
	deliveryID = d.ID
	span.SetAttributes(attribute.Int64("delivery.id", int64(d.ID)))

	budget := NewCallBudget(s.MaxAICalls)
	subject := s.subject(ctx, budget, userID, digest, prefs)
	highlights := s.Highlights.Extract(ctx, digest, profile)

	layout, html, err := s.Renderer.RenderRandom(s.templateData(userID, digest, profile, &prefs, &highlights, d.ID))
	if err != nil {
		return s.fail(ctx, d.ID, fmt.Errorf("%w: %w", ErrRenderFailed, err), fmt.Sprintf("Email delivery failed: %v", err))
	}
	span.SetAttributes(attribute.String("email.layout", layout))

	content, err := json.Marshal(digest.Categories)
	if err != nil {
		log.Warn().Err(err).Uint("delivery_id", d.ID).Msg("encoding delivery content failed")
	}
	if err := repo.UpdateDeliveryContent(ctx, s.DB, d.ID, subject, html, content); err != nil {
		log.Warn().Err(err).Uint("delivery_id", d.ID).Msg("storing delivery content failed")
	}

	receipt, err := s.Sender.Send(ctx, &mailer.Email{To: email, Subject: subject, HTML: html})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return s.fail(ctx, d.ID, ErrTimeout, fmt.Sprintf("Email delivery timed out after %s", timeout))
		}
		return s.fail(ctx, d.ID, fmt.Errorf("%w: %w", ErrTransportFailed, err), err.Error())
	}

	fctx, fcancel := finalizeContext(ctx)
	defer fcancel()
	if err := repo.MarkDeliverySent(fctx, s.DB, d.ID, receipt.MessageID, receipt.SentAt); err != nil {
		log.Error().Err(err).Uint("delivery_id", d.ID).Msg("marking delivery sent failed")
	}
	if s.Feedback != nil {
		if err := s.Feedback.RecordSent(fctx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("recording sent metric failed")
		}
	}

	log.Info().Str("user_id", userID).Uint("delivery_id", d.ID).Str("layout", layout).Msg("email delivered")
	return SendResult{Success: true, Message: "Email sent to " + email, DeliveryID: d.ID}
}

// SendBulk sends every item through SendDigest with at most BulkWorkers in
// flight. One failure never stops the others.
func (s *DeliveryService) SendBulk(ctx context.Context, items []BulkItem) BulkResult {
	workers := s.BulkWorkers
	if workers <= 0 {
		workers = DefaultBulkWorkers
	}
	results := make([]SendResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, it := range items {
		g.Go(func() error {
			results[i] = s.SendDigest(gctx, it.UserID, it.Digest)
			return nil
		})
	}
	_ = g.Wait()

	out := BulkResult{Total: len(items), Errors: []string{}}
	for i, r := range results {
		if r.Success {
			out.Successful++
			continue
		}
		out.Failed++
		out.Errors = append(out.Errors, items[i].UserID+": "+r.Message)
	}
	return out
}

// TestUserID is the directory entry used by SendTest when none is given.
const TestUserID = "test_user"

// SendTest sends a one-article "System Test" digest to check the transport
// configuration end to end.
func (s *DeliveryService) SendTest(ctx context.Context, userID string) SendResult {
	if strings.TrimSpace(userID) == "" {
		userID = TestUserID
	}
	var cats domain.CategoryMap
	cats.Set("System Test", []domain.Article{{
		Title:           "Email Configuration Test",
		AISummary:       "This is a test email to verify the email system configuration.",
		SourceLink:      strings.TrimRight(s.BaseURL, "/") + "/test",
		Author:          "System",
		PublicationDate: time.Now().UTC().Format(time.RFC3339),
	}})
	return s.SendDigest(ctx, userID, domain.Digest{Categories: cats, GeneratedAt: time.Now().UTC()})
}

// Preview renders digest with the mobile card layout without recording or
// sending anything. On a render error it returns the fallback document and
// the error.
func (s *DeliveryService) Preview(ctx context.Context, userID string, digest domain.Digest) (string, error) {
	tr := otel.Tracer("services/DeliveryService")
	ctx, span := tr.Start(ctx, "Preview", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	profile, err := s.Users.GetUserPreferences(ctx, userID)
	if err != nil || profile == nil {
		profile = &domain.Subscriber{UserID: userID}
	}
	prefs := s.emailPreferences(ctx, userID)
	highlights := s.Highlights.Extract(ctx, digest, profile)

	html, err := s.Renderer.Render(templates.LayoutMobileCard, s.templateData(userID, digest, profile, &prefs, &highlights, 0))
	if err != nil {
		span.RecordError(err)
		gen := digest.GeneratedAt
		if gen.IsZero() {
			gen = time.Now()
		}
		return templates.FallbackDocument(userID, digest.Categories, gen, err), err
	}
	return html, nil
}

// UnsubscribeURL is the one-click opt-out link for userID.
func (s *DeliveryService) UnsubscribeURL(userID string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/unsubscribe?user_id=" + url.QueryEscape(userID)
}

func (s *DeliveryService) templateData(userID string, digest domain.Digest, profile *domain.Subscriber, prefs *domain.EmailPreferences, h *domain.Highlights, deliveryID uint) *templates.Data {
	cats := digest.Categories
	if cats == nil {
		cats = domain.CategoryMap{}
	}
	return &templates.Data{
		UserID:         userID,
		Categories:     cats,
		UserPrefs:      profile,
		EmailPrefs:     prefs,
		Highlights:     h,
		BaseURL:        s.BaseURL,
		UnsubscribeURL: s.UnsubscribeURL(userID),
		DeliveryID:     deliveryID,
		GeneratedAt:    digest.GeneratedAt,
	}
}

func (s *DeliveryService) subject(ctx context.Context, budget *CallBudget, userID string, digest domain.Digest, prefs domain.EmailPreferences) string {
	if !prefs.PersonalizedSubject {
		return s.Subjects.Fallback(userID, digest.Categories.Names())
	}
	return s.Subjects.Compose(ctx, budget, userID, digest)
}

// emailPreferences returns the stored settings or the defaults.
func (s *DeliveryService) emailPreferences(ctx context.Context, userID string) domain.EmailPreferences {
	p, err := repo.GetEmailPreferences(ctx, s.DB, userID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			log.Warn().Err(err).Str("user_id", userID).Msg("loading email preferences failed, using defaults")
		}
		return domain.DefaultEmailPreferences(userID)
	}
	return *p
}

// fail records a terminal failure on deliveryID and builds the result.
func (s *DeliveryService) fail(ctx context.Context, deliveryID uint, err error, msg string) SendResult {
	s.finalizeFailed(ctx, deliveryID, msg)
	log.Warn().Err(err).Uint("delivery_id", deliveryID).Msg("email delivery failed")
	return SendResult{Message: msg, DeliveryID: deliveryID, Err: err}
}

func (s *DeliveryService) finalizeFailed(ctx context.Context, deliveryID uint, msg string) {
	fctx, cancel := finalizeContext(ctx)
	defer cancel()
	if err := repo.MarkDeliveryFailed(fctx, s.DB, deliveryID, msg); err != nil && !errors.Is(err, repo.ErrNotPending) {
		log.Error().Err(err).Uint("delivery_id", deliveryID).Msg("marking delivery failed failed")
	}
}

// finalizeContext detaches from the send deadline so the status write runs
// even after a timeout.
func finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}

func failure(err error, format string, args ...any) SendResult {
	return SendResult{Message: fmt.Sprintf(format, args...), Err: err}
}

func (s *DeliveryService) observe(span trace.Span, res SendResult) {
	status := "sent"
	switch {
	case res.Success:
	case errors.Is(res.Err, ErrDeliveryDisabled):
		status = "disabled"
	case res.DeliveryID == 0:
		status = "rejected"
	default:
		status = "failed"
	}
	deliveriesTotal.WithLabelValues(status).Inc()
	span.SetAttributes(attribute.String("delivery.status", status))
	if !res.Success {
		span.SetStatus(codes.Error, res.Message)
	}
}

// History returns up to limit deliveries for userID, newest first.
func (s *DeliveryService) History(ctx context.Context, userID string, limit int) ([]domain.Delivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return repo.ListDeliveries(ctx, s.DB, userID, limit)
}

// Get returns one delivery or ErrDeliveryNotFound.
func (s *DeliveryService) Get(ctx context.Context, id uint) (*domain.Delivery, error) {
	d, err := repo.GetDelivery(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDeliveryNotFound
	}
	return d, err
}
