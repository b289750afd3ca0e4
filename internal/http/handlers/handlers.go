// Package handlers provides HTTP handler implementations for the public API.
//
// This file declares the service contracts the handlers consume and the
// Handlers value the router binds routes to. Handlers are transport-thin:
// they validate input, delegate to application services, and translate
// service outcomes into HTTP results.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/repo"
	"github.com/tbourn/news-digest-mailer/internal/services"
)

//
// Service contracts (context-aware)
//

// DeliveryService sends digests and exposes the delivery log.
//
// Implementations must be safe for concurrent use and honor ctx.
type DeliveryService interface {
	// SendDigest renders and sends one digest. Failures are reported in the
	// result, never as a Go error.
	SendDigest(ctx context.Context, userID string, digest domain.Digest) services.SendResult
	// SendBulk sends many digests; one failure never stops the others.
	SendBulk(ctx context.Context, items []services.BulkItem) services.BulkResult
	// SendTest sends a one-article configuration test email.
	SendTest(ctx context.Context, userID string) services.SendResult
	// Preview renders digest without recording or sending. On error the
	// returned HTML is a minimal fallback document.
	Preview(ctx context.Context, userID string, digest domain.Digest) (string, error)
	// History lists the latest deliveries of userID, newest first.
	History(ctx context.Context, userID string, limit int) ([]domain.Delivery, error)
	// Get returns one delivery or services.ErrDeliveryNotFound.
	Get(ctx context.Context, id uint) (*domain.Delivery, error)
}

// FeedbackService records reader engagement.
type FeedbackService interface {
	Record(ctx context.Context, in services.FeedbackInput) error
	RecordOpen(ctx context.Context, deliveryID uint) error
	Summary(ctx context.Context, userID string, days int) (repo.EngagementSummary, error)
}

// PreferencesService manages email preferences and subscriber profiles.
type PreferencesService interface {
	Get(ctx context.Context, userID string) (domain.EmailPreferences, error)
	Update(ctx context.Context, userID string, upd services.PreferencesUpdate) (domain.EmailPreferences, error)
	SetEnabled(ctx context.Context, userID string, enabled bool) error
	GetSubscriber(ctx context.Context, userID string) (*domain.Subscriber, error)
	UpsertSubscriber(ctx context.Context, sub *domain.Subscriber) error
}

//
// Handler wiring
//

// DefaultIdempotencyTTL is how long a completed send answers retries that
// carry the same Idempotency-Key.
const DefaultIdempotencyTTL = 24 * time.Hour

// Handlers groups the HTTP endpoints. The optional DB enables weak ETags on
// history and storing idempotency records; without it both are skipped.
type Handlers struct {
	deliveries DeliveryService
	feedback   FeedbackService
	prefs      PreferencesService

	db      *gorm.DB
	idemTTL time.Duration
}

// Option customizes Handlers.
type Option func(*Handlers)

// WithDB gives handlers direct read access for ETags and idempotency.
func WithDB(db *gorm.DB) Option { return func(h *Handlers) { h.db = db } }

// WithIdempotencyTTL overrides DefaultIdempotencyTTL. Non-positive values are
// ignored.
func WithIdempotencyTTL(d time.Duration) Option {
	return func(h *Handlers) {
		if d > 0 {
			h.idemTTL = d
		}
	}
}

// New constructs Handlers bound to the given services.
func New(deliveries DeliveryService, feedback FeedbackService, prefs PreferencesService, opts ...Option) *Handlers {
	h := &Handlers{
		deliveries: deliveries,
		feedback:   feedback,
		prefs:      prefs,
		idemTTL:    DefaultIdempotencyTTL,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// pathUser returns the trimmed :id path parameter, failing the request with
// 400 when it is blank.
func pathUser(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id required")
		return "", false
	}
	return id, true
}

//
// DTOs shared by several endpoints
//

// DigestPayload is the digest content carried by send and preview requests:
// an ordered object of category name to articles.
type DigestPayload struct {
	Categories  domain.CategoryMap `json:"categories" swaggertype:"object"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Digest converts the payload. A missing generation time means now.
func (p DigestPayload) Digest() domain.Digest {
	gen := p.GeneratedAt
	if gen.IsZero() {
		gen = time.Now().UTC()
	}
	return domain.Digest{Categories: p.Categories, GeneratedAt: gen}
}
