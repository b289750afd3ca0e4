// Delivery HTTP handlers.
//
// This file exposes the digest sending API:
//   - POST /users/{id}/deliveries   (send one digest, Idempotency-Key aware)
//   - POST /deliveries/bulk         (send many digests)
//   - POST /deliveries/test         (configuration test email)
//   - GET  /users/{id}/deliveries   (history, weak ETag support)
//   - GET  /deliveries/{id}         (one delivery)
//   - POST /previews                (render without sending)
//
// Send endpoints always answer with a SendResult body so that failed sends
// still expose their delivery id; the status code carries the outcome.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/http/middleware"
	"github.com/tbourn/news-digest-mailer/internal/repo"
	"github.com/tbourn/news-digest-mailer/internal/services"
	"github.com/tbourn/news-digest-mailer/internal/utils"
)

// MaxBulkItems caps one bulk request.
const MaxBulkItems = 500

// HeaderIdempotentReplay marks a response served from a stored send.
const HeaderIdempotentReplay = "Idempotent-Replay"

//
// DTOs
//

// SendDigestRequest is the JSON payload for a single send.
type SendDigestRequest struct {
	DigestPayload
}

// SendBulkRequest is the JSON payload for a bulk send.
type SendBulkRequest struct {
	Items []services.BulkItem `json:"items" binding:"required,min=1"`
}

// SendTestRequest optionally names the directory entry to send to.
type SendTestRequest struct {
	UserID string `json:"user_id" example:"test_user"`
}

// PreviewRequest is the JSON payload for an HTML preview.
type PreviewRequest struct {
	UserID string `json:"user_id" binding:"required" example:"reader-42"`
	DigestPayload
}

// ListDeliveriesResponse wraps a user's delivery history.
type ListDeliveriesResponse struct {
	Deliveries []domain.Delivery `json:"deliveries"`
}

//
// Helpers
//

// sendStatus maps a send outcome to an HTTP status.
func sendStatus(res services.SendResult) int {
	switch {
	case res.Success:
		return http.StatusOK
	case errors.Is(res.Err, services.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(res.Err, services.ErrMissingEmail):
		return http.StatusUnprocessableEntity
	case errors.Is(res.Err, services.ErrDeliveryDisabled):
		return http.StatusConflict
	case errors.Is(res.Err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(res.Err, services.ErrTransportFailed), errors.Is(res.Err, services.ErrRenderFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// replayResult rebuilds the answer of the original request from its row.
func replayResult(d *domain.Delivery) services.SendResult {
	res := services.SendResult{DeliveryID: d.ID}
	switch d.Status {
	case domain.StatusSent:
		res.Success = true
		res.Message = "Email sent to " + d.EmailAddress
	case domain.StatusFailed:
		if d.ErrorMessage != nil {
			res.Message = *d.ErrorMessage
		}
	default:
		res.Message = "Email delivery in progress"
	}
	return res
}

//
// Handlers
//

// SendDigest godoc
// @ID          sendDigest
// @Summary     Send a digest email to one reader
// @Description Renders the digest with a randomly chosen layout and sends it over SMTP.
// @Description Supports idempotency via the Idempotency-Key header (same key → same delivery, no second email).
// @Tags        Deliveries
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Reader ID"  example(reader-42)
// @Param       body             body    handlers.SendDigestRequest  true  "Digest content"
//
// @Success     200  {object}  services.SendResult  "Email sent (or replayed)"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  services.SendResult  "Reader not found"
// @Failure     409  {object}  services.SendResult  "Email delivery disabled"
// @Failure     422  {object}  services.SendResult  "Reader has no email address"
// @Failure     502  {object}  services.SendResult  "Render or SMTP failure"
// @Failure     504  {object}  services.SendResult  "Send timed out"
// @Router      /users/{id}/deliveries [post]
func (h *Handlers) SendDigest(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okUID := pathUser(c)
	if !okUID {
		return
	}

	// Replay path: the middleware found a stored delivery for this key.
	if id, replay := middleware.ReplayedDelivery(c); replay {
		if d, err := h.deliveries.Get(ctx, id); err == nil {
			c.Header(HeaderIdempotentReplay, "true")
			ok(c, http.StatusOK, replayResult(d))
			return
		}
	}

	var req SendDigestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.Categories == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "categories required")
		return
	}

	res := h.deliveries.SendDigest(ctx, uid, req.Digest())

	// Store path: only completed sends are replayed, so a failed send can
	// be retried with the same key.
	if key, hasKey := middleware.GetIdempotencyKey(c); hasKey && res.Success && h.db != nil {
		if _, err := repo.CreateIdempotency(ctx, h.db, uid, key, res.DeliveryID, http.StatusOK, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("storing idempotency record failed")
		}
	}

	ok(c, sendStatus(res), res)
}

// SendBulk godoc
// @ID          sendBulk
// @Summary     Send digests to many readers
// @Description Sends every item concurrently (bounded). Errors are listed in input order as "{user}: {message}".
// @Tags        Deliveries
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SendBulkRequest  true  "Bulk payload"
//
// @Success     200  {object}  services.BulkResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /deliveries/bulk [post]
func (h *Handlers) SendBulk(c *gin.Context) {
	var req SendBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "items required")
		return
	}
	if len(req.Items) > MaxBulkItems {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("too many items: max %d", MaxBulkItems))
		return
	}
	for i := range req.Items {
		req.Items[i].UserID = strings.TrimSpace(req.Items[i].UserID)
		if req.Items[i].UserID == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("items[%d]: user_id required", i))
			return
		}
		if req.Items[i].Digest.GeneratedAt.IsZero() {
			req.Items[i].Digest.GeneratedAt = time.Now().UTC()
		}
	}

	ok(c, http.StatusOK, h.deliveries.SendBulk(c.Request.Context(), req.Items))
}

// SendTest godoc
// @ID          sendTest
// @Summary     Send a configuration test email
// @Description Sends a one-article "System Test" digest. Defaults to the test_user directory entry.
// @Tags        Deliveries
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SendTestRequest  false  "Optional recipient"
//
// @Success     200  {object}  services.SendResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  services.SendResult     "Reader not found"
// @Failure     502  {object}  services.SendResult     "SMTP failure"
// @Router      /deliveries/test [post]
func (h *Handlers) SendTest(c *gin.Context) {
	var req SendTestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	res := h.deliveries.SendTest(c.Request.Context(), strings.TrimSpace(req.UserID))
	ok(c, sendStatus(res), res)
}

// ListDeliveries godoc
// @ID          listDeliveries
// @Summary     Delivery history of a reader
// @Description Returns the latest deliveries, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Deliveries
// @Produce     json
//
// @Param       id     path   string  true  "Reader ID"
// @Param       limit  query  int     false "Max items"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListDeliveriesResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id}/deliveries [get]
func (h *Handlers) ListDeliveries(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okUID := pathUser(c)
	if !okUID {
		return
	}
	limit := utils.QueryInt(c.Query("limit"), 20, 1, 100)

	// ETag pre-check (best effort).
	if h.db != nil {
		count, maxTS, err := repo.DeliveriesStats(ctx, h.db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"deliveries:%s:%d:%d:%d"`, uid, limit, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.deliveries.History(ctx, uid, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Delivery{}
	}
	ok(c, http.StatusOK, ListDeliveriesResponse{Deliveries: items})
}

// GetDelivery godoc
// @ID          getDelivery
// @Summary     Get one delivery
// @Tags        Deliveries
// @Produce     json
//
// @Param       id  path  int  true  "Delivery ID"  minimum(1)
//
// @Success     200  {object}  domain.Delivery
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Delivery not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /deliveries/{id} [get]
func (h *Handlers) GetDelivery(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "delivery id must be a positive integer")
		return
	}
	d, err := h.deliveries.Get(c.Request.Context(), uint(id))
	switch {
	case errors.Is(err, services.ErrDeliveryNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "delivery not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		ok(c, http.StatusOK, d)
	}
}

// Preview godoc
// @ID          previewDigest
// @Summary     Render a digest without sending it
// @Description Uses the mobile card layout. On a render error the body is a minimal fallback document.
// @Tags        Deliveries
// @Accept      json
// @Produce     html
//
// @Param       body  body  handlers.PreviewRequest  true  "Preview payload"
//
// @Success     200  {string}  string  "HTML document"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /previews [post]
func (h *Handlers) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id required")
		return
	}
	html, err := h.deliveries.Preview(c.Request.Context(), strings.TrimSpace(req.UserID), req.Digest())
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("preview fell back to minimal document")
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
