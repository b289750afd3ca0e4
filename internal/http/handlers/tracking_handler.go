// Tracking HTTP handlers.
//
// These endpoints are the targets of links and images embedded in sent
// emails, so they answer with HTML pages or a GIF instead of JSON:
//   - GET /track/feedback   (record a click on a feedback button)
//   - GET /track/open       (1x1 open-tracking pixel)
//   - GET /unsubscribe      (one-click opt-out)
//   - GET /preferences      (read-only settings page)
//   - GET /                 (service landing page)
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/news-digest-mailer/internal/http/middleware"
	"github.com/tbourn/news-digest-mailer/internal/services"
)

// pixelGIF is a transparent 1x1 GIF89a.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0xff, 0xff,
	0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00,
	0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
	0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackFeedback godoc
// @ID          trackFeedback
// @Summary     Record feedback from an email button
// @Description Records the reader action and shows a confirmation page.
// @Tags        Tracking
// @Produce     html
//
// @Param       user_id      query  string  true   "Reader ID"
// @Param       article_id   query  int     true   "Article ID"
// @Param       feedback     query  string  true   "like | dislike | more_like_this | share | click; other kinds count as clicks"
// @Param       delivery_id  query  int     false  "Delivery the link came from"
// @Param       platform     query  string  false  "Share platform"
//
// @Success     200  {string}  string  "HTML confirmation"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing or invalid parameters"
// @Failure     500  {object}  handlers.ErrorResponse  "Failed to record feedback"
// @Router      /track/feedback [get]
func (h *Handlers) TrackFeedback(c *gin.Context) {
	uid := strings.TrimSpace(c.Query("user_id"))
	rawArticle := strings.TrimSpace(c.Query("article_id"))
	kind := strings.ToLower(strings.TrimSpace(c.Query("feedback")))
	if uid == "" || rawArticle == "" || kind == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Missing required parameters")
		return
	}
	articleID, err := strconv.ParseInt(rawArticle, 10, 64)
	if err != nil || articleID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid article id")
		return
	}
	// a mangled delivery id loses the click attribution, not the feedback
	deliveryID, _ := strconv.ParseUint(c.Query("delivery_id"), 10, 64)

	err = h.feedback.Record(c.Request.Context(), services.FeedbackInput{
		UserID:        uid,
		ArticleID:     articleID,
		Kind:          kind,
		DeliveryID:    uint(deliveryID),
		SharePlatform: c.Query("platform"),
		Source:        SourceEmail,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidFeedback) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidFeedback, "Invalid feedback type")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Failed to record feedback")
		return
	}

	middleware.LoggerFrom(c).Info().
		Int64("article_id", articleID).
		Str("feedback", kind).
		Msg("feedback recorded")

	p, ok := feedbackPages[kind]
	if !ok {
		p = feedbackPages[services.FeedbackClick]
	}
	p.PreferencesURL = userLink("/preferences", uid)
	page(c, http.StatusOK, "message", p)
}

// TrackOpen godoc
// @ID          trackOpen
// @Summary     Open-tracking pixel
// @Description Always returns a 1x1 GIF. Valid delivery ids count an open.
// @Tags        Tracking
// @Produce     image/gif
// @Param       delivery_id  query  int  true  "Delivery ID"
// @Success     200  {file}  binary  "GIF image"
// @Router      /track/open [get]
func (h *Handlers) TrackOpen(c *gin.Context) {
	if id, err := strconv.ParseUint(c.Query("delivery_id"), 10, 64); err == nil && id > 0 {
		if err := h.feedback.RecordOpen(c.Request.Context(), uint(id)); err != nil && !errors.Is(err, services.ErrDeliveryNotFound) {
			middleware.LoggerFrom(c).Warn().Err(err).Uint64("delivery_id", id).Msg("recording open failed")
		}
	}
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Header("Pragma", "no-cache")
	c.Data(http.StatusOK, "image/gif", pixelGIF)
}

// Unsubscribe godoc
// @ID          unsubscribe
// @Summary     Stop digest emails
// @Description Disables email delivery for the reader and shows a confirmation page.
// @Tags        Tracking
// @Produce     html
// @Param       user_id  query  string  true  "Reader ID"
// @Success     200  {string}  string  "HTML confirmation"
// @Failure     400  {object}  handlers.ErrorResponse  "User ID required"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /unsubscribe [get]
func (h *Handlers) Unsubscribe(c *gin.Context) {
	uid := strings.TrimSpace(c.Query("user_id"))
	if uid == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "User ID required")
		return
	}
	if err := h.prefs.SetEnabled(c.Request.Context(), uid, false); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	page(c, http.StatusOK, "message", messagePage{
		Icon:           "&#128231;",
		Title:          "You've been unsubscribed",
		Message:        "You will no longer receive news digest emails. You can turn them back on at any time.",
		PreferencesURL: userLink("/preferences", uid),
	})
}

// PreferencesPage godoc
// @ID          preferencesPage
// @Summary     Show a reader's settings
// @Tags        Tracking
// @Produce     html
// @Param       user_id  query  string  true  "Reader ID"
// @Success     200  {string}  string  "HTML page"
// @Failure     400  {object}  handlers.ErrorResponse  "User ID required"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /preferences [get]
func (h *Handlers) PreferencesPage(c *gin.Context) {
	ctx := c.Request.Context()
	uid := strings.TrimSpace(c.Query("user_id"))
	if uid == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "User ID required")
		return
	}
	sub, err := h.prefs.GetSubscriber(ctx, uid)
	if errors.Is(err, services.ErrUserNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "User not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	prefs, err := h.prefs.Get(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	page(c, http.StatusOK, "preferences", preferencesPage{
		Title:          "Manage Preferences",
		Subscriber:     sub,
		Categories:     sub.Categories(),
		Prefs:          prefs,
		UnsubscribeURL: userLink("/unsubscribe", uid),
	})
}

// Index renders the landing page.
func (h *Handlers) Index(c *gin.Context) {
	page(c, http.StatusOK, "message", messagePage{
		Icon:    "&#128240;",
		Title:   "News Digest Feedback Service",
		Message: "This service handles feedback from email digest buttons.",
	})
}
