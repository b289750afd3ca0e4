// Preference and subscriber HTTP handlers.
//
//   - GET  /users/{id}                         (subscriber profile)
//   - PUT  /users/{id}                         (create or replace profile)
//   - GET  /users/{id}/email-preferences       (stored or default settings)
//   - PUT  /users/{id}/email-preferences       (partial update)
//   - POST /users/{id}/email-preferences/enable
//   - POST /users/{id}/email-preferences/disable
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/services"
)

// UpsertSubscriberRequest is the JSON payload for PUT /users/{id}.
type UpsertSubscriberRequest struct {
	Email              string   `json:"email" binding:"omitempty,email,max=320" example:"reader@example.com"`
	SelectedCategories []string `json:"selected_categories" example:"Technology & Gadgets,Science & Environment"`
	DigestFrequency    string   `json:"digest_frequency" binding:"omitempty,oneof=daily weekly manual" example:"daily"`
	ArticlesPerDigest  int      `json:"articles_per_digest" binding:"omitempty,min=1,max=100" example:"10"`
}

// GetSubscriber godoc
// @ID          getSubscriber
// @Summary     Get a reader profile
// @Tags        Users
// @Produce     json
// @Param       id  path  string  true  "Reader ID"
// @Success     200  {object}  domain.Subscriber
// @Failure     404  {object}  handlers.ErrorResponse  "Reader not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id} [get]
func (h *Handlers) GetSubscriber(c *gin.Context) {
	uid, okUID := pathUser(c)
	if !okUID {
		return
	}
	sub, err := h.prefs.GetSubscriber(c.Request.Context(), uid)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		ok(c, http.StatusOK, sub)
	}
}

// UpsertSubscriber godoc
// @ID          upsertSubscriber
// @Summary     Create or replace a reader profile
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Reader ID"
// @Param       body  body  handlers.UpsertSubscriberRequest  true  "Profile"
// @Success     200  {object}  domain.Subscriber
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id} [put]
func (h *Handlers) UpsertSubscriber(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okUID := pathUser(c)
	if !okUID {
		return
	}
	var req UpsertSubscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid profile: "+err.Error())
		return
	}

	cats := make([]string, 0, len(req.SelectedCategories))
	for _, s := range req.SelectedCategories {
		if s = strings.TrimSpace(s); s != "" {
			cats = append(cats, s)
		}
	}
	raw, _ := json.Marshal(cats)
	sub := &domain.Subscriber{
		UserID:             uid,
		Email:              strings.TrimSpace(req.Email),
		SelectedCategories: datatypes.JSON(raw),
		DigestFrequency:    req.DigestFrequency,
		ArticlesPerDigest:  req.ArticlesPerDigest,
	}
	if sub.DigestFrequency == "" {
		sub.DigestFrequency = "daily"
	}
	if sub.ArticlesPerDigest == 0 {
		sub.ArticlesPerDigest = 10
	}

	if err := h.prefs.UpsertSubscriber(ctx, sub); err != nil {
		if errors.Is(err, services.ErrInvalidSubscriber) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	stored, err := h.prefs.GetSubscriber(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, stored)
}

// GetEmailPreferences godoc
// @ID          getEmailPreferences
// @Summary     Get email preferences
// @Description Returns the stored settings, or the defaults when the reader never changed them.
// @Tags        Preferences
// @Produce     json
// @Param       id  path  string  true  "Reader ID"
// @Success     200  {object}  domain.EmailPreferences
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id}/email-preferences [get]
func (h *Handlers) GetEmailPreferences(c *gin.Context) {
	uid, okUID := pathUser(c)
	if !okUID {
		return
	}
	p, err := h.prefs.Get(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdateEmailPreferences godoc
// @ID          updateEmailPreferences
// @Summary     Update email preferences
// @Description Merges the given fields into the current settings. Omitted fields keep their value.
// @Tags        Preferences
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Reader ID"
// @Param       body  body  services.PreferencesUpdate  true  "Fields to change"
// @Success     200  {object}  domain.EmailPreferences
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid preferences"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id}/email-preferences [put]
func (h *Handlers) UpdateEmailPreferences(c *gin.Context) {
	uid, okUID := pathUser(c)
	if !okUID {
		return
	}
	var upd services.PreferencesUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.prefs.Update(c.Request.Context(), uid, upd)
	switch {
	case errors.Is(err, services.ErrInvalidPreferences):
		fail(c, http.StatusBadRequest, ErrCodeInvalidPrefs, err.Error())
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		ok(c, http.StatusOK, p)
	}
}

// EnableEmail godoc
// @ID          enableEmail
// @Summary     Turn digest emails on
// @Tags        Preferences
// @Param       id  path  string  true  "Reader ID"
// @Success     204  {string}  string  "No Content"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id}/email-preferences/enable [post]
func (h *Handlers) EnableEmail(c *gin.Context) { h.setEnabled(c, true) }

// DisableEmail godoc
// @ID          disableEmail
// @Summary     Turn digest emails off
// @Tags        Preferences
// @Param       id  path  string  true  "Reader ID"
// @Success     204  {string}  string  "No Content"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id}/email-preferences/disable [post]
func (h *Handlers) DisableEmail(c *gin.Context) { h.setEnabled(c, false) }

func (h *Handlers) setEnabled(c *gin.Context, enabled bool) {
	uid, okUID := pathUser(c)
	if !okUID {
		return
	}
	if err := h.prefs.SetEnabled(c.Request.Context(), uid, enabled); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
