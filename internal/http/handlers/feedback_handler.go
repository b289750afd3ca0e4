// Feedback HTTP handlers.
//
// This file exposes the JSON engagement endpoints:
//   - POST /feedback                 (record one reader action)
//   - GET  /users/{id}/engagement    (aggregates over the last N days)
//
// The link-driven variants used from inside emails live in
// tracking_handler.go.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/news-digest-mailer/internal/repo"
	"github.com/tbourn/news-digest-mailer/internal/services"
	"github.com/tbourn/news-digest-mailer/internal/utils"
)

// Feedback sources.
const (
	SourceAPI   = "api"
	SourceEmail = "email"
)

// FeedbackRequest is the JSON payload for recording feedback.
//
// Feedback must be one of like, dislike, more_like_this, share, click.
// Platform only matters for share.
type FeedbackRequest struct {
	UserID     string `json:"user_id" binding:"required" example:"reader-42"`
	ArticleID  int64  `json:"article_id" binding:"required,gt=0" example:"1017"`
	Feedback   string `json:"feedback" binding:"required" example:"like"`
	DeliveryID uint   `json:"delivery_id,omitempty" example:"42"`
	Platform   string `json:"platform,omitempty" example:"linkedin"`
}

// EngagementResponse is the engagement summary of one reader.
type EngagementResponse struct {
	UserID string `json:"user_id"`
	Days   int    `json:"days"`
	repo.EngagementSummary
}

// RecordFeedback godoc
// @ID          recordFeedback
// @Summary     Record reader feedback on an article
// @Description Appends a feedback event and updates today's engagement counters. Duplicates are counted.
// @Tags        Feedback
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.FeedbackRequest  true  "Feedback payload"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal server error"
// @Router      /feedback [post]
func (h *Handlers) RecordFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id, article_id and feedback are required")
		return
	}

	err := h.feedback.Record(c.Request.Context(), services.FeedbackInput{
		UserID:        req.UserID,
		ArticleID:     req.ArticleID,
		Kind:          req.Feedback,
		DeliveryID:    req.DeliveryID,
		SharePlatform: req.Platform,
		Source:        SourceAPI,
	})
	switch {
	case errors.Is(err, services.ErrInvalidFeedback):
		fail(c, http.StatusBadRequest, ErrCodeInvalidFeedback, "invalid feedback type")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		noContent(c)
	}
}

// GetEngagement godoc
// @ID          getEngagement
// @Summary     Engagement summary of a reader
// @Description Totals and average click rate over the last N days, today included.
// @Tags        Feedback
// @Produce     json
//
// @Param       id    path   string  true  "Reader ID"
// @Param       days  query  int     false "Window in days"  minimum(1) maximum(365) default(30)
//
// @Success     200  {object}  handlers.EngagementResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id}/engagement [get]
func (h *Handlers) GetEngagement(c *gin.Context) {
	uid, okUID := pathUser(c)
	if !okUID {
		return
	}
	days := utils.QueryInt(c.Query("days"), 30, 1, 365)

	sum, err := h.feedback.Summary(c.Request.Context(), uid, days)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, EngagementResponse{UserID: uid, Days: days, EngagementSummary: sum})
}
