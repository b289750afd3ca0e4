// Response helpers shared by every handler.
//
// JSON errors always use ErrorResponse with a stable code so that schedulers
// can branch on it. Server-side failures are logged once, here, with the
// request-scoped logger; handlers never log 5xx themselves.
//
//	HTTP/1.1 404 Not Found
//	{"request_id":"7f0c...","code":"not_found","message":"delivery not found"}
//
// Send endpoints answer with services.SendResult instead, on success and on
// failure, so the delivery id survives a failed send:
//
//	HTTP/1.1 502 Bad Gateway
//	{"success":false,"message":"535 authentication failed","delivery_id":42}
package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/news-digest-mailer/internal/http/middleware"
)

// ErrorResponse is the error envelope of the JSON API.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"2b1f7f0e-2b8b-4d8e-9a2d-7a3f0c6f9e21"`
	// Stable machine-readable code, see errors.go
	Code string `json:"code" example:"not_found"`
	// Safe to show to users
	Message string `json:"message" example:"delivery not found"`
}

// fail aborts with an ErrorResponse. Statuses >= 500 are logged at error
// level together with the matched route.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("route", c.FullPath()).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get(middleware.HeaderRequestID),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute and NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }

// page renders an embedded HTML page into a buffer first, so a template
// error still yields a clean 500 instead of half a page.
func page(c *gin.Context, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Str("page", name).Msg("page render failed")
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
