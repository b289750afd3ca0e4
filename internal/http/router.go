// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, compression, idempotency, and rate limiting.
//
// Two surfaces share one engine:
//   - the JSON API under cfg.APIBasePath, used by schedulers and admin tools
//   - the tracking pages at the root, reached from links inside sent emails
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/news-digest-mailer/docs"
	"github.com/tbourn/news-digest-mailer/internal/config"
	"github.com/tbourn/news-digest-mailer/internal/http/handlers"
	"github.com/tbourn/news-digest-mailer/internal/http/middleware"
	"github.com/tbourn/news-digest-mailer/internal/repo"
)

// maxRequestBytes caps request bodies. Bulk sends carry many digests.
const maxRequestBytes = 8 << 20

// Paths that bypass the rate limiter and compression.
const (
	pathOpenPixel = "/track/open"
	pathHealth    = "/health"
	pathMetrics   = "/metrics"
)

// Services are the application services the routes delegate to.
type Services struct {
	Deliveries  handlers.DeliveryService
	Feedback    handlers.FeedbackService
	Preferences handlers.PreferencesService
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per reader/IP, bypass on replay, pixel exempt)
//  9. CORS, security headers and gzip
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxRequestBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET(pathMetrics, gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	apiBase := strings.TrimRight(cfg.APIBasePath, "/")
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope:  sendScope(apiBase),
		},
		func(ctx context.Context, userID, key string, now time.Time) (uint, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return 0, nil
			}
			if err != nil {
				return 0, err
			}
			return rec.DeliveryID, nil
		},
	))

	// 8) Token-bucket rate limiter per reader/IP
	rl := middleware.NewRateLimiter(middleware.RateLimitOptions{
		RPS:    cfg.RateRPS,
		Burst:  cfg.RateBurst,
		Exempt: []string{pathOpenPixel, pathHealth, pathMetrics},
	})
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:       cfg.Security.EnableHSTS,
		HSTSMaxAge:       cfg.Security.HSTSMaxAge,
		EnablePolicy:     true,
		CrossOriginPaths: []string{pathOpenPixel},
	}))

	// Rendered previews and pages compress well; the pixel and metrics don't need it.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{pathOpenPixel, pathMetrics})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET(pathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svc.Deliveries, svc.Feedback, svc.Preferences,
		handlers.WithDB(db),
		handlers.WithIdempotencyTTL(cfg.IdempotencyTTL),
	)

	// Pages and pixel reached from emails
	r.GET(pathOpenPixel, h.TrackOpen)
	pages := r.Group("", middleware.ContentSecurityPolicy(middleware.DefaultPageCSP))
	{
		pages.GET("/", h.Index)
		pages.GET("/track/feedback", h.TrackFeedback)
		pages.GET("/unsubscribe", h.Unsubscribe)
		pages.GET("/preferences", h.PreferencesPage)
	}

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Deliveries
		api.POST("/users/:id/deliveries", h.SendDigest)
		api.GET("/users/:id/deliveries", h.ListDeliveries)
		api.POST("/deliveries/bulk", h.SendBulk)
		api.POST("/deliveries/test", h.SendTest)
		api.GET("/deliveries/:id", h.GetDelivery)
		api.POST("/previews", h.Preview)

		// Readers and preferences
		api.GET("/users/:id", h.GetSubscriber)
		api.PUT("/users/:id", h.UpsertSubscriber)
		api.GET("/users/:id/email-preferences", h.GetEmailPreferences)
		api.PUT("/users/:id/email-preferences", h.UpdateEmailPreferences)
		api.POST("/users/:id/email-preferences/enable", h.EnableEmail)
		api.POST("/users/:id/email-preferences/disable", h.DisableEmail)

		// Engagement
		api.POST("/feedback", h.RecordFeedback)
		api.GET("/users/:id/engagement", h.GetEngagement)
	}
}

// sendScope binds Idempotency-Key to the recipient of a single send. Other
// routes have no scope, so a stray header there never triggers a lookup.
func sendScope(apiBase string) func(*gin.Context) string {
	route := apiBase + "/users/:id/deliveries"
	return func(c *gin.Context) string {
		if c.Request.Method != http.MethodPost || c.FullPath() != route {
			return ""
		}
		return strings.TrimSpace(c.Param("id"))
	}
}

// corsMiddleware builds the CORS chain. Without an allowlist every origin is
// accepted (credentials stay off); otherwise only listed origins are echoed.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	headers := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey, "If-None-Match"}
	expose := []string{"X-Request-ID", "Content-Length", "ETag", handlers.HeaderIdempotentReplay, "Retry-After"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
				AllowHeaders:     headers,
				ExposeHeaders:    expose,
				AllowCredentials: false,
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     headers,
			ExposeHeaders:    expose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
