// Command server runs the news digest mailer: the JSON delivery API, the
// tracking pages linked from sent emails, and the maintenance scheduler.
//
// @title          News Digest Mailer API
// @version        1.0
// @description    Renders and sends news digest emails, and records reader engagement.
// @BasePath       /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/news-digest-mailer/internal/ai"
	"github.com/tbourn/news-digest-mailer/internal/config"
	httpapi "github.com/tbourn/news-digest-mailer/internal/http"
	"github.com/tbourn/news-digest-mailer/internal/jobs"
	"github.com/tbourn/news-digest-mailer/internal/mailer"
	"github.com/tbourn/news-digest-mailer/internal/observability"
	"github.com/tbourn/news-digest-mailer/internal/repo"
	"github.com/tbourn/news-digest-mailer/internal/services"
	"github.com/tbourn/news-digest-mailer/internal/sysutil"
	"github.com/tbourn/news-digest-mailer/internal/templates"
)

// version is set at build time with -ldflags "-X main.version=...".
var version string

const shutdownGrace = 15 * time.Second

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.SetupLogger(sysutil.LogOptions{})
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version, "dev")
	sysutil.SetupLogger(sysutil.LogOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
		Version: ver,
	})
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	svc, err := buildServices(cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("wire services")
	}

	var sched *jobs.Scheduler
	if cfg.Jobs.CleanupSchedule != "" {
		sched, err = jobs.Start(cfg.Jobs.CleanupSchedule, &jobs.Cleanup{DB: db, RetentionDays: cfg.Jobs.OneLinerRetentionDays})
		if err != nil {
			log.Fatal().Err(err).Msg("start cleanup scheduler")
		}
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Bool("smtp", cfg.SMTPEnabled()).
			Bool("ai", cfg.AI.APIKey != "").
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := sched.Stop(sctx); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown")
	}
	if err := shutdownOTel(sctx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}

// buildServices wires the send pipeline. Without an SMTP host emails are
// logged by a dry-run sender; without an AI key subjects come from phrase
// templates only.
func buildServices(cfg config.Config, db *gorm.DB) (httpapi.Services, error) {
	var sender mailer.Sender = mailer.DryRunSender{MaxContentLength: cfg.Email.MaxContentLength}
	if cfg.SMTPEnabled() {
		sender = mailer.NewSMTPSender(mailer.Config{
			Host:             cfg.SMTP.Host,
			Port:             cfg.SMTP.Port,
			Username:         cfg.SMTP.Username,
			Password:         cfg.SMTP.Password,
			FromEmail:        cfg.SMTP.FromEmail,
			FromName:         cfg.SMTP.FromName,
			UseTLS:           cfg.SMTP.UseTLS,
			Timeout:          cfg.SMTP.Timeout,
			MaxSubjectLength: cfg.Email.MaxSubjectLength,
			MaxContentLength: cfg.Email.MaxContentLength,
			RatePerHour:      cfg.Email.RateLimitPerHour,
		})
	} else {
		log.Warn().Msg("SMTP_SERVER not set, emails will be logged instead of sent")
	}

	// gen stays a nil interface unless a key is configured.
	var gen services.Summarizer
	client, err := ai.New(ai.Config{
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
		RPS:     cfg.AI.RPS,
	})
	switch {
	case err == nil:
		gen = client
	case errors.Is(err, ai.ErrNotConfigured):
	default:
		return httpapi.Services{}, err
	}

	subjects, err := services.NewSubjectComposer(gen, cfg.Email.MaxSubjectLength)
	if err != nil {
		return httpapi.Services{}, err
	}
	renderer, err := templates.New(templates.WithImageBias(cfg.Delivery.ImageLayoutBias))
	if err != nil {
		return httpapi.Services{}, err
	}

	feedback := &services.FeedbackService{DB: db}
	return httpapi.Services{
		Deliveries: &services.DeliveryService{
			DB:          db,
			Users:       &services.SubscriberDirectory{DB: db},
			Renderer:    renderer,
			Subjects:    subjects,
			Highlights:  &services.HighlightExtractor{Provider: &services.OneLinerStore{DB: db}},
			Sender:      sender,
			Feedback:    feedback,
			BaseURL:     cfg.BaseURL,
			MaxAICalls:  cfg.AI.MaxCalls,
			SendTimeout: cfg.Delivery.SendTimeout,
			BulkWorkers: cfg.Delivery.BulkWorkers,
		},
		Feedback:    feedback,
		Preferences: &services.PreferencesService{DB: db},
	}, nil
}
