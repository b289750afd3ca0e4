// Package jobs runs periodic maintenance on a cron schedule: expired
// idempotency keys and stale one-liners are purged so both tables stay
// bounded.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/repo"
)

// DefaultRetentionDays keeps one-liners for a month.
const DefaultRetentionDays = 30

// Cleanup removes expired rows.
type Cleanup struct {
	DB            *gorm.DB
	RetentionDays int
	Now           func() time.Time
}

// Report counts what one run removed.
type Report struct {
	Idempotency int64
	OneLiners   int64
}

// Run performs one cleanup pass. Each purge is attempted even when the
// other fails; the first error is returned.
func (c *Cleanup) Run(ctx context.Context) (Report, error) {
	now := time.Now().UTC()
	if c.Now != nil {
		now = c.Now().UTC()
	}
	days := c.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}

	var (
		rep      Report
		firstErr error
	)
	n, err := repo.PurgeExpiredIdempotency(ctx, c.DB, now)
	if err != nil {
		firstErr = fmt.Errorf("purge idempotency: %w", err)
	}
	rep.Idempotency = n

	cutoff := domain.MetricDate(now.AddDate(0, 0, -days))
	n, err = repo.PurgeOneLinersBefore(ctx, c.DB, cutoff)
	if err != nil && firstErr == nil {
		firstErr = fmt.Errorf("purge one-liners: %w", err)
	}
	rep.OneLiners = n

	return rep, firstErr
}

// ParseSchedule accepts five-field cron expressions and descriptors such as
// "@hourly" or "@every 30m".
func ParseSchedule(spec string) (cron.Schedule, error) {
	return cron.ParseStandard(spec)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron *cron.Cron
}

// Start schedules c.Run on spec and starts the runner. Runs never overlap:
// a tick that arrives while the previous run is active is skipped.
func Start(spec string, c *Cleanup) (*Scheduler, error) {
	sched, err := ParseSchedule(spec)
	if err != nil {
		return nil, fmt.Errorf("jobs: invalid schedule %q: %w", spec, err)
	}
	cr := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	cr.Schedule(sched, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		rep, err := c.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("cleanup failed")
		}
		log.Info().
			Int64("idempotency", rep.Idempotency).
			Int64("oneliners", rep.OneLiners).
			Msg("cleanup finished")
	}))
	cr.Start()
	return &Scheduler{cron: cr}, nil
}

// Stop halts scheduling and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil || s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes the runner's own messages to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
