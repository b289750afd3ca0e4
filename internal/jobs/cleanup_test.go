package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/news-digest-mailer/internal/domain"
	"github.com/tbourn/news-digest-mailer/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:jobs_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCleanupRun(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.CreateIdempotency(ctx, db, "u1", "old", 1, 201, -time.Minute); err != nil {
		t.Fatalf("seed idem: %v", err)
	}
	if _, err := repo.CreateIdempotency(ctx, db, "u1", "live", 2, 201, time.Hour); err != nil {
		t.Fatalf("seed idem: %v", err)
	}
	rows := []domain.OneLiner{
		{Category: "Science", Text: "old", GenerationDate: domain.MetricDate(now.AddDate(0, 0, -40))},
		{Category: "Science", Text: "edge", GenerationDate: domain.MetricDate(now.AddDate(0, 0, -7))},
		{Category: "Science", Text: "new", GenerationDate: domain.MetricDate(now)},
	}
	if err := repo.CreateOneLiners(ctx, db, rows); err != nil {
		t.Fatalf("seed oneliners: %v", err)
	}

	c := &Cleanup{DB: db, RetentionDays: 7, Now: func() time.Time { return now }}
	rep, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Idempotency != 1 || rep.OneLiners != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}

	if _, err := repo.GetIdempotency(ctx, db, "u1", "live", now); err != nil {
		t.Fatalf("live key removed: %v", err)
	}
	var left int64
	db.Model(&domain.OneLiner{}).Count(&left)
	if left != 2 {
		t.Fatalf("want 2 one-liners left, got %d", left)
	}

	// second pass has nothing to do
	rep, err = c.Run(ctx)
	if err != nil || rep != (Report{}) {
		t.Fatalf("second run: %+v %v", rep, err)
	}
}

func TestCleanupRun_ReportsError(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrator().DropTable(&domain.Idempotency{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	c := &Cleanup{DB: db}
	if _, err := c.Run(context.Background()); err == nil {
		t.Fatalf("expected error for missing table")
	}
}

func TestParseSchedule(t *testing.T) {
	for _, spec := range []string{"@hourly", "@every 30m", "0 3 * * *"} {
		if _, err := ParseSchedule(spec); err != nil {
			t.Fatalf("ParseSchedule(%q): %v", spec, err)
		}
	}
	if _, err := ParseSchedule("every now and then"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := Start("nope", &Cleanup{}); err == nil {
		t.Fatalf("Start should reject an invalid schedule")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := Start("@every 1h", &Cleanup{DB: newTestDB(t)})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	var nilSched *Scheduler
	if err := nilSched.Stop(ctx); err != nil {
		t.Fatalf("nil stop: %v", err)
	}
}
