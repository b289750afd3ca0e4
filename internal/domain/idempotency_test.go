package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestIdempotency_Migration_Indexes_AndInsert(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasTable(&Idempotency{}) {
		t.Fatalf("expected table %q to exist", Idempotency{}.TableName())
	}
	if !m.HasIndex(&Idempotency{}, "ux_idem_user_key") {
		t.Fatalf("expected composite index ux_idem_user_key to exist")
	}

	now := time.Now().UTC()
	rec := &Idempotency{
		ID:         "id-1",
		UserID:     "u1",
		Key:        "k1",
		DeliveryID: 7,
		Status:     201,
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert valid: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "id-1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.UserID != "u1" || got.Key != "k1" || got.DeliveryID != 7 || got.Status != 201 {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("expected autoCreateTime to populate CreatedAt")
	}

	// same (user_id, key) must be rejected
	err := db.Create(&Idempotency{ID: "id-2", UserID: "u1", Key: "k1", DeliveryID: 8, Status: 201, ExpiresAt: now}).Error
	if err == nil {
		t.Fatalf("expected UNIQUE constraint violation on (user_id, key)")
	}
	// other user may reuse the key
	if err := db.Create(&Idempotency{ID: "id-3", UserID: "u2", Key: "k1", DeliveryID: 9, Status: 201, ExpiresAt: now}).Error; err != nil {
		t.Fatalf("insert other user: %v", err)
	}
}
