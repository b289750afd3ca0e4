package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/datatypes"

	"github.com/tbourn/news-digest-mailer/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestPreferences_GetDefaults(t *testing.T) {
	s := &PreferencesService{DB: newTestDB(t)}
	p, err := s.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p != domain.DefaultEmailPreferences("u1") {
		t.Fatalf("want defaults, got %+v", p)
	}
}

func TestPreferences_UpdateMerges(t *testing.T) {
	s := &PreferencesService{DB: newTestDB(t)}
	ctx := context.Background()

	p, err := s.Update(ctx, "u1", PreferencesUpdate{
		DeliveryFrequency:    ptr("Weekly"),
		DeliveryTimezone:     ptr("Europe/Athens"),
		IncludeSocialSharing: ptr(false),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.DeliveryFrequency != "weekly" || p.DeliveryTimezone != "Europe/Athens" || p.IncludeSocialSharing {
		t.Fatalf("update not applied: %+v", p)
	}
	if !p.EmailEnabled || p.DeliveryTime != "08:00" || !p.IncludeFeedbackLinks {
		t.Fatalf("untouched fields changed: %+v", p)
	}

	// a second partial update keeps the first one
	p, err = s.Update(ctx, "u1", PreferencesUpdate{DeliveryTime: ptr("18:30")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.DeliveryTime != "18:30" || p.DeliveryFrequency != "weekly" || p.IncludeSocialSharing {
		t.Fatalf("merge lost data: %+v", p)
	}
}

func TestPreferences_UpdateValidation(t *testing.T) {
	s := &PreferencesService{DB: newTestDB(t)}
	cases := map[string]PreferencesUpdate{
		"frequency": {DeliveryFrequency: ptr("hourly")},
		"time":      {DeliveryTime: ptr("25:00")},
		"timezone":  {DeliveryTimezone: ptr("Mars/Olympus")},
		"format":    {EmailFormat: ptr("pdf")},
	}
	for name, upd := range cases {
		if _, err := s.Update(context.Background(), "u1", upd); !errors.Is(err, ErrInvalidPreferences) {
			t.Fatalf("%s: want ErrInvalidPreferences, got %v", name, err)
		}
	}
}

func TestPreferences_SetEnabled(t *testing.T) {
	s := &PreferencesService{DB: newTestDB(t)}
	ctx := context.Background()

	if err := s.SetEnabled(ctx, "u1", false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	p, _ := s.Get(ctx, "u1")
	if p.EmailEnabled {
		t.Fatalf("still enabled")
	}
	if p.DeliveryFrequency != "daily" {
		t.Fatalf("defaults not kept on first write: %+v", p)
	}

	if err := s.SetEnabled(ctx, "u1", true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if p, _ := s.Get(ctx, "u1"); !p.EmailEnabled {
		t.Fatalf("not re-enabled")
	}
	if err := s.SetEnabled(ctx, " ", true); !errors.Is(err, ErrInvalidPreferences) {
		t.Fatalf("want ErrInvalidPreferences, got %v", err)
	}
}

func TestSubscriberProfile(t *testing.T) {
	s := &PreferencesService{DB: newTestDB(t)}
	ctx := context.Background()

	if _, err := s.GetSubscriber(ctx, "u1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
	if err := s.UpsertSubscriber(ctx, &domain.Subscriber{}); !errors.Is(err, ErrInvalidSubscriber) {
		t.Fatalf("want ErrInvalidSubscriber, got %v", err)
	}

	sub := &domain.Subscriber{UserID: "u1", Email: "a@b.com", SelectedCategories: datatypes.JSON(`["Science"]`)}
	if err := s.UpsertSubscriber(ctx, sub); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.GetSubscriber(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != "a@b.com" || len(got.Categories()) != 1 || got.Categories()[0] != "Science" {
		t.Fatalf("unexpected subscriber %+v", got)
	}
}
