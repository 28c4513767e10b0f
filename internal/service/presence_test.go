package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testPresenceService(t *testing.T, ttl time.Duration) (*PresenceService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewPresenceService(rdb, ttl), mr
}

func TestPresence_RoundTrip(t *testing.T) {
	svc, _ := testPresenceService(t, time.Minute)
	ctx := context.Background()

	err := svc.Update(ctx, PresenceRecord{
		UserID:    "u1",
		UserType:  "driver",
		Status:    "on_trip",
		BookingID: "b1",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	rec, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		t.Fatal("Get returned nil for a live record")
	}
	if rec.Status != "on_trip" || rec.BookingID != "b1" || rec.UserType != "driver" {
		t.Errorf("record = %+v", rec)
	}
	if rec.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
}

func TestPresence_ExpiresWithTTL(t *testing.T) {
	svc, mr := testPresenceService(t, time.Minute)
	ctx := context.Background()

	if err := svc.Update(ctx, PresenceRecord{UserID: "u1", Status: "online"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	rec, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Errorf("record survived past its TTL: %+v", rec)
	}
}

func TestPresence_UpdateResetsTTL(t *testing.T) {
	svc, mr := testPresenceService(t, time.Minute)
	ctx := context.Background()

	_ = svc.Update(ctx, PresenceRecord{UserID: "u1", Status: "online"})
	mr.FastForward(45 * time.Second)
	_ = svc.Update(ctx, PresenceRecord{UserID: "u1", Status: "online"})
	mr.FastForward(45 * time.Second)

	rec, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		t.Error("refreshed record expired on the original clock")
	}
}

func TestPresence_MissingUser(t *testing.T) {
	svc, _ := testPresenceService(t, time.Minute)

	rec, err := svc.Get(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Errorf("record for unknown user: %+v", rec)
	}
}

func TestPresence_RejectsEmptyUserID(t *testing.T) {
	svc, _ := testPresenceService(t, time.Minute)
	if err := svc.Update(context.Background(), PresenceRecord{Status: "online"}); err == nil {
		t.Error("Update accepted a record without a user id")
	}
}
