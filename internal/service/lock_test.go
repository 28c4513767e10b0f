package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLockService(t *testing.T, ttl time.Duration) (*LockService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLockService(rdb, nil, ttl), mr
}

func TestAcquireLease_FirstWins(t *testing.T) {
	svc, _ := testLockService(t, 10*time.Second)
	ctx := context.Background()

	if res, err := svc.acquireLease(ctx, "b1", "driver-1"); err != nil || res != AcquireOK {
		t.Fatalf("first acquire = %v, %v; want ok", res, err)
	}
	if res, err := svc.acquireLease(ctx, "b1", "driver-2"); err != nil || res != AcquireLocked {
		t.Errorf("second acquire = %v, %v; want locked", res, err)
	}
}

func TestAcquireLease_IdempotentForHolder(t *testing.T) {
	svc, _ := testLockService(t, 10*time.Second)
	ctx := context.Background()

	if res, _ := svc.acquireLease(ctx, "b1", "driver-1"); res != AcquireOK {
		t.Fatalf("first acquire = %v, want ok", res)
	}
	if res, _ := svc.acquireLease(ctx, "b1", "driver-1"); res != AcquireOK {
		t.Errorf("re-acquire by holder = %v, want ok", res)
	}
}

func TestAcquireLease_IndependentBookings(t *testing.T) {
	svc, _ := testLockService(t, 10*time.Second)
	ctx := context.Background()

	if res, _ := svc.acquireLease(ctx, "b1", "driver-1"); res != AcquireOK {
		t.Fatalf("b1 acquire = %v, want ok", res)
	}
	if res, _ := svc.acquireLease(ctx, "b2", "driver-1"); res != AcquireOK {
		t.Errorf("b2 acquire = %v, want ok; locks must be per booking", res)
	}
}

func TestRelease_OwnerOnly(t *testing.T) {
	svc, _ := testLockService(t, 10*time.Second)
	ctx := context.Background()

	if res, _ := svc.acquireLease(ctx, "b1", "driver-1"); res != AcquireOK {
		t.Fatal("setup acquire failed")
	}

	// A foreign release is a silent no-op; the lease survives.
	if err := svc.Release(ctx, "b1", "driver-2"); err != nil {
		t.Fatalf("foreign release errored: %v", err)
	}
	if holder, _ := svc.Holder(ctx, "b1"); holder != "driver-1" {
		t.Errorf("holder after foreign release = %q, want driver-1", holder)
	}

	if err := svc.Release(ctx, "b1", "driver-1"); err != nil {
		t.Fatalf("owner release errored: %v", err)
	}
	if holder, _ := svc.Holder(ctx, "b1"); holder != "" {
		t.Errorf("holder after owner release = %q, want empty", holder)
	}
}

func TestRelease_ExpiredLease(t *testing.T) {
	svc, mr := testLockService(t, time.Second)
	ctx := context.Background()

	if res, _ := svc.acquireLease(ctx, "b1", "driver-1"); res != AcquireOK {
		t.Fatal("setup acquire failed")
	}
	mr.FastForward(2 * time.Second)

	if err := svc.Release(ctx, "b1", "driver-1"); err != nil {
		t.Errorf("release after expiry errored: %v", err)
	}
}

func TestLease_TTLRecovery(t *testing.T) {
	svc, mr := testLockService(t, time.Second)
	ctx := context.Background()

	if res, _ := svc.acquireLease(ctx, "b1", "driver-1"); res != AcquireOK {
		t.Fatal("setup acquire failed")
	}
	if res, _ := svc.acquireLease(ctx, "b1", "driver-2"); res != AcquireLocked {
		t.Fatal("lease not held")
	}

	// The holder dies; expiry is the recovery path.
	mr.FastForward(2 * time.Second)

	if res, _ := svc.acquireLease(ctx, "b1", "driver-2"); res != AcquireOK {
		t.Errorf("acquire after expiry = %v, want ok", res)
	}
}

func TestHolder(t *testing.T) {
	svc, _ := testLockService(t, 10*time.Second)
	ctx := context.Background()

	if holder, err := svc.Holder(ctx, "b1"); err != nil || holder != "" {
		t.Errorf("Holder(unlocked) = %q, %v; want empty", holder, err)
	}
	if res, _ := svc.acquireLease(ctx, "b1", "driver-1"); res != AcquireOK {
		t.Fatal("setup acquire failed")
	}
	if holder, _ := svc.Holder(ctx, "b1"); holder != "driver-1" {
		t.Errorf("Holder = %q, want driver-1", holder)
	}
}
