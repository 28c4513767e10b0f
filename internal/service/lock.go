// Package service contains the core business logic for delivery dispatch.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiva/swiftparcel/internal/repository"
)

// ─── Lock results ───────────────────────────────────────────

// AcquireResult is the outcome of a booking-lock acquisition attempt.
type AcquireResult int

const (
	AcquireOK AcquireResult = iota
	AcquireLocked
	AcquireAlreadyAssigned
	AcquireNotFound
)

func (r AcquireResult) String() string {
	switch r {
	case AcquireOK:
		return "ok"
	case AcquireLocked:
		return "locked"
	case AcquireAlreadyAssigned:
		return "already_assigned"
	case AcquireNotFound:
		return "not_found"
	}
	return "unknown"
}

// ─── LockService ────────────────────────────────────────────

// LockService holds short-lived exclusive leases keyed by booking id.
//
// The lease is advisory: it narrows the race window so drivers who would
// certainly lose the accept transaction are turned away before it runs and
// nobody gets double-prompted. Correctness rests entirely on the booking
// transaction; a lost or stale lease only costs an extra round trip.
//
// Lease shape: Redis key `bookinglock:{bookingId}` → driverId, expiry
// BOOKING_LOCK_TTL_MS. Expiry is the stale-lock recovery: a holder that
// died simply stops renewing and the key vanishes.
type LockService struct {
	rdb      *redis.Client
	bookings *repository.BookingRepository
	ttl      time.Duration
}

// NewLockService creates the lock service. ttl <= 0 falls back to 10 s.
func NewLockService(rdb *redis.Client, bookings *repository.BookingRepository, ttl time.Duration) *LockService {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &LockService{rdb: rdb, bookings: bookings, ttl: ttl}
}

func lockKey(bookingID string) string {
	return "bookinglock:" + bookingID
}

// Acquire attempts to take the lease for (booking, driver).
//
// Succeeds only when the referenced booking is currently pending and
// unassigned AND no live lease exists. Re-acquisition by the current
// holder is idempotent.
func (s *LockService) Acquire(ctx context.Context, bookingID, driverID string) (AcquireResult, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return AcquireNotFound, nil
		}
		return AcquireLocked, err
	}
	if b.Status != "pending" || b.AssignedDriverID() != "" {
		return AcquireAlreadyAssigned, nil
	}

	return s.acquireLease(ctx, bookingID, driverID)
}

// acquireLease is the pure Redis half of Acquire: SETNX with idempotent
// re-acquisition by the current holder.
func (s *LockService) acquireLease(ctx context.Context, bookingID, driverID string) (AcquireResult, error) {
	ok, err := s.rdb.SetNX(ctx, lockKey(bookingID), driverID, s.ttl).Result()
	if err != nil {
		return AcquireLocked, err
	}
	if ok {
		return AcquireOK, nil
	}

	holder, err := s.rdb.Get(ctx, lockKey(bookingID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Lease expired between SETNX and GET; one retry.
			ok, err := s.rdb.SetNX(ctx, lockKey(bookingID), driverID, s.ttl).Result()
			if err != nil {
				return AcquireLocked, err
			}
			if ok {
				return AcquireOK, nil
			}
			return AcquireLocked, nil
		}
		return AcquireLocked, err
	}
	if holder == driverID {
		return AcquireOK, nil
	}
	return AcquireLocked, nil
}

// Release drops the lease iff the caller still holds it. Failures are the
// caller's to log, never to surface: the TTL recovers abandoned leases.
func (s *LockService) Release(ctx context.Context, bookingID, driverID string) error {
	key := lockKey(bookingID)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		holder, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil // already expired
			}
			return err
		}
		if holder != driverID {
			// Only the owning driver may release.
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		log.Printf("[lock] WARNING: release %s by %s failed: %v (TTL will recover)", bookingID, driverID, err)
		return err
	}
	return nil
}

// Holder returns the current lease holder, or "" when unlocked.
func (s *LockService) Holder(ctx context.Context, bookingID string) (string, error) {
	holder, err := s.rdb.Get(ctx, lockKey(bookingID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return holder, err
}
