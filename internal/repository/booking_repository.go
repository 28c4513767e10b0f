package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/google/uuid"

	"github.com/shiva/swiftparcel/internal/model"
)

// BookingRepository is the only writer of the `bookings` table.
//
// Concurrency strategy: PESSIMISTIC LOCKING.
//
//	Scenario: five drivers accept the same pending booking at the same
//	millisecond.
//
//	Timeline:
//	  T1: BEGIN → SELECT booking FOR UPDATE → (booking row LOCKED)
//	  T2..T5: BEGIN → SELECT booking FOR UPDATE → (BLOCK, waiting on T1)
//	  T1: still pending + unassigned → assign driver → COMMIT → (lock released)
//	  T2: (unblocked) → re-reads booking → already assigned → ROLLBACK
//
// The advisory Redis lease in front of this narrows the race window so most
// losers never reach the transaction; this transaction is the actual
// single-assignment barrier.
type BookingRepository struct {
	pool *pgxpool.Pool
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// ─── Row codec ──────────────────────────────────────────────

const bookingColumns = `
	id, customer_id, driver_id, status, vehicle_type,
	payment_method, payment_status, distance_km,
	pickup, dropoff, package, fare, timing, driver_info, cancellation, rating,
	created_at, updated_at
`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b        model.Booking
		driverID *string
		pickup, dropoff, pkg, fare, timing []byte
		driverInfo, cancellation, rating   []byte
	)
	err := row.Scan(
		&b.ID, &b.CustomerID, &driverID, &b.Status, &b.VehicleType,
		&b.PaymentMethod, &b.PaymentStatus, &b.DistanceKm,
		&pickup, &dropoff, &pkg, &fare, &timing, &driverInfo, &cancellation, &rating,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Normalize before exposing: legacy rows carry "" where NULL is meant.
	if id := model.DriverIDOf(driverID); id != "" {
		b.DriverID = &id
	}

	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{pickup, &b.Pickup}, {dropoff, &b.Dropoff}, {pkg, &b.Package},
		{fare, &b.Fare}, {timing, &b.Timing},
	} {
		if len(f.raw) > 0 {
			if err := json.Unmarshal(f.raw, f.dst); err != nil {
				return nil, fmt.Errorf("bookings: decode %s: %w", b.ID, err)
			}
		}
	}
	if b.Timing == nil {
		b.Timing = map[string]time.Time{}
	}
	if len(driverInfo) > 0 {
		b.Driver = &model.DriverSummary{}
		if err := json.Unmarshal(driverInfo, b.Driver); err != nil {
			return nil, fmt.Errorf("bookings: decode driver_info %s: %w", b.ID, err)
		}
	}
	if len(cancellation) > 0 {
		b.Cancellation = &model.Cancellation{}
		if err := json.Unmarshal(cancellation, b.Cancellation); err != nil {
			return nil, fmt.Errorf("bookings: decode cancellation %s: %w", b.ID, err)
		}
	}
	if len(rating) > 0 {
		b.Rating = &model.Rating{}
		if err := json.Unmarshal(rating, b.Rating); err != nil {
			return nil, fmt.Errorf("bookings: decode rating %s: %w", b.ID, err)
		}
	}
	return &b, nil
}

func mustJSON(v any) []byte {
	raw, _ := json.Marshal(v)
	return raw
}

// ─── Create ─────────────────────────────────────────────────

// Create persists a validated pending booking plus its tracking row in one
// transaction and returns the stored booking.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.Status = model.StatusPending
	b.DriverID = nil // pending implies unassigned
	if b.Timing == nil {
		b.Timing = map[string]time.Time{}
	}
	b.Timing["createdAt"] = now

	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (
				id, customer_id, driver_id, status, vehicle_type,
				payment_method, payment_status, distance_km,
				pickup, dropoff, package, fare, timing,
				created_at, updated_at
			) VALUES ($1, $2, NULL, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		`,
			b.ID, b.CustomerID, b.Status, b.VehicleType,
			b.PaymentMethod, b.PaymentStatus, b.DistanceKm,
			mustJSON(b.Pickup), mustJSON(b.Dropoff), mustJSON(b.Package),
			mustJSON(b.Fare), mustJSON(b.Timing),
		)
		if err != nil {
			return fmt.Errorf("bookings: insert %s: %w", b.ID, err)
		}

		// Parallel tracking row for subscribe_tracking replay.
		_, err = tx.Exec(ctx, `
			INSERT INTO trip_tracking (booking_id, status, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (booking_id) DO UPDATE SET status = EXCLUDED.status, updated_at = now()
		`, b.ID, b.Status)
		if err != nil {
			return fmt.Errorf("bookings: insert tracking %s: %w", b.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, b.ID)
}

// GetByID fetches one booking.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, notFound(err, ErrBookingNotFound)
	}
	return b, nil
}

// ─── Accept (the assignment barrier) ────────────────────────────────

// Accept atomically assigns the booking to the driver.
//
// Inside one transaction, with the booking and driver rows locked:
//   - non-pending booking: idempotent success iff the requester already
//     won (status driver_assigned + same driver), else ErrAlreadyAssigned
//   - pending booking with a (normalized) foreign driverId: ErrAlreadyAssigned
//   - driver not online+available: ErrDriverNotAvailable
//   - otherwise: booking → driver_assigned with the driver summary inlined,
//     driver → busy with the back-pointer set
func (r *BookingRepository) Accept(ctx context.Context, bookingID, driverID string) (*model.Booking, error) {
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		// Lock ordering: booking first, then driver. Every accept path
		// takes them in this order, so no lock cycles.
		var (
			status      model.BookingStatus
			curDriver   *string
			timingRaw   []byte
		)
		err := tx.QueryRow(ctx, `
			SELECT status, driver_id, timing FROM bookings WHERE id = $1 FOR UPDATE
		`, bookingID).Scan(&status, &curDriver, &timingRaw)
		if err != nil {
			return notFound(err, ErrBookingNotFound)
		}

		assigned := model.DriverIDOf(curDriver)

		if status != model.StatusPending {
			// Idempotent re-accept by the winner succeeds; everyone else
			// gets the race-loser answer.
			if status == model.StatusDriverAssigned && assigned == driverID {
				return nil
			}
			return ErrAlreadyAssigned
		}
		if assigned != "" && assigned != driverID {
			return ErrAlreadyAssigned
		}

		// Lock and validate the driver.
		var (
			name, phone                  string
			vehicleType, vehicleNumber   *string
			isOnline, isAvailable        bool
			rating                       *float64
			totalTrips                   *int
		)
		err = tx.QueryRow(ctx, `
			SELECT name, phone, vehicle_type, vehicle_number,
			       COALESCE(is_online, FALSE), COALESCE(is_available, FALSE),
			       rating, total_trips
			FROM users
			WHERE id = $1 AND user_type = 'driver' AND active
			FOR UPDATE
		`, driverID).Scan(&name, &phone, &vehicleType, &vehicleNumber,
			&isOnline, &isAvailable, &rating, &totalTrips)
		if err != nil {
			return notFound(err, ErrDriverNotFound)
		}
		if !isOnline || !isAvailable {
			return ErrDriverNotAvailable
		}

		summary := model.DriverSummary{ID: driverID, Name: name, Phone: phone}
		if vehicleType != nil {
			summary.VehicleType = *vehicleType
		}
		if vehicleNumber != nil {
			summary.VehicleNumber = *vehicleNumber
		}
		if rating != nil {
			summary.Rating = *rating
		}
		if totalTrips != nil {
			summary.TotalTrips = *totalTrips
		}

		timing := map[string]time.Time{}
		if len(timingRaw) > 0 {
			_ = json.Unmarshal(timingRaw, &timing)
		}
		timing["assignedAt"] = time.Now().UTC()

		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET driver_id = $2, status = $3, driver_info = $4, timing = $5, updated_at = now()
			WHERE id = $1
		`, bookingID, driverID, model.StatusDriverAssigned, mustJSON(summary), mustJSON(timing))
		if err != nil {
			return fmt.Errorf("bookings: assign %s: %w", bookingID, err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE users SET is_available = FALSE, current_booking_id = $2, updated_at = now()
			WHERE id = $1
		`, driverID, bookingID)
		if err != nil {
			return fmt.Errorf("bookings: mark driver busy %s: %w", driverID, err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE trip_tracking SET status = $2, updated_at = now() WHERE booking_id = $1
		`, bookingID, model.StatusDriverAssigned)
		if err != nil {
			return fmt.Errorf("bookings: mirror tracking %s: %w", bookingID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO booking_status_updates (id, booking_id, status, updated_by, created_at)
			VALUES ($1, $2, $3, $4, now())
		`, uuid.NewString(), bookingID, model.StatusDriverAssigned, driverID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, bookingID)
}

// ─── Reject ─────────────────────────────────────────────────

// Reject returns the booking to the pool: status back to pending, driverId
// cleared, the rejection recorded so rediscovery skips this driver, and the
// driver freed. The rejection reason is kept on the booking's cancellation
// block for audit.
func (r *BookingRepository) Reject(ctx context.Context, bookingID, driverID, reason string) (*model.Booking, error) {
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var (
			status    model.BookingStatus
			curDriver *string
		)
		err := tx.QueryRow(ctx, `
			SELECT status, driver_id FROM bookings WHERE id = $1 FOR UPDATE
		`, bookingID).Scan(&status, &curDriver)
		if err != nil {
			return notFound(err, ErrBookingNotFound)
		}

		assigned := model.DriverIDOf(curDriver)

		// A driver may pre-reject a pending booking straight from the
		// notification; only record the rejection in that case.
		if assigned == driverID && status == model.StatusDriverAssigned {
			cancel := model.Cancellation{
				CancelledBy: driverID,
				Reason:      reason,
				CancelledAt: time.Now().UTC(),
			}
			_, err = tx.Exec(ctx, `
				UPDATE bookings
				SET driver_id = NULL, status = $2, driver_info = NULL,
				    cancellation = $3, updated_at = now()
				WHERE id = $1
			`, bookingID, model.StatusPending, mustJSON(cancel))
			if err != nil {
				return fmt.Errorf("bookings: unassign %s: %w", bookingID, err)
			}

			_, err = tx.Exec(ctx, `
				UPDATE users SET is_available = TRUE, current_booking_id = NULL, updated_at = now()
				WHERE id = $1
			`, driverID)
			if err != nil {
				return fmt.Errorf("bookings: free driver %s: %w", driverID, err)
			}

			_, err = tx.Exec(ctx, `
				UPDATE trip_tracking SET status = $2, updated_at = now() WHERE booking_id = $1
			`, bookingID, model.StatusPending)
			if err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO booking_rejections (id, booking_id, driver_id, reason, rejected_at)
			VALUES ($1, $2, $3, $4, now())
		`, uuid.NewString(), bookingID, driverID, reason)
		if err != nil {
			return fmt.Errorf("bookings: record rejection %s/%s: %w", bookingID, driverID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, bookingID)
}

// ─── Status update ──────────────────────────────────────────

// UpdateStatus applies one lifecycle transition, stamping timing and
// mirroring into tracking and the status trail. Delivered frees the driver
// and bumps the trip count.
func (r *BookingRepository) UpdateStatus(ctx context.Context, bookingID string, next model.BookingStatus, updatedBy, note string) (*model.Booking, error) {
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var (
			status    model.BookingStatus
			curDriver *string
			timingRaw []byte
		)
		err := tx.QueryRow(ctx, `
			SELECT status, driver_id, timing FROM bookings WHERE id = $1 FOR UPDATE
		`, bookingID).Scan(&status, &curDriver, &timingRaw)
		if err != nil {
			return notFound(err, ErrBookingNotFound)
		}

		if status == next {
			// Observers treat booking_status_update as idempotent; so does
			// the writer.
			return nil
		}
		if !model.CanTransition(status, next) {
			return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, status, next)
		}

		timing := map[string]time.Time{}
		if len(timingRaw) > 0 {
			_ = json.Unmarshal(timingRaw, &timing)
		}
		if field := model.TimingFieldFor(next); field != "" {
			timing[field] = time.Now().UTC()
		}

		_, err = tx.Exec(ctx, `
			UPDATE bookings SET status = $2, timing = $3, updated_at = now() WHERE id = $1
		`, bookingID, next, mustJSON(timing))
		if err != nil {
			return fmt.Errorf("bookings: update status %s: %w", bookingID, err)
		}

		if next == model.StatusDelivered {
			if driverID := model.DriverIDOf(curDriver); driverID != "" {
				_, err = tx.Exec(ctx, `
					UPDATE users
					SET is_available = TRUE, current_booking_id = NULL,
					    total_trips = COALESCE(total_trips, 0) + 1, updated_at = now()
					WHERE id = $1
				`, driverID)
				if err != nil {
					return fmt.Errorf("bookings: free driver on delivery: %w", err)
				}
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE trip_tracking SET status = $2, updated_at = now() WHERE booking_id = $1
		`, bookingID, next)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO booking_status_updates (id, booking_id, status, updated_by, note, created_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), now())
		`, uuid.NewString(), bookingID, next, updatedBy, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, bookingID)
}

// ─── Cancel ─────────────────────────────────────────────────

// Cancel terminates a pre-pickup booking.
//
// Refund policy: full refund before assignment; once a driver is assigned
// the fee is min(₹50, 10% of total).
func (r *BookingRepository) Cancel(ctx context.Context, bookingID, cancelledBy, reason string) (*model.Booking, error) {
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var (
			status    model.BookingStatus
			curDriver *string
			fareRaw   []byte
			timingRaw []byte
		)
		err := tx.QueryRow(ctx, `
			SELECT status, driver_id, fare, timing FROM bookings WHERE id = $1 FOR UPDATE
		`, bookingID).Scan(&status, &curDriver, &fareRaw, &timingRaw)
		if err != nil {
			return notFound(err, ErrBookingNotFound)
		}

		if !model.CanCancel(status) {
			return fmt.Errorf("%w: status %s", ErrNotCancellable, status)
		}

		var fare model.FareBreakdown
		if len(fareRaw) > 0 {
			_ = json.Unmarshal(fareRaw, &fare)
		}

		refund := fare.Total
		if status == model.StatusDriverAssigned {
			fee := math.Min(50, fare.Total*0.10)
			refund = fare.Total - fee
		}

		now := time.Now().UTC()
		cancel := model.Cancellation{
			CancelledBy:  cancelledBy,
			Reason:       reason,
			CancelledAt:  now,
			RefundAmount: refund,
		}

		timing := map[string]time.Time{}
		if len(timingRaw) > 0 {
			_ = json.Unmarshal(timingRaw, &timing)
		}
		timing["cancelledAt"] = now

		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET status = $2, cancellation = $3, timing = $4, updated_at = now()
			WHERE id = $1
		`, bookingID, model.StatusCancelled, mustJSON(cancel), mustJSON(timing))
		if err != nil {
			return fmt.Errorf("bookings: cancel %s: %w", bookingID, err)
		}

		// Free the driver and wipe both back-pointers; neither side owns
		// the other.
		if driverID := model.DriverIDOf(curDriver); driverID != "" {
			_, err = tx.Exec(ctx, `
				UPDATE users SET is_available = TRUE, current_booking_id = NULL, updated_at = now()
				WHERE id = $1
			`, driverID)
			if err != nil {
				return fmt.Errorf("bookings: free driver on cancel: %w", err)
			}
			_, err = tx.Exec(ctx, `
				UPDATE driver_locations SET current_trip_id = NULL WHERE driver_id = $1
			`, driverID)
			if err != nil {
				return fmt.Errorf("bookings: clear trip pointer on cancel: %w", err)
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE trip_tracking SET status = $2, updated_at = now() WHERE booking_id = $1
		`, bookingID, model.StatusCancelled)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO booking_status_updates (id, booking_id, status, updated_by, note, created_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), now())
		`, uuid.NewString(), bookingID, model.StatusCancelled, cancelledBy, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, bookingID)
}

// ─── Reads ──────────────────────────────────────────────────

// ListByCustomer returns a customer's bookings, newest first.
func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*model.Booking, error) {
	return r.list(ctx, `customer_id = $1`, customerID, limit, offset)
}

// ListByDriver returns a driver's bookings, newest first.
func (r *BookingRepository) ListByDriver(ctx context.Context, driverID string, limit, offset int) ([]*model.Booking, error) {
	return r.list(ctx, `driver_id = $1`, driverID, limit, offset)
}

func (r *BookingRepository) list(ctx context.Context, where, arg string, limit, offset int) ([]*model.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, arg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bookings: list: %w", err)
	}
	defer rows.Close()

	var out []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ActiveForUser returns the user's bookings in non-terminal states, for
// active-trip replay on session connect. Role selects which side of the
// booking the user is on.
func (r *BookingRepository) ActiveForUser(ctx context.Context, userID string, userType model.UserType) ([]*model.Booking, error) {
	column := "customer_id"
	if userType == model.TypeDriver {
		column = "driver_id"
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE `+column+` = $1
		  AND status NOT IN ('delivered', 'cancelled')
		ORDER BY created_at DESC
		LIMIT 10
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("bookings: active for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan active: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ActiveForDriver returns the driver's booking in the occupied state set,
// or nil. Used by the disconnect path and the occupancy check.
func (r *BookingRepository) ActiveForDriver(ctx context.Context, driverID string) (*model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE driver_id = $1
		  AND status IN ('driver_assigned', 'driver_enroute', 'driver_arrived', 'picked_up', 'in_transit', 'at_dropoff')
		ORDER BY created_at DESC
		LIMIT 1
	`, driverID)
	b, err := scanBooking(row)
	if err != nil {
		if err = notFound(err, ErrNotFound); err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// ListPending returns pending unassigned bookings for redispatch sweeps.
func (r *BookingRepository) ListPending(ctx context.Context, limit int) ([]*model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'pending'
		  AND (driver_id IS NULL OR btrim(driver_id) = '')
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("bookings: list pending: %w", err)
	}
	defer rows.Close()

	var out []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan pending: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetRating stores the customer's rating on the booking. The driver
// aggregate is updated separately by UserRepository.ApplyRating.
func (r *BookingRepository) SetRating(ctx context.Context, bookingID string, rating model.Rating) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings SET rating = $2, updated_at = now()
		WHERE id = $1 AND status = 'delivered' AND rating IS NULL
	`, bookingID, mustJSON(rating))
	if err != nil {
		return fmt.Errorf("bookings: set rating %s: %w", bookingID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// StatusTrail returns the append-only transition history for a booking.
func (r *BookingRepository) StatusTrail(ctx context.Context, bookingID string) ([]model.StatusUpdate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, booking_id, status, updated_by, COALESCE(note, ''), created_at
		FROM booking_status_updates
		WHERE booking_id = $1
		ORDER BY created_at ASC
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("bookings: status trail %s: %w", bookingID, err)
	}
	defer rows.Close()

	var out []model.StatusUpdate
	for rows.Next() {
		var u model.StatusUpdate
		if err := rows.Scan(&u.ID, &u.BookingID, &u.Status, &u.UpdatedBy, &u.Note, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
