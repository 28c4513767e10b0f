package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/swiftparcel/internal/model"
)

// UserRepository handles the `users` table, including the driver profile
// and its JSONB document map.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `
	id, name, phone, COALESCE(email, ''), user_type, admin_role, active,
	is_verified,
	vehicle_type, vehicle_number, verification_status, driver_is_verified,
	is_online, is_available, current_booking_id,
	current_lat, current_lng, rating, rating_count, total_trips, last_seen,
	device_token, documents,
	created_at, updated_at
`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u             model.User
		adminRole     *string
		vehicleType   *string
		vehicleNumber *string
		verStatus     *string
		driverVerified *bool
		isOnline      *bool
		isAvailable   *bool
		currentBooking *string
		lat, lng      *float64
		rating        *float64
		ratingCount   *int
		totalTrips    *int
		lastSeen      *time.Time
		deviceToken   *string
		docsRaw       []byte
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Phone, &u.Email, &u.UserType, &adminRole, &u.Active,
		&u.IsVerified,
		&vehicleType, &vehicleNumber, &verStatus, &driverVerified,
		&isOnline, &isAvailable, &currentBooking,
		&lat, &lng, &rating, &ratingCount, &totalTrips, &lastSeen,
		&deviceToken, &docsRaw,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.AdminRole = adminRole

	if u.UserType == model.TypeDriver {
		d := &model.DriverProfile{
			VerificationStatus: model.VerificationNotUploaded,
		}
		if vehicleType != nil {
			d.VehicleType = *vehicleType
		}
		if vehicleNumber != nil {
			d.VehicleNumber = *vehicleNumber
		}
		if verStatus != nil {
			d.VerificationStatus = model.VerificationStatus(*verStatus)
		}
		if driverVerified != nil {
			d.IsVerified = *driverVerified
		}
		if isOnline != nil {
			d.IsOnline = *isOnline
		}
		if isAvailable != nil {
			d.IsAvailable = *isAvailable
		}
		if currentBooking != nil {
			if id := model.NormalizeDriverValue(*currentBooking); id != "" {
				d.CurrentBookingID = &id
			}
		}
		if lat != nil && lng != nil {
			d.CurrentLocation = &model.GeoPoint{Latitude: *lat, Longitude: *lng}
		}
		if rating != nil {
			d.Rating = *rating
		}
		if ratingCount != nil {
			d.RatingCount = *ratingCount
		}
		if totalTrips != nil {
			d.TotalTrips = *totalTrips
		}
		if deviceToken != nil {
			d.DeviceToken = *deviceToken
		}
		d.LastSeen = lastSeen
		if len(docsRaw) > 0 {
			if err := json.Unmarshal(docsRaw, &d.Documents); err != nil {
				return nil, fmt.Errorf("users: decode documents for %s: %w", u.ID, err)
			}
		}
		u.Driver = d
	}
	return &u, nil
}

// GetByID fetches a single user.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return u, nil
}

// GetDriver fetches a user and verifies it is a driver.
func (r *UserRepository) GetDriver(ctx context.Context, id string) (*model.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	if u.UserType != model.TypeDriver || u.Driver == nil {
		return nil, ErrDriverNotFound
	}
	return u, nil
}

// Upsert creates a user on first authentication or refreshes the mutable
// profile fields on subsequent logins. Users are soft-deactivated, never
// deleted; an upsert on a deactivated row reactivates it.
func (r *UserRepository) Upsert(ctx context.Context, u *model.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, name, phone, email, user_type, admin_role, active, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, TRUE, FALSE, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    active = TRUE,
		    updated_at = now()
	`, u.ID, u.Name, u.Phone, u.Email, u.UserType, u.AdminRole)
	if err != nil {
		return fmt.Errorf("users: upsert %s: %w", u.ID, err)
	}
	return nil
}

// Deactivate soft-deletes a user.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("users: deactivate %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Driver presence ────────────────────────────────────────

// SetDriverStatus flips isOnline/isAvailable via the explicit status API.
// This is the ONLY path (besides the inactivity timeout job) allowed to set
// isOnline=false; transport disconnects go through TouchLastSeen instead.
func (r *UserRepository) SetDriverStatus(ctx context.Context, driverID string, isOnline, isAvailable bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET is_online = $2, is_available = $3, last_seen = now(), updated_at = now()
		WHERE id = $1 AND user_type = 'driver'
	`, driverID, isOnline, isAvailable)
	if err != nil {
		return fmt.Errorf("users: set status %s: %w", driverID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDriverNotFound
	}
	return nil
}

// TouchLastSeen advances last_seen without touching the online flags.
// Used on transport disconnect: connection loss is not driver intent.
func (r *UserRepository) TouchLastSeen(ctx context.Context, driverID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET last_seen = now(), updated_at = now()
		WHERE id = $1 AND user_type = 'driver'
	`, driverID)
	if err != nil {
		return fmt.Errorf("users: touch last_seen %s: %w", driverID, err)
	}
	return nil
}

// ForceBusy pins a driver online and unavailable. Used on disconnect while
// the driver has an active booking, so dispatch cannot double-book them
// during the reconnect window.
func (r *UserRepository) ForceBusy(ctx context.Context, driverID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET is_online = TRUE, is_available = FALSE, last_seen = now(), updated_at = now()
		WHERE id = $1 AND user_type = 'driver'
	`, driverID)
	if err != nil {
		return fmt.Errorf("users: force busy %s: %w", driverID, err)
	}
	return nil
}

// SetCustomerPresence records ordinary presence for non-driver users.
func (r *UserRepository) SetCustomerPresence(ctx context.Context, userID string, online bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET is_online = $2, last_seen = now(), updated_at = now()
		WHERE id = $1 AND user_type <> 'driver'
	`, userID, online)
	if err != nil {
		return fmt.Errorf("users: customer presence %s: %w", userID, err)
	}
	return nil
}

// UpdateDriverLocation mirrors the latest pushed location onto the driver
// row (the full fix lives in driver_locations).
func (r *UserRepository) UpdateDriverLocation(ctx context.Context, driverID string, p model.GeoPoint) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET current_lat = $2, current_lng = $3, last_seen = now(), updated_at = now()
		WHERE id = $1 AND user_type = 'driver'
	`, driverID, p.Latitude, p.Longitude)
	if err != nil {
		return fmt.Errorf("users: update location %s: %w", driverID, err)
	}
	return nil
}

// ─── Verification writes ────────────────────────────────────

// SetDocuments replaces the driver's document map. Writers standardize on
// snake_case keys; legacy camelCase keys survive only until the next write.
func (r *UserRepository) SetDocuments(ctx context.Context, driverID string, docs map[string]model.DocumentRecord) error {
	raw, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("users: encode documents: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET documents = $2, updated_at = now()
		WHERE id = $1 AND user_type = 'driver'
	`, driverID, raw)
	if err != nil {
		return fmt.Errorf("users: set documents %s: %w", driverID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDriverNotFound
	}
	return nil
}

// SetVerification writes the derived verification status plus BOTH
// isVerified flags: the nested driver one and the top-level one the admin
// dashboard reads. A single UPDATE keeps the three fields consistent.
func (r *UserRepository) SetVerification(ctx context.Context, driverID string, status model.VerificationStatus, isVerified bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET verification_status = $2,
		    driver_is_verified = $3,
		    is_verified = $3,
		    updated_at = now()
		WHERE id = $1 AND user_type = 'driver'
	`, driverID, status, isVerified)
	if err != nil {
		return fmt.Errorf("users: set verification %s: %w", driverID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDriverNotFound
	}
	return nil
}

// ─── Dispatch candidate query ───────────────────────────────

// ListDispatchCandidates returns drivers that are online, available,
// eligible (verified or approved) and have a known location. The geodesic
// radius cut happens in the dispatch engine; a linear scan over the online
// driver set is fine at the target scale.
func (r *UserRepository) ListDispatchCandidates(ctx context.Context) ([]*model.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE user_type = 'driver'
		  AND active
		  AND is_online
		  AND is_available
		  AND verification_status IN ('verified', 'approved')
		  AND current_lat IS NOT NULL
		  AND current_lng IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("users: dispatch candidates: %w", err)
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan candidate: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListPendingVerificationDrivers returns drivers awaiting admin review,
// oldest first.
func (r *UserRepository) ListPendingVerificationDrivers(ctx context.Context, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE user_type = 'driver' AND active AND verification_status = 'pending_verification'
		ORDER BY updated_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("users: pending drivers: %w", err)
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan pending driver: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ─── Rating aggregate ───────────────────────────────────────

// foldRating folds one new star value into a running average. The
// denominator is the rating count: trips delivered but never rated do not
// dilute the average, and rating never touches the trip counter (that is
// bumped by the delivered transition).
func foldRating(avg float64, count, stars int) (float64, int) {
	if count < 0 {
		count = 0
	}
	return (avg*float64(count) + float64(stars)) / float64(count+1), count + 1
}

// ApplyRating folds one new rating into the driver's aggregate under a row
// lock, so concurrent ratings cannot lose each other's contribution.
func (r *UserRepository) ApplyRating(ctx context.Context, driverID string, stars int) error {
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var (
			avg   *float64
			count *int
		)
		err := tx.QueryRow(ctx, `
			SELECT rating, rating_count FROM users
			WHERE id = $1 AND user_type = 'driver'
			FOR UPDATE
		`, driverID).Scan(&avg, &count)
		if err != nil {
			return notFound(err, ErrDriverNotFound)
		}

		var curAvg float64
		var curCount int
		if avg != nil {
			curAvg = *avg
		}
		if count != nil {
			curCount = *count
		}
		nextAvg, nextCount := foldRating(curAvg, curCount, stars)

		_, err = tx.Exec(ctx, `
			UPDATE users
			SET rating = $2, rating_count = $3, updated_at = now()
			WHERE id = $1
		`, driverID, nextAvg, nextCount)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrDriverNotFound) {
			return err
		}
		return fmt.Errorf("users: apply rating %s: %w", driverID, err)
	}
	return nil
}

// SetDeviceToken stores the driver's push-notification device token,
// refreshed by the app on login and token rotation.
func (r *UserRepository) SetDeviceToken(ctx context.Context, driverID, token string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET device_token = NULLIF($2, ''), updated_at = now()
		WHERE id = $1 AND user_type = 'driver'
	`, driverID, token)
	if err != nil {
		return fmt.Errorf("users: set device token %s: %w", driverID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDriverNotFound
	}
	return nil
}
