package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/swiftparcel/internal/model"
)

// LocationRepository handles the `driver_locations` table: one row per
// driver, overwritten on each push.
type LocationRepository struct {
	pool *pgxpool.Pool
}

// NewLocationRepository creates a new location repository.
func NewLocationRepository(pool *pgxpool.Pool) *LocationRepository {
	return &LocationRepository{pool: pool}
}

// Upsert writes the latest fix for a driver. Writes are monotonic in
// timestamp: a fix older than the stored one is dropped (returns false)
// so receivers never observe the driver moving backwards in time.
func (r *LocationRepository) Upsert(ctx context.Context, loc *model.DriverLocation) (bool, error) {
	if loc.Timestamp.IsZero() {
		loc.Timestamp = time.Now().UTC()
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO driver_locations (driver_id, lat, lng, accuracy_m, speed_kmph, bearing_deg, current_trip_id, ts)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		ON CONFLICT (driver_id) DO UPDATE
		SET lat = EXCLUDED.lat,
		    lng = EXCLUDED.lng,
		    accuracy_m = EXCLUDED.accuracy_m,
		    speed_kmph = EXCLUDED.speed_kmph,
		    bearing_deg = EXCLUDED.bearing_deg,
		    current_trip_id = EXCLUDED.current_trip_id,
		    ts = EXCLUDED.ts
		WHERE driver_locations.ts < EXCLUDED.ts
	`, loc.DriverID, loc.Point.Latitude, loc.Point.Longitude,
		loc.AccuracyM, loc.SpeedKmph, loc.BearingDeg, tripIDOrEmpty(loc.CurrentTripID), loc.Timestamp)
	if err != nil {
		return false, fmt.Errorf("locations: upsert %s: %w", loc.DriverID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func tripIDOrEmpty(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

// Get returns the latest stored fix for a driver, or ErrNotFound.
func (r *LocationRepository) Get(ctx context.Context, driverID string) (*model.DriverLocation, error) {
	var (
		loc    model.DriverLocation
		tripID *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT driver_id, lat, lng, accuracy_m, speed_kmph, bearing_deg, current_trip_id, ts
		FROM driver_locations WHERE driver_id = $1
	`, driverID).Scan(
		&loc.DriverID, &loc.Point.Latitude, &loc.Point.Longitude,
		&loc.AccuracyM, &loc.SpeedKmph, &loc.BearingDeg, &tripID, &loc.Timestamp,
	)
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	loc.CurrentTripID = tripID
	return &loc, nil
}

// ClearTrip detaches the driver's location stream from a finished trip.
func (r *LocationRepository) ClearTrip(ctx context.Context, driverID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE driver_locations SET current_trip_id = NULL WHERE driver_id = $1
	`, driverID)
	if err != nil {
		return fmt.Errorf("locations: clear trip %s: %w", driverID, err)
	}
	return nil
}
