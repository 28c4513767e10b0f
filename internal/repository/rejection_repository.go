package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RejectionRepository handles the `booking_rejections` table. A recorded
// rejection excludes the driver from rediscovery of the same booking.
type RejectionRepository struct {
	pool *pgxpool.Pool
}

// NewRejectionRepository creates a new rejection repository.
func NewRejectionRepository(pool *pgxpool.Pool) *RejectionRepository {
	return &RejectionRepository{pool: pool}
}

// Exists reports whether (booking, driver) has a rejection on record.
func (r *RejectionRepository) Exists(ctx context.Context, bookingID, driverID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM booking_rejections WHERE booking_id = $1 AND driver_id = $2
		)
	`, bookingID, driverID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("rejections: exists %s/%s: %w", bookingID, driverID, err)
	}
	return exists, nil
}

// RejectedDrivers returns the set of driver ids already excluded from the
// booking, for one-query candidate filtering.
func (r *RejectionRepository) RejectedDrivers(ctx context.Context, bookingID string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT driver_id FROM booking_rejections WHERE booking_id = $1
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("rejections: list %s: %w", bookingID, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
