package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/swiftparcel/internal/model"
)

// SlotRepository handles the `work_slots` table.
//
// Regeneration is idempotent by construction: existing rows for the
// (driver, date) pair are deleted and the eight canonical rows inserted in
// the same transaction, so concurrent readers never observe a partial set.
type SlotRepository struct {
	pool *pgxpool.Pool
}

// NewSlotRepository creates a new slot repository.
func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

const slotColumns = `
	id, driver_id, date, label, start_time, end_time, status, is_selected,
	customer_id, created_at, updated_at
`

func scanSlot(row pgx.Row) (*model.WorkSlot, error) {
	var (
		s          model.WorkSlot
		customerID *string
	)
	err := row.Scan(
		&s.ID, &s.DriverID, &s.Date, &s.Label, &s.StartTime, &s.EndTime,
		&s.Status, &s.IsSelected, &customerID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.CustomerID = customerID
	return &s, nil
}

// Regenerate replaces all slots for (driver, date) with the given set.
// Delete + insert in one batch keeps the slot set whole for readers.
func (r *SlotRepository) Regenerate(ctx context.Context, driverID, date string, slots []*model.WorkSlot) error {
	return withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM work_slots WHERE driver_id = $1 AND date = $2
		`, driverID, date)
		if err != nil {
			return fmt.Errorf("slots: delete %s/%s: %w", driverID, date, err)
		}

		batch := &pgx.Batch{}
		for _, s := range slots {
			batch.Queue(`
				INSERT INTO work_slots (id, driver_id, date, label, start_time, end_time, status, is_selected, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			`, s.ID, s.DriverID, s.Date, s.Label, s.StartTime, s.EndTime, s.Status, s.IsSelected)
		}
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for range slots {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("slots: insert %s/%s: %w", driverID, date, err)
			}
		}
		return nil
	})
}

// GetByID fetches one slot.
func (r *SlotRepository) GetByID(ctx context.Context, id string) (*model.WorkSlot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM work_slots WHERE id = $1`, id)
	s, err := scanSlot(row)
	if err != nil {
		return nil, notFound(err, ErrSlotNotFound)
	}
	return s, nil
}

// ListForDay returns a driver's slots for a date ordered by start time.
func (r *SlotRepository) ListForDay(ctx context.Context, driverID, date string) ([]*model.WorkSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+` FROM work_slots
		WHERE driver_id = $1 AND date = $2
		ORDER BY start_time ASC
	`, driverID, date)
	if err != nil {
		return nil, fmt.Errorf("slots: list %s/%s: %w", driverID, date, err)
	}
	defer rows.Close()

	var out []*model.WorkSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("slots: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetSelected flips isSelected on a slot the driver owns. Deselecting a
// slot whose start time has passed is the caller's responsibility to
// refuse; the WHERE clause re-checks ownership.
func (r *SlotRepository) SetSelected(ctx context.Context, slotID, driverID string, selected bool) (*model.WorkSlot, error) {
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var (
			owner     string
			startTime time.Time
			isSelected bool
		)
		err := tx.QueryRow(ctx, `
			SELECT driver_id, start_time, is_selected FROM work_slots WHERE id = $1 FOR UPDATE
		`, slotID).Scan(&owner, &startTime, &isSelected)
		if err != nil {
			return notFound(err, ErrSlotNotFound)
		}
		if owner != driverID {
			return ErrSlotNotOwned
		}
		if isSelected == selected {
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE work_slots SET is_selected = $2, updated_at = now() WHERE id = $1
		`, slotID, selected)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, slotID)
}

// Book transitions an available slot to booked with the customer recorded.
func (r *SlotRepository) Book(ctx context.Context, slotID, customerID string) (*model.WorkSlot, error) {
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var status model.SlotStatus
		err := tx.QueryRow(ctx, `
			SELECT status FROM work_slots WHERE id = $1 FOR UPDATE
		`, slotID).Scan(&status)
		if err != nil {
			return notFound(err, ErrSlotNotFound)
		}
		if status != model.SlotAvailable {
			return ErrSlotNotAvailable
		}

		_, err = tx.Exec(ctx, `
			UPDATE work_slots SET status = $2, customer_id = $3, updated_at = now() WHERE id = $1
		`, slotID, model.SlotBooked, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, slotID)
}

// Complete marks a booked slot completed.
func (r *SlotRepository) Complete(ctx context.Context, slotID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE work_slots SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
	`, slotID, model.SlotCompleted, model.SlotBooked)
	if err != nil {
		return fmt.Errorf("slots: complete %s: %w", slotID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}
