// Package repository provides database access for the delivery dispatch core.
//
// Every multi-row mutation runs inside a transaction with row-level locking
// (SELECT ... FOR UPDATE). The booking row is the linchpin: it is only ever
// written by BookingRepository, and the accept transaction is the
// authoritative single-assignment barrier.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	ErrNotFound           = errors.New("repository: row not found")
	ErrBookingNotFound    = errors.New("repository: booking not found")
	ErrDriverNotFound     = errors.New("repository: driver not found")
	ErrAlreadyAssigned    = errors.New("repository: booking already assigned")
	ErrDriverNotAvailable = errors.New("repository: driver not online and available")
	ErrInvalidTransition  = errors.New("repository: status transition not allowed")
	ErrNotCancellable     = errors.New("repository: booking not cancellable")
	ErrSlotNotFound       = errors.New("repository: slot not found")
	ErrSlotNotAvailable   = errors.New("repository: slot not available")
	ErrSlotNotOwned       = errors.New("repository: slot owned by another driver")
)

// ─── Timeouts & retries ─────────────────────────────────────

const (
	// DefaultTxTimeout bounds every transactional store call, including
	// lock wait time.
	DefaultTxTimeout = 10 * time.Second

	// maxTxRetries bounds serialization-failure retries inside the
	// booking transaction paths.
	maxTxRetries = 3
)

// isTransient reports whether the error is a retryable contention error
// (serialization failure or deadlock detected).
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// withTx runs fn in a READ COMMITTED transaction with a bounded deadline,
// retrying on transient contention errors up to maxTxRetries times.
// fn must be side-effect free outside the transaction.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, tx pgx.Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = runTx(txCtx, pool, fn)
		if err == nil || !isTransient(err) {
			return err
		}
		// Small bounded backoff before the next attempt.
		select {
		case <-txCtx.Done():
			return txCtx.Err()
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		}
	}
	return err
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	// Defer rollback; no-op if tx was already committed.
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// notFound converts pgx.ErrNoRows into the given sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}
