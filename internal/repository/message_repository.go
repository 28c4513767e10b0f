package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/swiftparcel/internal/model"
)

// MessageRepository persists trip chat, emergency alerts and the audit
// trail of admin document reviews.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// InsertChat stores one chat message and returns it with id and timestamp
// filled in.
func (r *MessageRepository) InsertChat(ctx context.Context, m *model.ChatMessage) (*model.ChatMessage, error) {
	m.ID = uuid.NewString()
	m.SentAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, booking_id, sender_id, body, sent_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.BookingID, m.SenderID, m.Body, m.SentAt)
	if err != nil {
		return nil, fmt.Errorf("messages: insert chat %s: %w", m.BookingID, err)
	}
	return m, nil
}

// ListChat returns a trip's chat history, oldest first.
func (r *MessageRepository) ListChat(ctx context.Context, bookingID string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, booking_id, sender_id, body, sent_at
		FROM chat_messages
		WHERE booking_id = $1
		ORDER BY sent_at ASC
		LIMIT $2
	`, bookingID, limit)
	if err != nil {
		return nil, fmt.Errorf("messages: list chat %s: %w", bookingID, err)
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.BookingID, &m.SenderID, &m.Body, &m.SentAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertEmergency stores one emergency alert.
func (r *MessageRepository) InsertEmergency(ctx context.Context, a *model.EmergencyAlert) (*model.EmergencyAlert, error) {
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()
	var lat, lng *float64
	if a.Location != nil {
		lat, lng = &a.Location.Latitude, &a.Location.Longitude
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO emergency_alerts (id, booking_id, user_id, kind, message, lat, lng, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
	`, a.ID, a.BookingID, a.UserID, a.Kind, a.Message, lat, lng, a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("messages: insert emergency %s: %w", a.BookingID, err)
	}
	return a, nil
}

// InsertVerificationRequest appends one admin review action to the audit
// trail.
func (r *MessageRepository) InsertVerificationRequest(ctx context.Context, v *model.VerificationRequest) error {
	v.ID = uuid.NewString()
	v.CreatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO document_verification_requests (id, driver_id, document_kind, decision, reason, reviewed_by, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, v.ID, v.DriverID, v.DocumentKind, v.Decision, v.Reason, v.ReviewedBy, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("messages: insert verification request %s: %w", v.DriverID, err)
	}
	return nil
}
