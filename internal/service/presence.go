package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ─── PresenceService ────────────────────────────────────────

// PresenceRecord is one user's self-reported presence state.
type PresenceRecord struct {
	UserID    string    `json:"user_id"`
	UserType  string    `json:"user_type"`
	Status    string    `json:"status"`
	BookingID string    `json:"booking_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PresenceService holds short-lived presence records in Redis, keyed
// `presence:{userId}`. A client that stops refreshing simply expires; there
// is no explicit delete path.
type PresenceService struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPresenceService creates the presence store. ttl <= 0 falls back to 90 s,
// three missed heartbeats.
func NewPresenceService(rdb *redis.Client, ttl time.Duration) *PresenceService {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &PresenceService{rdb: rdb, ttl: ttl}
}

func presenceKey(userID string) string {
	return "presence:" + userID
}

// Update writes the record and resets its TTL.
func (s *PresenceService) Update(ctx context.Context, rec PresenceRecord) error {
	if rec.UserID == "" {
		return fmt.Errorf("%w: presence record without a user id", ErrValidation)
	}
	rec.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("presence: encode %s: %w", rec.UserID, err)
	}
	if err := s.rdb.Set(ctx, presenceKey(rec.UserID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("presence: store %s: %w", rec.UserID, err)
	}
	return nil
}

// Get returns the live record, or nil when it expired or was never written.
func (s *PresenceService) Get(ctx context.Context, userID string) (*PresenceRecord, error) {
	raw, err := s.rdb.Get(ctx, presenceKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("presence: read %s: %w", userID, err)
	}
	var rec PresenceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("presence: decode %s: %w", userID, err)
	}
	return &rec, nil
}
