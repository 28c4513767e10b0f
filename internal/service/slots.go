package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/internal/repository"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	ErrSlotNotFound         = errors.New("work slot not found")
	ErrSlotNotAvailable     = errors.New("work slot is not available")
	ErrSlotAlreadyStarted   = errors.New("work slot has already started")
	ErrSlotNotOwned         = errors.New("work slot belongs to another driver")
	ErrGenerationInProgress = errors.New("slot generation already in progress for this driver")
)

// ─── SlotService ────────────────────────────────────────────

// SlotStore is the persistence the scheduler needs. repository.SlotRepository
// satisfies it; tests substitute an in-memory store.
type SlotStore interface {
	Regenerate(ctx context.Context, driverID, date string, slots []*model.WorkSlot) error
	GetByID(ctx context.Context, id string) (*model.WorkSlot, error)
	ListForDay(ctx context.Context, driverID, date string) ([]*model.WorkSlot, error)
	SetSelected(ctx context.Context, slotID, driverID string, selected bool) (*model.WorkSlot, error)
	Book(ctx context.Context, slotID, customerID string) (*model.WorkSlot, error)
}

// SlotService generates and manages the eight fixed 2-hour work slots per
// driver-day.
//
// The generation guard is a process-local map driverId → start timestamp.
// A second generation request for the same driver inside the guard window
// is refused; past the window the previous attempt is considered stuck and
// its guard entry replaced. This protects against duplicate slot batches
// from client retries; the delete+insert transaction makes regeneration
// idempotent regardless.
type SlotService struct {
	repo     SlotStore
	guardTTL time.Duration

	mu    sync.Mutex
	guard map[string]time.Time
}

// NewSlotService creates the scheduler. guardTTL <= 0 falls back to 5 s.
func NewSlotService(repo SlotStore, guardTTL time.Duration) *SlotService {
	if guardTTL <= 0 {
		guardTTL = 5 * time.Second
	}
	return &SlotService{
		repo:     repo,
		guardTTL: guardTTL,
		guard:    make(map[string]time.Time),
	}
}

// ─── Canonical slot construction ────────────────────────────

// SlotID builds the canonical id {driver}_{YYYY-MM-DD}_{startH}-{endH}.
func SlotID(driverID, date string, startHour int) string {
	return fmt.Sprintf("%s_%s_%d-%d", driverID, date, startHour, startHour+2)
}

// BuildDailySlots constructs the eight canonical slot rows for a
// driver-day in the given location's local time. Pure; the scheduler and
// its tests share it.
func BuildDailySlots(driverID string, day time.Time, loc *time.Location) []*model.WorkSlot {
	if loc == nil {
		loc = time.Local
	}
	day = day.In(loc)
	date := day.Format("2006-01-02")

	slots := make([]*model.WorkSlot, 0, len(model.SlotStartHours))
	for _, h := range model.SlotStartHours {
		start := time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, loc)
		end := start.Add(2 * time.Hour)
		slots = append(slots, &model.WorkSlot{
			ID:        SlotID(driverID, date, h),
			DriverID:  driverID,
			Date:      date,
			Label:     fmt.Sprintf("%s – %s", start.Format("3:04 PM"), end.Format("3:04 PM")),
			StartTime: start,
			EndTime:   end,
			Status:    model.SlotAvailable,
		})
	}
	return slots
}

// ─── Generation ─────────────────────────────────────────────

// acquireGuard takes the per-driver generation guard, replacing entries
// older than the guard window (stuck generations).
func (s *SlotService) acquireGuard(driverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if started, ok := s.guard[driverID]; ok && time.Since(started) < s.guardTTL {
		return false
	}
	s.guard[driverID] = time.Now()
	return true
}

func (s *SlotService) releaseGuard(driverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.guard, driverID)
}

// GenerateDailySlots (re)creates the eight slots for a driver-day.
// Existing slots for the day are replaced wholesale.
func (s *SlotService) GenerateDailySlots(ctx context.Context, driverID string, day time.Time, loc *time.Location) ([]*model.WorkSlot, error) {
	if !s.acquireGuard(driverID) {
		return nil, ErrGenerationInProgress
	}
	defer s.releaseGuard(driverID)

	slots := BuildDailySlots(driverID, day, loc)
	if err := s.repo.Regenerate(ctx, driverID, slots[0].Date, slots); err != nil {
		return nil, fmt.Errorf("slots: regenerate %s/%s: %w", driverID, slots[0].Date, err)
	}

	log.Printf("[slots] generated %d slots for %s on %s", len(slots), driverID, slots[0].Date)
	return s.repo.ListForDay(ctx, driverID, slots[0].Date)
}

// ListForDay returns the driver's slots for a date.
func (s *SlotService) ListForDay(ctx context.Context, driverID, date string) ([]*model.WorkSlot, error) {
	return s.repo.ListForDay(ctx, driverID, date)
}

// ─── Selection ──────────────────────────────────────────────

// SetSelected flips a slot's isSelected after ownership and time-guard
// checks. Deselecting a slot whose startTime has passed is refused.
func (s *SlotService) SetSelected(ctx context.Context, slotID, driverID string, selected bool) (*model.WorkSlot, error) {
	slot, err := s.repo.GetByID(ctx, slotID)
	if err != nil {
		return nil, classifySlotError(err)
	}
	if slot.DriverID != driverID {
		return nil, ErrSlotNotOwned
	}
	if !selected && slot.IsSelected && !slot.StartTime.After(time.Now()) {
		return nil, ErrSlotAlreadyStarted
	}

	updated, err := s.repo.SetSelected(ctx, slotID, driverID, selected)
	if err != nil {
		return nil, classifySlotError(err)
	}
	return updated, nil
}

// SetSelectedBatch applies a selection change to many slots, silently
// skipping time-guard violators and rows owned by someone else.
func (s *SlotService) SetSelectedBatch(ctx context.Context, slotIDs []string, driverID string, selected bool) ([]*model.WorkSlot, error) {
	var out []*model.WorkSlot
	for _, id := range slotIDs {
		slot, err := s.SetSelected(ctx, id, driverID, selected)
		if err != nil {
			if errors.Is(err, ErrSlotAlreadyStarted) || errors.Is(err, ErrSlotNotOwned) || errors.Is(err, ErrSlotNotFound) {
				log.Printf("[slots] batch skip %s: %v", id, err)
				continue
			}
			return nil, err
		}
		out = append(out, slot)
	}
	return out, nil
}

// Book reserves an available slot for a customer.
func (s *SlotService) Book(ctx context.Context, slotID, customerID string) (*model.WorkSlot, error) {
	slot, err := s.repo.Book(ctx, slotID, customerID)
	if err != nil {
		return nil, classifySlotError(err)
	}
	log.Printf("[slots] ✓ booked %s for customer %s", slotID, customerID)
	return slot, nil
}

func classifySlotError(err error) error {
	switch {
	case errors.Is(err, repository.ErrSlotNotFound):
		return ErrSlotNotFound
	case errors.Is(err, repository.ErrSlotNotAvailable):
		return ErrSlotNotAvailable
	case errors.Is(err, repository.ErrSlotNotOwned):
		return ErrSlotNotOwned
	default:
		return err
	}
}
