package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/internal/repository"
)

func TestSlotID(t *testing.T) {
	got := SlotID("driver-1", "2026-08-24", 7)
	if got != "driver-1_2026-08-24_7-9" {
		t.Errorf("SlotID = %q, want driver-1_2026-08-24_7-9", got)
	}
}

func TestBuildDailySlots_EightSlots(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.Local)
	slots := BuildDailySlots("driver-1", day, time.Local)

	if len(slots) != 8 {
		t.Fatalf("BuildDailySlots returned %d slots, want 8", len(slots))
	}
	for i, s := range slots {
		wantStart := model.SlotStartHours[i]
		if s.StartTime.Hour() != wantStart {
			t.Errorf("slot %d starts at hour %d, want %d", i, s.StartTime.Hour(), wantStart)
		}
		if got := s.EndTime.Sub(s.StartTime); got != 2*time.Hour {
			t.Errorf("slot %d duration = %v, want 2h", i, got)
		}
		if s.Status != model.SlotAvailable {
			t.Errorf("slot %d status = %v, want available", i, s.Status)
		}
		if s.IsSelected {
			t.Errorf("slot %d created selected", i)
		}
		if want := SlotID("driver-1", "2026-08-24", wantStart); s.ID != want {
			t.Errorf("slot %d id = %q, want %q", i, s.ID, want)
		}
	}
}

func TestBuildDailySlots_Deterministic(t *testing.T) {
	day := time.Date(2026, 8, 24, 13, 45, 0, 0, time.Local) // mid-day input, same slots
	a := BuildDailySlots("d", day, time.Local)
	b := BuildDailySlots("d", day.Add(3*time.Hour), time.Local)
	for i := range a {
		if a[i].ID != b[i].ID || !a[i].StartTime.Equal(b[i].StartTime) {
			t.Errorf("slot %d differs across same-day builds: %q vs %q", i, a[i].ID, b[i].ID)
		}
	}
}

func TestBuildDailySlots_Labels(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.Local)
	slots := BuildDailySlots("d", day, time.Local)
	if got, want := slots[0].Label, "7:00 AM – 9:00 AM"; got != want {
		t.Errorf("first label = %q, want %q", got, want)
	}
	if got, want := slots[7].Label, "9:00 PM – 11:00 PM"; got != want {
		t.Errorf("last label = %q, want %q", got, want)
	}
}

func TestGenerationGuard_Exclusive(t *testing.T) {
	svc := NewSlotService(nil, 5*time.Second)

	if !svc.acquireGuard("driver-1") {
		t.Fatal("first acquire refused")
	}
	if svc.acquireGuard("driver-1") {
		t.Error("second acquire inside the window succeeded")
	}
	if !svc.acquireGuard("driver-2") {
		t.Error("guard for one driver blocked another")
	}

	svc.releaseGuard("driver-1")
	if !svc.acquireGuard("driver-1") {
		t.Error("acquire after release refused")
	}
}

func TestGenerationGuard_StuckReplaced(t *testing.T) {
	svc := NewSlotService(nil, 20*time.Millisecond)

	if !svc.acquireGuard("driver-1") {
		t.Fatal("first acquire refused")
	}
	time.Sleep(30 * time.Millisecond)
	// Past the window the previous attempt counts as stuck.
	if !svc.acquireGuard("driver-1") {
		t.Error("stale guard entry not replaced")
	}
}

func TestGenerationGuard_Concurrent(t *testing.T) {
	svc := NewSlotService(nil, 5*time.Second)

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if svc.acquireGuard(fmt.Sprintf("driver-%d", i%4)) {
				wins <- i
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var count int
	for range wins {
		count++
	}
	// Exactly one winner per distinct driver.
	if count != 4 {
		t.Errorf("%d guard acquisitions succeeded, want 4 (one per driver)", count)
	}
}

// fakeSlotStore is an in-memory SlotStore for selection tests.
type fakeSlotStore struct {
	mu    sync.Mutex
	slots map[string]*model.WorkSlot
}

func newFakeSlotStore(slots ...*model.WorkSlot) *fakeSlotStore {
	s := &fakeSlotStore{slots: make(map[string]*model.WorkSlot)}
	for _, slot := range slots {
		cp := *slot
		s.slots[slot.ID] = &cp
	}
	return s
}

func (s *fakeSlotStore) Regenerate(_ context.Context, driverID, date string, slots []*model.WorkSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, slot := range s.slots {
		if slot.DriverID == driverID && slot.Date == date {
			delete(s.slots, id)
		}
	}
	for _, slot := range slots {
		cp := *slot
		s.slots[slot.ID] = &cp
	}
	return nil
}

func (s *fakeSlotStore) GetByID(_ context.Context, id string) (*model.WorkSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	cp := *slot
	return &cp, nil
}

func (s *fakeSlotStore) ListForDay(_ context.Context, driverID, date string) ([]*model.WorkSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.WorkSlot
	for _, slot := range s.slots {
		if slot.DriverID == driverID && slot.Date == date {
			cp := *slot
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeSlotStore) SetSelected(_ context.Context, slotID, driverID string, selected bool) (*model.WorkSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	if slot.DriverID != driverID {
		return nil, repository.ErrSlotNotOwned
	}
	slot.IsSelected = selected
	cp := *slot
	return &cp, nil
}

func (s *fakeSlotStore) Book(_ context.Context, slotID, customerID string) (*model.WorkSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	if slot.Status != model.SlotAvailable || !slot.IsSelected {
		return nil, repository.ErrSlotNotAvailable
	}
	slot.Status = model.SlotBooked
	slot.CustomerID = &customerID
	cp := *slot
	return &cp, nil
}

func testSlot(id, driverID string, start time.Time, selected bool) *model.WorkSlot {
	return &model.WorkSlot{
		ID:         id,
		DriverID:   driverID,
		Date:       start.Format("2006-01-02"),
		StartTime:  start,
		EndTime:    start.Add(2 * time.Hour),
		Status:     model.SlotAvailable,
		IsSelected: selected,
	}
}

func TestSetSelected_RefusesStartedSlot(t *testing.T) {
	started := time.Now().Add(-30 * time.Minute)
	store := newFakeSlotStore(testSlot("s1", "driver-1", started, true))
	svc := NewSlotService(store, time.Second)

	_, err := svc.SetSelected(context.Background(), "s1", "driver-1", false)
	if !errors.Is(err, ErrSlotAlreadyStarted) {
		t.Fatalf("deselect of a started slot: err = %v, want ErrSlotAlreadyStarted", err)
	}

	// The row must be untouched.
	slot, _ := store.GetByID(context.Background(), "s1")
	if !slot.IsSelected {
		t.Error("started slot was deselected despite the refusal")
	}
}

func TestSetSelected_FutureSlotDeselects(t *testing.T) {
	future := time.Now().Add(3 * time.Hour)
	store := newFakeSlotStore(testSlot("s1", "driver-1", future, true))
	svc := NewSlotService(store, time.Second)

	slot, err := svc.SetSelected(context.Background(), "s1", "driver-1", false)
	if err != nil {
		t.Fatalf("SetSelected: %v", err)
	}
	if slot.IsSelected {
		t.Error("future slot still selected after deselect")
	}
}

func TestSetSelected_RefusesForeignSlot(t *testing.T) {
	store := newFakeSlotStore(testSlot("s1", "driver-1", time.Now().Add(time.Hour), false))
	svc := NewSlotService(store, time.Second)

	_, err := svc.SetSelected(context.Background(), "s1", "driver-2", true)
	if !errors.Is(err, ErrSlotNotOwned) {
		t.Errorf("foreign slot: err = %v, want ErrSlotNotOwned", err)
	}
}

func TestSetSelectedBatch_SkipsViolators(t *testing.T) {
	now := time.Now()
	store := newFakeSlotStore(
		testSlot("ok", "driver-1", now.Add(2*time.Hour), true),
		testSlot("started", "driver-1", now.Add(-time.Hour), true),
		testSlot("foreign", "driver-2", now.Add(2*time.Hour), true),
	)
	svc := NewSlotService(store, time.Second)

	out, err := svc.SetSelectedBatch(context.Background(),
		[]string{"ok", "started", "foreign", "missing"}, "driver-1", false)
	if err != nil {
		t.Fatalf("SetSelectedBatch: %v", err)
	}
	if len(out) != 1 || out[0].ID != "ok" {
		t.Fatalf("batch applied to %d slots, want only 'ok'", len(out))
	}

	slot, _ := store.GetByID(context.Background(), "started")
	if !slot.IsSelected {
		t.Error("started slot flipped by the batch")
	}
}
