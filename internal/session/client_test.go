package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shiva/swiftparcel/internal/auth"
	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/internal/repository"
	"github.com/shiva/swiftparcel/internal/service"
)

// recordingPresenceStore records which presence mutations ran.
type recordingPresenceStore struct {
	forceBusy   []string
	touched     []string
	customerOff []string
}

func (r *recordingPresenceStore) ForceBusy(_ context.Context, driverID string) error {
	r.forceBusy = append(r.forceBusy, driverID)
	return nil
}

func (r *recordingPresenceStore) TouchLastSeen(_ context.Context, driverID string) error {
	r.touched = append(r.touched, driverID)
	return nil
}

func (r *recordingPresenceStore) SetCustomerPresence(_ context.Context, userID string, online bool) error {
	if !online {
		r.customerOff = append(r.customerOff, userID)
	}
	return nil
}

type fakeActiveSource struct {
	booking *model.Booking
	err     error
}

func (f fakeActiveSource) ActiveForDriver(context.Context, string) (*model.Booking, error) {
	return f.booking, f.err
}

func TestDisconnectPresence_IdleDriverKeepsStatus(t *testing.T) {
	store := &recordingPresenceStore{}
	identity := auth.Identity{UserID: "driver-1", UserType: model.TypeDriver}

	applyDisconnectPresence(context.Background(), identity, store,
		fakeActiveSource{err: repository.ErrNotFound})

	// Transport loss must not flip isOnline/isAvailable: only lastSeen moves.
	if len(store.forceBusy) != 0 {
		t.Errorf("idle driver was pinned busy: %v", store.forceBusy)
	}
	if len(store.customerOff) != 0 {
		t.Errorf("driver got customer presence handling: %v", store.customerOff)
	}
	if len(store.touched) != 1 || store.touched[0] != "driver-1" {
		t.Errorf("lastSeen touches = %v, want [driver-1]", store.touched)
	}
}

func TestDisconnectPresence_BusyDriverPinned(t *testing.T) {
	store := &recordingPresenceStore{}
	identity := auth.Identity{UserID: "driver-1", UserType: model.TypeDriver}

	applyDisconnectPresence(context.Background(), identity, store,
		fakeActiveSource{booking: &model.Booking{ID: "b1", Status: model.StatusInTransit}})

	if len(store.forceBusy) != 1 || store.forceBusy[0] != "driver-1" {
		t.Errorf("busy pins = %v, want [driver-1]", store.forceBusy)
	}
	if len(store.customerOff) != 0 {
		t.Errorf("driver got customer presence handling: %v", store.customerOff)
	}
}

func TestDisconnectPresence_CustomerGoesOffline(t *testing.T) {
	store := &recordingPresenceStore{}
	identity := auth.Identity{UserID: "cust-1", UserType: model.TypeCustomer}

	applyDisconnectPresence(context.Background(), identity, store, fakeActiveSource{})

	if len(store.customerOff) != 1 || store.customerOff[0] != "cust-1" {
		t.Errorf("customer offline calls = %v, want [cust-1]", store.customerOff)
	}
	if len(store.forceBusy) != 0 || len(store.touched) != 0 {
		t.Error("customer disconnect touched driver presence paths")
	}
}

func TestWireCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{service.ErrBookingNotFound, "BOOKING_NOT_FOUND"},
		{service.ErrBookingAlreadyAssigned, "BOOKING_ALREADY_ASSIGNED"},
		{service.ErrDriverNotAvailable, "DRIVER_NOT_AVAILABLE"},
		{service.ErrDriverNotFound, "DRIVER_NOT_FOUND"},
		{service.ErrInvalidTransition, "INVALID_TRANSITION"},
		{service.ErrNotCancellable, "NOT_CANCELLABLE"},
		{service.ErrValidation, "VALIDATION_ERROR"},
		{service.ErrServiceArea, "SERVICE_AREA_VIOLATION"},
		{service.ErrUpstream, "UPSTREAM_UNAVAILABLE"},
		{errors.New("boom"), "INTERNAL_ERROR"},
	}
	for _, c := range cases {
		if got := wireCode(c.err); got != c.want {
			t.Errorf("wireCode(%v) = %q, want %q", c.err, got, c.want)
		}
		// Wrapping must not change the code.
		wrapped := fmt.Errorf("accept b1: %w", c.err)
		if got := wireCode(wrapped); got != c.want {
			t.Errorf("wireCode(wrapped %v) = %q, want %q", c.err, got, c.want)
		}
	}
}
