package model

import "testing"

func TestCanTransition_HappyPath(t *testing.T) {
	path := []BookingStatus{
		StatusPending, StatusDriverAssigned, StatusDriverEnroute,
		StatusDriverArrived, StatusPickedUp, StatusInTransit,
		StatusAtDropoff, StatusDelivered,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("CanTransition(%s → %s) = false, want true", path[i], path[i+1])
		}
	}
}

func TestCanTransition_Shortcuts(t *testing.T) {
	// enroute may be skipped; at_dropoff may be skipped.
	if !CanTransition(StatusDriverAssigned, StatusDriverArrived) {
		t.Error("driver_assigned → driver_arrived refused")
	}
	if !CanTransition(StatusInTransit, StatusDelivered) {
		t.Error("in_transit → delivered refused")
	}
}

func TestCanTransition_Illegal(t *testing.T) {
	cases := [][2]BookingStatus{
		{StatusPending, StatusPickedUp},
		{StatusPending, StatusDelivered},
		{StatusDriverArrived, StatusInTransit},
		{StatusDelivered, StatusPending},   // terminal
		{StatusCancelled, StatusConfirmed}, // terminal
		{StatusInTransit, StatusDriverEnroute}, // backwards
	}
	for _, c := range cases {
		if CanTransition(c[0], c[1]) {
			t.Errorf("CanTransition(%s → %s) = true, want false", c[0], c[1])
		}
	}
}

func TestCanCancel(t *testing.T) {
	cancellable := []BookingStatus{StatusPending, StatusConfirmed, StatusDriverAssigned}
	for _, s := range cancellable {
		if !CanCancel(s) {
			t.Errorf("CanCancel(%s) = false, want true", s)
		}
		if !CanTransition(s, StatusCancelled) {
			t.Errorf("CanTransition(%s → cancelled) = false, want true", s)
		}
	}

	locked := []BookingStatus{
		StatusDriverEnroute, StatusDriverArrived, StatusPickedUp,
		StatusInTransit, StatusAtDropoff, StatusDelivered, StatusCancelled,
	}
	for _, s := range locked {
		if CanCancel(s) {
			t.Errorf("CanCancel(%s) = true, want false", s)
		}
	}
}

func TestIsOccupied(t *testing.T) {
	for _, s := range OccupiedStatuses {
		if !IsOccupied(s) {
			t.Errorf("IsOccupied(%s) = false, want true", s)
		}
	}
	for _, s := range []BookingStatus{StatusPending, StatusConfirmed, StatusDelivered, StatusCancelled} {
		if IsOccupied(s) {
			t.Errorf("IsOccupied(%s) = true, want false", s)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(StatusDelivered) || !IsTerminal(StatusCancelled) {
		t.Error("delivered and cancelled must be terminal")
	}
	if IsTerminal(StatusPending) || IsTerminal(StatusInTransit) {
		t.Error("live states reported terminal")
	}
}

func TestTimingFieldFor(t *testing.T) {
	cases := map[BookingStatus]string{
		StatusDriverAssigned: "assignedAt",
		StatusPickedUp:       "pickedUpAt",
		StatusDelivered:      "deliveredAt",
		StatusCancelled:      "cancelledAt",
		StatusPending:        "",
	}
	for s, want := range cases {
		if got := TimingFieldFor(s); got != want {
			t.Errorf("TimingFieldFor(%s) = %q, want %q", s, got, want)
		}
	}
}

func TestAssignedDriverID(t *testing.T) {
	blank := "   "
	id := "driver-1"
	cases := []struct {
		name string
		b    Booking
		want string
	}{
		{"nil", Booking{}, ""},
		{"whitespace", Booking{DriverID: &blank}, ""},
		{"assigned", Booking{DriverID: &id}, "driver-1"},
	}
	for _, c := range cases {
		if got := c.b.AssignedDriverID(); got != c.want {
			t.Errorf("%s: AssignedDriverID = %q, want %q", c.name, got, c.want)
		}
	}
}
