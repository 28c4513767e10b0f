package session

import (
	"encoding/json"
	"testing"

	"github.com/shiva/swiftparcel/internal/model"
)

func testClient() *Client {
	return &Client{send: make(chan Frame, sendBuffer)}
}

func drain(c *Client) []Frame {
	var out []Frame
	for {
		select {
		case f := <-c.send:
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestRoomNames(t *testing.T) {
	if got := RoomUser("u1"); got != "user:u1" {
		t.Errorf("RoomUser = %q", got)
	}
	if got := RoomType(model.TypeDriver); got != "type:driver" {
		t.Errorf("RoomType = %q", got)
	}
	if got := RoomBooking("b1"); got != "booking:b1" {
		t.Errorf("RoomBooking = %q", got)
	}
	if got := RoomTrip("b1"); got != "trip:b1" {
		t.Errorf("RoomTrip = %q", got)
	}
}

func TestHub_JoinLeave(t *testing.T) {
	hub := NewHub()
	c := testClient()

	hub.Register(c, "user:u1", "type:customer")
	if !hub.InRoom(c, "user:u1") || !hub.InRoom(c, "type:customer") {
		t.Fatal("auto-joined rooms missing")
	}

	hub.Join(c, "booking:b1")
	if hub.RoomSize("booking:b1") != 1 {
		t.Error("join did not register")
	}

	hub.Leave(c, "booking:b1")
	if hub.InRoom(c, "booking:b1") {
		t.Error("leave did not deregister")
	}
	if hub.RoomSize("booking:b1") != 0 {
		t.Error("empty room not collapsed")
	}
}

func TestHub_UnregisterClearsAllRooms(t *testing.T) {
	hub := NewHub()
	c := testClient()
	hub.Register(c, "user:u1", "type:driver")
	hub.Join(c, "trip:b1")

	hub.Unregister(c)
	for _, room := range []string{"user:u1", "type:driver", "trip:b1"} {
		if hub.RoomSize(room) != 0 {
			t.Errorf("room %s still has members after unregister", room)
		}
	}
}

func TestHub_EmitDeduplicates(t *testing.T) {
	hub := NewHub()
	c := testClient()
	hub.Register(c, "user:u1", "booking:b1")

	// Member of both target rooms: exactly one delivery.
	hub.Emit(NewFrame(EvBookingStatus, nil), "user:u1", "booking:b1")
	if got := len(drain(c)); got != 1 {
		t.Errorf("client received %d frames, want 1", got)
	}
}

func TestHub_EmitExceptSkipsSender(t *testing.T) {
	hub := NewHub()
	sender, other := testClient(), testClient()
	hub.Register(sender, "booking:b1")
	hub.Register(other, "booking:b1")

	hub.EmitExcept(NewFrame(EvTypingOut, nil), sender, "booking:b1")
	if got := len(drain(sender)); got != 0 {
		t.Errorf("sender received %d frames, want 0", got)
	}
	if got := len(drain(other)); got != 1 {
		t.Errorf("other received %d frames, want 1", got)
	}
}

func TestHub_FullBufferDropsNotBlocks(t *testing.T) {
	hub := NewHub()
	c := &Client{send: make(chan Frame, 1)}
	hub.Register(c, "user:u1")

	frame := NewFrame(EvPong, nil)
	hub.Emit(frame, "user:u1")
	// Second emit must return immediately despite the full buffer.
	hub.Emit(frame, "user:u1")
	if got := len(drain(c)); got != 1 {
		t.Errorf("buffered %d frames, want 1 (second dropped)", got)
	}
}

func TestHub_BookingAvailableTargetsDrivers(t *testing.T) {
	hub := NewHub()
	d1, d2, bystander := testClient(), testClient(), testClient()
	hub.Register(d1, RoomUser("driver-1"))
	hub.Register(d2, RoomUser("driver-2"))
	hub.Register(bystander, RoomUser("driver-3"))

	hub.BookingAvailable(&model.Booking{ID: "b1"}, []string{"driver-1", "driver-2"})

	for name, c := range map[string]*Client{"driver-1": d1, "driver-2": d2} {
		frames := drain(c)
		if len(frames) != 1 || frames[0].Event != EvBookingAvail {
			t.Errorf("%s got %v, want one new_booking_available", name, frames)
		}
	}
	if got := len(drain(bystander)); got != 0 {
		t.Errorf("uninvited driver received %d frames", got)
	}
}

func TestHub_BookingAssignedReachesBothParties(t *testing.T) {
	hub := NewHub()
	customer, driver := testClient(), testClient()
	hub.Register(customer, RoomUser("cust-1"))
	hub.Register(driver, RoomUser("driver-1"))

	driverID := "driver-1"
	hub.BookingAssigned(&model.Booking{ID: "b1", CustomerID: "cust-1", DriverID: &driverID})

	if frames := drain(customer); len(frames) != 1 || frames[0].Event != EvDriverAssigned {
		t.Errorf("customer frames = %v", frames)
	}
	if frames := drain(driver); len(frames) != 1 || frames[0].Event != EvDriverAssigned {
		t.Errorf("driver frames = %v", frames)
	}
}

func TestHub_StatusChangeReachesTrackers(t *testing.T) {
	hub := NewHub()
	tracker := testClient()
	hub.Register(tracker, RoomTrip("b1"))

	hub.BookingStatusChanged(&model.Booking{ID: "b1", CustomerID: "cust-1", Status: model.StatusInTransit})

	if frames := drain(tracker); len(frames) != 1 || frames[0].Event != EvBookingStatus {
		t.Errorf("tracker frames = %v", frames)
	}
}

func TestHub_DriverStatusChangedReachesAdmins(t *testing.T) {
	hub := NewHub()
	admin, customer := testClient(), testClient()
	hub.Register(admin, RoomType(model.TypeAdmin))
	hub.Register(customer, RoomType(model.TypeCustomer))

	hub.DriverStatusChanged("driver-1", true, true)

	if frames := drain(admin); len(frames) != 1 || frames[0].Event != EvDriverStatusOut {
		t.Errorf("admin frames = %v", frames)
	}
	if got := len(drain(customer)); got != 0 {
		t.Errorf("customer received %d driver status frames", got)
	}
}

func TestHub_AssignmentReachesCustomerTypeRoom(t *testing.T) {
	hub := NewHub()
	watcher := testClient()
	hub.Register(watcher, RoomType(model.TypeCustomer))

	driverID := "driver-1"
	hub.BookingAssigned(&model.Booking{ID: "b1", CustomerID: "cust-1", DriverID: &driverID})

	if frames := drain(watcher); len(frames) != 1 || frames[0].Event != EvDriverAssigned {
		t.Errorf("customer type room frames = %v, want one driver_assigned", frames)
	}
}

func TestHub_StatusChangeReachesCustomerTypeRoom(t *testing.T) {
	hub := NewHub()
	watcher := testClient()
	hub.Register(watcher, RoomType(model.TypeCustomer))

	hub.BookingStatusChanged(&model.Booking{ID: "b1", CustomerID: "cust-1", Status: model.StatusInTransit})

	if frames := drain(watcher); len(frames) != 1 || frames[0].Event != EvBookingStatus {
		t.Errorf("customer type room frames = %v, want one booking_status_update", frames)
	}
}

func TestHub_AssignmentCarriesDriverInfo(t *testing.T) {
	hub := NewHub()
	customer := testClient()
	hub.Register(customer, RoomUser("cust-1"))

	driverID := "driver-1"
	hub.BookingAssigned(&model.Booking{
		ID:         "b1",
		CustomerID: "cust-1",
		DriverID:   &driverID,
		Driver: &model.DriverSummary{
			ID: driverID, Name: "Ravi", Phone: "+911111111111",
			VehicleNumber: "KA01AB1234", Rating: 4.7,
		},
	})

	frames := drain(customer)
	if len(frames) != 1 {
		t.Fatalf("customer received %d frames, want 1", len(frames))
	}
	var got model.Booking
	if err := json.Unmarshal(frames[0].Data, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.Driver == nil || got.Driver.Name != "Ravi" || got.Driver.VehicleNumber != "KA01AB1234" {
		t.Errorf("driver summary missing from payload: %+v", got.Driver)
	}
}

func TestHub_ForceLogoutTargetsOnlyUser(t *testing.T) {
	hub := NewHub()
	target, bystander := testClient(), testClient()
	hub.Register(target, RoomUser("u1"))
	hub.Register(bystander, RoomUser("u2"))

	hub.UserDeactivated("u1")

	if frames := drain(target); len(frames) != 1 || frames[0].Event != EvForceLogout {
		t.Errorf("target frames = %v, want one force_logout", frames)
	}
	if got := len(drain(bystander)); got != 0 {
		t.Errorf("bystander received %d frames", got)
	}
}

func TestHub_VerificationChangeReachesDriverAndAdmins(t *testing.T) {
	hub := NewHub()
	driver, admin, customer := testClient(), testClient(), testClient()
	hub.Register(driver, RoomUser("driver-1"))
	hub.Register(admin, RoomType(model.TypeAdmin))
	hub.Register(customer, RoomType(model.TypeCustomer))

	hub.DriverVerificationChanged("driver-1", model.VerificationVerified)

	for name, c := range map[string]*Client{"driver": driver, "admin": admin} {
		frames := drain(c)
		if len(frames) != 1 || frames[0].Event != EvAuthStatus {
			t.Fatalf("%s frames = %v, want one auth_status_update", name, frames)
		}
		var got AuthStatusPayload
		if err := json.Unmarshal(frames[0].Data, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.DriverID != "driver-1" || !got.IsEligible {
			t.Errorf("%s payload = %+v", name, got)
		}
	}
	if got := len(drain(customer)); got != 0 {
		t.Errorf("customer received %d verification frames", got)
	}
}

func TestHub_ClientRooms(t *testing.T) {
	hub := NewHub()
	c := testClient()
	hub.Register(c, "user:u1", "type:driver")
	hub.Join(c, "trip:b1")

	rooms := hub.ClientRooms(c)
	want := map[string]bool{"user:u1": true, "type:driver": true, "trip:b1": true}
	if len(rooms) != len(want) {
		t.Fatalf("ClientRooms = %v, want 3 rooms", rooms)
	}
	for _, room := range rooms {
		if !want[room] {
			t.Errorf("unexpected room %q", room)
		}
	}
}
