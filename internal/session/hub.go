package session

import (
	"log"
	"sync"

	"github.com/shiva/swiftparcel/internal/model"
)

// ─── Rooms ──────────────────────────────────────────────────
//
// Room naming:
//
//	user:{userId}       private channel, auto-joined on connect
//	type:{userType}     all customers / all drivers / all admins
//	booking:{bookingId} both parties of a booking plus admins
//	trip:{bookingId}    live tracking subscribers for a trip
//
// Membership checks happen at join time (client.go); emission trusts the
// room set.

// RoomUser returns the private room for a user.
func RoomUser(userID string) string { return "user:" + userID }

// RoomType returns the broadcast room for a user type.
func RoomType(t model.UserType) string { return "type:" + string(t) }

// RoomBooking returns the shared room for a booking's parties.
func RoomBooking(bookingID string) string { return "booking:" + bookingID }

// RoomTrip returns the live-tracking room for a trip.
func RoomTrip(bookingID string) string { return "trip:" + bookingID }

// ─── Hub ────────────────────────────────────────────────────

// Hub is the in-process room registry. It implements service.Events so the
// booking core can publish without knowing about websockets.
//
// All sends are non-blocking: a client whose buffer is full misses the
// frame (and catches up via replay on reconnect) rather than stalling the
// fan-out for everyone else.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]bool
	clients map[*Client]map[string]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]bool),
		clients: make(map[*Client]map[string]bool),
	}
}

// Register adds a client with its auto-joined rooms.
func (h *Hub) Register(c *Client, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] == nil {
		h.clients[c] = make(map[string]bool)
	}
	for _, room := range rooms {
		h.join(c, room)
	}
}

// Unregister removes a client from every room.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.clients[c] {
		h.leave(c, room)
	}
	delete(h.clients, c)
}

// Join adds the client to one room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] == nil {
		h.clients[c] = make(map[string]bool)
	}
	h.join(c, room)
}

// Leave removes the client from one room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(c, room)
}

func (h *Hub) join(c *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
	h.clients[c][room] = true
}

func (h *Hub) leave(c *Client, room string) {
	if members := h.rooms[room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms := h.clients[c]; rooms != nil {
		delete(rooms, room)
	}
}

// InRoom reports whether the client currently belongs to the room.
func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[c][room]
}

// RoomSize returns the member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ClientRooms returns the rooms the client currently belongs to.
func (h *Hub) ClientRooms(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.clients[c]))
	for room := range h.clients[c] {
		rooms = append(rooms, room)
	}
	return rooms
}

// ─── Emission ───────────────────────────────────────────────

// Emit delivers a frame to every member of the given rooms, each client at
// most once even when it belongs to several of them.
func (h *Hub) Emit(frame Frame, rooms ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]bool)
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if seen[c] {
				continue
			}
			seen[c] = true
			c.TrySend(frame)
		}
	}
}

// EmitExcept is Emit minus one client, used to echo chat to everyone but
// the sender.
func (h *Hub) EmitExcept(frame Frame, except *Client, rooms ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]bool)
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if c == except || seen[c] {
				continue
			}
			seen[c] = true
			c.TrySend(frame)
		}
	}
}

// ─── service.Events implementation ──────────────────────────

// BookingAvailable offers a pending booking to each candidate's private
// room.
func (h *Hub) BookingAvailable(booking *model.Booking, driverIDs []string) {
	frame := NewFrame(EvBookingAvail, booking)
	rooms := make([]string, len(driverIDs))
	for i, id := range driverIDs {
		rooms[i] = RoomUser(id)
	}
	h.Emit(frame, rooms...)
	log.Printf("[session] new_booking_available %s → %d driver rooms", booking.ID, len(rooms))
}

// BookingAssigned announces the won assignment: customer user room, booking
// room, the customer type room, and the winning driver. The booking payload
// carries the denormalized driver summary (driver_info) so receivers never
// need a follow-up fetch.
func (h *Hub) BookingAssigned(booking *model.Booking) {
	frame := NewFrame(EvDriverAssigned, booking)
	rooms := []string{
		RoomUser(booking.CustomerID),
		RoomBooking(booking.ID),
		RoomType(model.TypeCustomer),
	}
	if driverID := booking.AssignedDriverID(); driverID != "" {
		rooms = append(rooms, RoomUser(driverID))
	}
	h.Emit(frame, rooms...)
}

// BookingStatusChanged mirrors a lifecycle transition to all parties,
// tracking subscribers and the customer type room.
func (h *Hub) BookingStatusChanged(booking *model.Booking) {
	frame := NewFrame(EvBookingStatus, booking)
	rooms := []string{
		RoomUser(booking.CustomerID),
		RoomBooking(booking.ID),
		RoomTrip(booking.ID),
		RoomType(model.TypeCustomer),
	}
	if driverID := booking.AssignedDriverID(); driverID != "" {
		rooms = append(rooms, RoomUser(driverID))
	}
	h.Emit(frame, rooms...)
}

// DriverStatusChanged tells the admin room about an online/availability
// flip.
func (h *Hub) DriverStatusChanged(driverID string, isOnline, isAvailable bool) {
	h.Emit(NewFrame(EvDriverStatusOut, map[string]any{
		"driver_id":    driverID,
		"is_online":    isOnline,
		"is_available": isAvailable,
	}), RoomType(model.TypeAdmin))
}

// DriverVerificationChanged tells the driver their derived verification
// status moved; the admin room mirrors it for dashboards.
func (h *Hub) DriverVerificationChanged(driverID string, status model.VerificationStatus) {
	h.Emit(NewFrame(EvAuthStatus, AuthStatusPayload{
		DriverID:           driverID,
		VerificationStatus: string(status),
		IsEligible:         status.IsEligible(),
	}), RoomUser(driverID), RoomType(model.TypeAdmin))
}

// UserDeactivated orders every live session of the user to log out.
func (h *Hub) UserDeactivated(userID string) {
	h.Emit(NewFrame(EvForceLogout, map[string]any{
		"user_id": userID,
		"reason":  "account deactivated",
	}), RoomUser(userID))
	log.Printf("[session] force_logout → %s", userID)
}
