// Package session is the realtime plane: websocket clients, the room hub
// and the event fan-out the booking core publishes through.
package session

import (
	"encoding/json"
	"time"
)

// ─── Wire frames ────────────────────────────────────────────

// Frame is the envelope every session message travels in, both directions.
type Frame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewFrame builds an outbound frame, panicking only on unmarshalable data
// (a programming error, not runtime input).
func NewFrame(event string, data any) Frame {
	raw, err := json.Marshal(data)
	if err != nil {
		panic("session: encode frame data: " + err.Error())
	}
	return Frame{Event: event, Data: raw, Timestamp: time.Now().UTC()}
}

// Inbound event names (client → server).
const (
	EvJoinRoom         = "join_room"
	EvLeaveRoom        = "leave_room"
	EvDriverStatus     = "driver_status_update"
	EvLocationUpdate   = "update_location"
	EvSubscribeTrack   = "subscribe_tracking"
	EvUnsubscribeTrack = "unsubscribe_tracking"
	EvSendMessage      = "send_message"
	EvTypingStart      = "typing_start"
	EvTypingStop       = "typing_stop"
	EvPresenceUpdate   = "presence_update"
	EvTripStatus       = "trip_status_update"
	EvAcceptBooking    = "accept_booking"
	EvRejectBooking    = "reject_booking"
	EvPing             = "ping"
)

// EvEmergency is both directions: clients raise it, the plane rebroadcasts
// it under the same name.
const EvEmergency = "emergency_alert"

// Outbound event names (server → client).
const (
	EvConnected       = "connected"
	EvRoomJoined      = "room_joined"
	EvRoomLeft        = "room_left"
	EvError           = "error"
	EvPong            = "pong"
	EvBookingAvail    = "new_booking_available"
	EvDriverAssigned  = "driver_assigned"
	EvBookingStatus   = "booking_status_update"
	EvLocationOut     = "location_updated"
	EvDriverStatusOut = "driver_status_changed"
	EvChatOut         = "chat_message"
	EvTypingOut       = "typing_indicator"
	EvPresenceOut     = "presence_updated"
	EvEtaOut          = "eta_updated"
	EvAuthStatus      = "auth_status_update"
	EvSessionExpired  = "session_expired"
	EvForceLogout     = "force_logout"
	EvActiveTrips     = "active_trips"
)

// ─── Inbound payloads ───────────────────────────────────────

// RoomRequest is the payload of join_room / leave_room.
type RoomRequest struct {
	Room string `json:"room"`
}

// StatusRequest is the payload of driver_status_update: the explicit
// go-online / go-offline intent.
type StatusRequest struct {
	IsOnline    bool `json:"is_online"`
	IsAvailable bool `json:"is_available"`
}

// LocationUpdate is the payload of update_location.
type LocationUpdate struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AccuracyM  float64   `json:"accuracy_m,omitempty"`
	SpeedKmph  float64   `json:"speed_kmph,omitempty"`
	BearingDeg float64   `json:"bearing_deg,omitempty"`
	TripID     string    `json:"trip_id,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// TrackRequest is the payload of subscribe_tracking / unsubscribe_tracking.
type TrackRequest struct {
	BookingID string `json:"booking_id"`
}

// ChatRequest is the payload of send_message.
type ChatRequest struct {
	BookingID string `json:"booking_id"`
	Body      string `json:"body"`
}

// TypingRequest is the payload of typing_start / typing_stop.
type TypingRequest struct {
	BookingID string `json:"booking_id"`
}

// PresenceRequest is the payload of presence_update.
type PresenceRequest struct {
	Status    string `json:"status"`
	BookingID string `json:"booking_id,omitempty"`
}

// EmergencyRequest is the payload of emergency_alert.
type EmergencyRequest struct {
	BookingID string   `json:"booking_id"`
	Kind      string   `json:"kind,omitempty"`
	Message   string   `json:"message,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// TripStatusRequest is the payload of trip_status_update.
type TripStatusRequest struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
}

// AcceptRequest is the payload of accept_booking.
type AcceptRequest struct {
	BookingID string `json:"booking_id"`
}

// RejectRequest is the payload of reject_booking.
type RejectRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason,omitempty"`
}

// ─── Outbound payloads ──────────────────────────────────────

// ErrorPayload is the data of an error frame. Codes come from the same
// taxonomy the HTTP surface uses.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectedPayload greets a freshly authenticated client with its identity
// and auto-joined rooms.
type ConnectedPayload struct {
	UserID   string   `json:"user_id"`
	UserType string   `json:"user_type"`
	Rooms    []string `json:"rooms"`
}

// TypingPayload is the data of typing_indicator.
type TypingPayload struct {
	BookingID string `json:"booking_id"`
	UserID    string `json:"user_id"`
	IsTyping  bool   `json:"is_typing"`
}

// PresencePayload is the data of presence_updated.
type PresencePayload struct {
	UserID    string `json:"user_id"`
	UserType  string `json:"user_type"`
	Status    string `json:"status"`
	BookingID string `json:"booking_id,omitempty"`
}

// EtaPayload is the data of eta_updated: the rolling estimate toward the
// trip's current target (pickup before the parcel is collected, dropoff
// after).
type EtaPayload struct {
	BookingID  string  `json:"booking_id"`
	Target     string  `json:"target"`
	EtaMinutes float64 `json:"eta_minutes"`
}

// AuthStatusPayload is the data of auth_status_update.
type AuthStatusPayload struct {
	DriverID           string `json:"driver_id"`
	VerificationStatus string `json:"verification_status"`
	IsEligible         bool   `json:"is_eligible"`
}
