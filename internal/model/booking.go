package model

import "time"

// ─── Booking lifecycle ──────────────────────────────────────

// BookingStatus is the booking lifecycle state.
type BookingStatus string

const (
	StatusPending       BookingStatus = "pending"
	StatusConfirmed     BookingStatus = "confirmed"
	StatusDriverAssigned BookingStatus = "driver_assigned"
	StatusDriverEnroute BookingStatus = "driver_enroute"
	StatusDriverArrived BookingStatus = "driver_arrived"
	StatusPickedUp      BookingStatus = "picked_up"
	StatusInTransit     BookingStatus = "in_transit"
	StatusAtDropoff     BookingStatus = "at_dropoff"
	StatusDelivered     BookingStatus = "delivered"
	StatusCancelled     BookingStatus = "cancelled"
)

// allowedTransitions is the forward edge set of the lifecycle machine.
// cancelled is handled separately (reachable from any pre-pickup state).
var allowedTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:        {StatusConfirmed, StatusDriverAssigned},
	StatusConfirmed:      {StatusDriverAssigned},
	StatusDriverAssigned: {StatusDriverEnroute, StatusDriverArrived},
	StatusDriverEnroute:  {StatusDriverArrived},
	StatusDriverArrived:  {StatusPickedUp},
	StatusPickedUp:       {StatusInTransit},
	StatusInTransit:      {StatusAtDropoff, StatusDelivered},
	StatusAtDropoff:      {StatusDelivered},
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to BookingStatus) bool {
	if to == StatusCancelled {
		return CanCancel(from)
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanCancel reports whether a booking in the given state may be cancelled.
func CanCancel(s BookingStatus) bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusDriverAssigned
}

// OccupiedStatuses are the states in which the assigned driver is busy.
var OccupiedStatuses = []BookingStatus{
	StatusDriverAssigned,
	StatusDriverEnroute,
	StatusDriverArrived,
	StatusPickedUp,
	StatusInTransit,
	StatusAtDropoff,
}

// IsOccupied reports whether the status keeps the driver busy.
func IsOccupied(s BookingStatus) bool {
	for _, o := range OccupiedStatuses {
		if s == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(s BookingStatus) bool {
	return s == StatusDelivered || s == StatusCancelled
}

// TimingFieldFor maps a status to the timing key stamped on entry.
// Empty string means no stamp for that status.
func TimingFieldFor(s BookingStatus) string {
	switch s {
	case StatusConfirmed:
		return "confirmedAt"
	case StatusDriverAssigned:
		return "assignedAt"
	case StatusDriverEnroute:
		return "enrouteAt"
	case StatusDriverArrived:
		return "arrivedAt"
	case StatusPickedUp:
		return "pickedUpAt"
	case StatusInTransit:
		return "inTransitAt"
	case StatusAtDropoff:
		return "atDropoffAt"
	case StatusDelivered:
		return "deliveredAt"
	case StatusCancelled:
		return "cancelledAt"
	}
	return ""
}

// ─── Booking ────────────────────────────────────────────────

// Endpoint is one side of a delivery (pickup or dropoff).
type Endpoint struct {
	Name         string   `json:"name"`
	Phone        string   `json:"phone"`
	Address      string   `json:"address"`
	Point        GeoPoint `json:"location"`
	Instructions string   `json:"instructions,omitempty"`
}

// Package describes the parcel being moved.
type Package struct {
	WeightKg    float64 `json:"weight_kg"`
	Description string  `json:"description,omitempty"`
	Fragile     bool    `json:"fragile,omitempty"`
	Perishable  bool    `json:"perishable,omitempty"`
}

// FareBreakdown is persisted verbatim with the booking for auditability.
type FareBreakdown struct {
	BaseFare         float64 `json:"base_fare"`
	DistanceKm       float64 `json:"distance_km"`
	PerKmRate        float64 `json:"per_km_rate"`
	DistanceFare     float64 `json:"distance_fare"`
	Subtotal         float64 `json:"subtotal"`
	WeightMultiplier float64 `json:"weight_multiplier"`
	SurgeMultiplier  float64 `json:"surge_multiplier"`
	Total            float64 `json:"total"`
	Currency         string  `json:"currency"`
}

// Cancellation records who cancelled, why, when and the refund issued.
type Cancellation struct {
	CancelledBy  string    `json:"cancelled_by"`
	Reason       string    `json:"reason,omitempty"`
	CancelledAt  time.Time `json:"cancelled_at"`
	RefundAmount float64   `json:"refund_amount"`
}

// Rating is the customer's post-delivery rating of the driver.
type Rating struct {
	Stars   int       `json:"stars"`
	Comment string    `json:"comment,omitempty"`
	RatedAt time.Time `json:"rated_at"`
}

// Booking maps to the `bookings` table.
//
// DriverID is a pointer and must be read through DriverIDOf: legacy rows may
// carry "", whitespace or other junk where "unassigned" is meant.
type Booking struct {
	ID            string         `json:"id"`
	CustomerID    string         `json:"customer_id"`
	DriverID      *string        `json:"driver_id,omitempty"`
	Status        BookingStatus  `json:"status"`
	Pickup        Endpoint       `json:"pickup"`
	Dropoff       Endpoint       `json:"dropoff"`
	Package       Package        `json:"package"`
	VehicleType   string         `json:"vehicle_type"`
	Fare          FareBreakdown  `json:"fare"`
	PaymentMethod string         `json:"payment_method"`
	PaymentStatus string         `json:"payment_status"`
	DistanceKm    float64        `json:"distance_km"`
	Timing        map[string]time.Time `json:"timing"`
	Driver        *DriverSummary `json:"driver_info,omitempty"`
	Cancellation  *Cancellation  `json:"cancellation,omitempty"`
	Rating        *Rating        `json:"rating,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// AssignedDriverID returns the normalized driver id, or "" when unassigned.
func (b *Booking) AssignedDriverID() string {
	return DriverIDOf(b.DriverID)
}

// StatusUpdate maps to the `booking_status_updates` table: an append-only
// trail of every transition, mirrored into trip tracking.
type StatusUpdate struct {
	ID        string        `json:"id"`
	BookingID string        `json:"booking_id"`
	Status    BookingStatus `json:"status"`
	UpdatedBy string        `json:"updated_by"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// TripTracking maps to the `trip_tracking` table: the live view a
// subscriber receives on subscribe_tracking replay.
type TripTracking struct {
	BookingID      string          `json:"booking_id"`
	Status         BookingStatus   `json:"status"`
	DriverLocation *DriverLocation `json:"driver_location,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
