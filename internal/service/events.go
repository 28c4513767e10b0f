package service

import "github.com/shiva/swiftparcel/internal/model"

// Events is the outbound edge from the booking core and dispatch engine to
// the session plane. The hub implements it; tests use a recording fake.
//
// All methods are fire-and-forget: fan-out is best-effort and must never
// block or fail a booking operation.
type Events interface {
	// BookingAvailable announces a pending booking to the given drivers.
	BookingAvailable(booking *model.Booking, driverIDs []string)

	// BookingAssigned announces a won assignment to the customer side:
	// user room, booking room and the customer type room.
	BookingAssigned(booking *model.Booking)

	// BookingStatusChanged mirrors a lifecycle transition to all parties.
	BookingStatusChanged(booking *model.Booking)

	// DriverStatusChanged tells the admin type-room about an online/
	// availability flip.
	DriverStatusChanged(driverID string, isOnline, isAvailable bool)

	// DriverVerificationChanged tells the driver their derived verification
	// status moved (document review, admin approval).
	DriverVerificationChanged(driverID string, status model.VerificationStatus)

	// UserDeactivated orders every live session of the user to log out.
	UserDeactivated(userID string)
}

// NopEvents drops all events. Used before the hub is wired and in tests
// that don't assert on fan-out.
type NopEvents struct{}

func (NopEvents) BookingAvailable(*model.Booking, []string)                  {}
func (NopEvents) BookingAssigned(*model.Booking)                             {}
func (NopEvents) BookingStatusChanged(*model.Booking)                        {}
func (NopEvents) DriverStatusChanged(string, bool, bool)                     {}
func (NopEvents) DriverVerificationChanged(string, model.VerificationStatus) {}
func (NopEvents) UserDeactivated(string)                                     {}
