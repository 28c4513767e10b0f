package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shiva/swiftparcel/config"
	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/internal/repository"
)

// ─── Booking Errors ─────────────────────────────────────────

var (
	// ErrBookingNotFound is returned when the booking id resolves to nothing.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrBookingAlreadyAssigned is the race-loser answer: another driver
	// holds or won the booking.
	ErrBookingAlreadyAssigned = errors.New("booking is already assigned to another driver")

	// ErrDriverNotAvailable is returned when the accepting driver is not
	// online and available.
	ErrDriverNotAvailable = errors.New("driver is not online and available")

	// ErrInvalidTransition is returned for an illegal lifecycle step.
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrNotCancellable is returned when cancellation is requested past
	// the pre-pickup states.
	ErrNotCancellable = errors.New("booking can no longer be cancelled")

	// ErrValidation is returned for malformed booking requests.
	ErrValidation = errors.New("invalid booking request")

	// ErrServiceArea is returned when pickup or dropoff is outside the
	// service area; the message names the offending endpoint.
	ErrServiceArea = errors.New("service area violation")

	// ErrUpstream marks a store or map transient the retry budget could not
	// absorb. Callers surface it as UPSTREAM_UNAVAILABLE, never as an
	// internal error.
	ErrUpstream = errors.New("upstream temporarily unavailable")
)

// ─── BookingService ─────────────────────────────────────────

// BookingService owns the booking lifecycle.
//
// Concurrency model for accept:
//   - The Redis lease narrows the race window (advisory).
//   - The pgx transaction with SELECT ... FOR UPDATE on the booking row is
//     the authoritative barrier: under N concurrent accepts exactly one
//     commits the assignment, the rest re-read an assigned row and abort.
//   - The lease is released in a defer, even when the transaction fails.
type BookingService struct {
	cfg       config.BookingConfig
	bookings  *repository.BookingRepository
	users     *repository.UserRepository
	locations *repository.LocationRepository
	locks     *LockService
	fares     *FareService
	area      *ServiceAreaService
	events    Events
}

// NewBookingService wires the booking core.
func NewBookingService(
	cfg config.BookingConfig,
	bookings *repository.BookingRepository,
	users *repository.UserRepository,
	locations *repository.LocationRepository,
	locks *LockService,
	fares *FareService,
	area *ServiceAreaService,
	events Events,
) *BookingService {
	if events == nil {
		events = NopEvents{}
	}
	return &BookingService{
		cfg:       cfg,
		bookings:  bookings,
		users:     users,
		locations: locations,
		locks:     locks,
		fares:     fares,
		area:      area,
		events:    events,
	}
}

// ─── Create ─────────────────────────────────────────────────

// CreateRequest is the validated input for a new booking.
type CreateRequest struct {
	CustomerID    string
	Pickup        model.Endpoint
	Dropoff       model.Endpoint
	Package       model.Package
	VehicleType   string
	PaymentMethod string
}

func (r *CreateRequest) validate(maxWeight float64) error {
	switch {
	case r.CustomerID == "":
		return fmt.Errorf("%w: customer id is required", ErrValidation)
	case r.Pickup.Name == "" || r.Pickup.Phone == "" || r.Pickup.Address == "":
		return fmt.Errorf("%w: pickup name, phone and address are required", ErrValidation)
	case r.Dropoff.Name == "" || r.Dropoff.Phone == "" || r.Dropoff.Address == "":
		return fmt.Errorf("%w: dropoff name, phone and address are required", ErrValidation)
	case r.Package.WeightKg <= 0:
		return fmt.Errorf("%w: package weight must be positive", ErrValidation)
	case r.Package.WeightKg > maxWeight:
		return fmt.Errorf("%w: package weight %.1f kg exceeds the %.0f kg limit", ErrValidation, r.Package.WeightKg, maxWeight)
	}
	if r.VehicleType == "" {
		r.VehicleType = "2_wheeler"
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = "cash"
	}
	return nil
}

// Create validates, prices and persists a new pending booking.
func (s *BookingService) Create(ctx context.Context, req CreateRequest) (*model.Booking, error) {
	if err := req.validate(s.cfg.MaxPackageWeight); err != nil {
		return nil, err
	}

	// Service area: pickup AND dropoff; the failing endpoint is named.
	if check, ok := s.area.ValidateBooking(req.Pickup.Point, req.Dropoff.Point); !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceArea, check.Message)
	}

	distanceKm := s.fares.DistanceKm(ctx, req.Pickup.Point, req.Dropoff.Point)
	if distanceKm > s.cfg.MaxDistanceKm {
		return nil, fmt.Errorf("%w: trip distance %.1f km exceeds the %.0f km limit", ErrValidation, distanceKm, s.cfg.MaxDistanceKm)
	}

	fare, err := s.fares.Quote(distanceKm, req.Package.WeightKg, req.VehicleType, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if fare.Total < s.cfg.MinAmountINR {
		fare.Total = s.cfg.MinAmountINR
	}

	booking := &model.Booking{
		CustomerID:    req.CustomerID,
		Pickup:        req.Pickup,
		Dropoff:       req.Dropoff,
		Package:       req.Package,
		VehicleType:   req.VehicleType,
		Fare:          fare,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: "pending",
		DistanceKm:    distanceKm,
	}

	created, err := s.bookings.Create(ctx, booking)
	if err != nil {
		return nil, s.classifyError(err)
	}

	log.Printf("[booking] ✓ created %s for customer %s (%.1f km, ₹%.0f)",
		created.ID, created.CustomerID, created.DistanceKm, created.Fare.Total)
	return created, nil
}

// ─── Accept ─────────────────────────────────────────────────

// Accept atomically assigns the booking to the driver. This is the only
// path to driver_assigned.
//
// Protocol:
//  1. Try the advisory lease. A held lease normally means certain loss,
//     but if the booking row still reads pending/unassigned the lease is
//     stale and we proceed; the transaction decides.
//  2. Run the assignment transaction (the real barrier).
//  3. Release the lease in a defer, success or failure.
func (s *BookingService) Accept(ctx context.Context, bookingID, driverID string) (*model.Booking, error) {
	result, err := s.locks.Acquire(ctx, bookingID, driverID)
	if err != nil {
		// The lease is advisory; a broken Redis must not block accepts.
		log.Printf("[booking] WARNING: lock acquire %s: %v — proceeding to transaction", bookingID, err)
		result = AcquireOK
	}

	switch result {
	case AcquireOK:
		// fallthrough to the transaction
	case AcquireNotFound:
		return nil, ErrBookingNotFound
	case AcquireAlreadyAssigned:
		return nil, ErrBookingAlreadyAssigned
	case AcquireLocked:
		// Re-read: if the booking is still pending and unassigned the
		// holder is stale (or died mid-accept) and we may proceed.
		b, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return nil, s.classifyError(err)
		}
		if b.Status != model.StatusPending || b.AssignedDriverID() != "" {
			return nil, ErrBookingAlreadyAssigned
		}
		log.Printf("[booking] WARNING: stale lock on %s, proceeding to transaction", bookingID)
	}

	defer func() {
		// Release even on failure; lease TTL recovers anything we miss.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.locks.Release(releaseCtx, bookingID, driverID); err != nil {
			log.Printf("[booking] WARNING: lock release %s: %v", bookingID, err)
		}
	}()

	booking, err := s.bookings.Accept(ctx, bookingID, driverID)
	if err != nil {
		return nil, s.classifyError(err)
	}

	log.Printf("[booking] ✓ %s assigned to driver %s", bookingID, driverID)
	s.events.BookingAssigned(booking)
	return booking, nil
}

// ─── Reject ─────────────────────────────────────────────────

// Reject records the driver's refusal, returns the booking to the pending
// pool and rebroadcasts availability. The caller's dispatch engine excludes
// drivers with a rejection on record.
func (s *BookingService) Reject(ctx context.Context, bookingID, driverID, reason string) (*model.Booking, error) {
	booking, err := s.bookings.Reject(ctx, bookingID, driverID, reason)
	if err != nil {
		return nil, s.classifyError(err)
	}

	log.Printf("[booking] %s rejected by driver %s (%q) — returned to pool", bookingID, driverID, reason)
	return booking, nil
}

// ─── Status update ──────────────────────────────────────────

// UpdateStatus applies one lifecycle transition on behalf of updatedBy.
// Drivers may only move their own booking; customers cannot drive the
// delivery states at all.
func (s *BookingService) UpdateStatus(ctx context.Context, bookingID string, next model.BookingStatus, updatedBy, note string) (*model.Booking, error) {
	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, s.classifyError(err)
	}
	if assigned := current.AssignedDriverID(); assigned != "" && updatedBy != assigned && !strings.HasPrefix(updatedBy, "admin:") {
		return nil, fmt.Errorf("%w: only the assigned driver may update this booking", ErrInvalidTransition)
	}

	booking, err := s.bookings.UpdateStatus(ctx, bookingID, next, updatedBy, note)
	if err != nil {
		return nil, s.classifyError(err)
	}

	if next == model.StatusDelivered {
		if driverID := booking.AssignedDriverID(); driverID != "" {
			if err := s.locations.ClearTrip(ctx, driverID); err != nil {
				log.Printf("[booking] WARNING: clear trip pointer for %s: %v", driverID, err)
			}
		}
	}

	log.Printf("[booking] %s → %s (by %s)", bookingID, next, updatedBy)
	s.events.BookingStatusChanged(booking)
	return booking, nil
}

// ─── Cancel ─────────────────────────────────────────────────

// Cancel terminates a pre-pickup booking with the refund policy applied:
// full refund before assignment, min(₹50, 10% of total) fee after.
func (s *BookingService) Cancel(ctx context.Context, bookingID, cancelledBy, reason string) (*model.Booking, error) {
	booking, err := s.bookings.Cancel(ctx, bookingID, cancelledBy, reason)
	if err != nil {
		return nil, s.classifyError(err)
	}

	log.Printf("[booking] ✗ %s cancelled by %s (refund ₹%.0f)",
		bookingID, cancelledBy, booking.Cancellation.RefundAmount)
	s.events.BookingStatusChanged(booking)
	return booking, nil
}

// ─── Reads & rating ─────────────────────────────────────────

// Get returns one booking.
func (s *BookingService) Get(ctx context.Context, bookingID string) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, s.classifyError(err)
	}
	return b, nil
}

// ListForUser returns the caller's bookings for their side of the platform.
func (s *BookingService) ListForUser(ctx context.Context, userID string, userType model.UserType, limit, offset int) ([]*model.Booking, error) {
	if userType == model.TypeDriver {
		return s.bookings.ListByDriver(ctx, userID, limit, offset)
	}
	return s.bookings.ListByCustomer(ctx, userID, limit, offset)
}

// Rate stores the customer's post-delivery rating and folds it into the
// driver's aggregate.
func (s *BookingService) Rate(ctx context.Context, bookingID, customerID string, stars int, comment string) error {
	if stars < 1 || stars > 5 {
		return fmt.Errorf("%w: stars must be 1..5", ErrValidation)
	}
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return s.classifyError(err)
	}
	if booking.CustomerID != customerID {
		return fmt.Errorf("%w: only the booking customer may rate", ErrValidation)
	}

	if err := s.bookings.SetRating(ctx, bookingID, model.Rating{
		Stars:   stars,
		Comment: comment,
		RatedAt: time.Now().UTC(),
	}); err != nil {
		return s.classifyError(err)
	}

	if driverID := booking.AssignedDriverID(); driverID != "" {
		if err := s.users.ApplyRating(ctx, driverID, stars); err != nil {
			log.Printf("[booking] WARNING: apply rating to %s: %v", driverID, err)
		}
	}
	return nil
}

// ─── Error classification ───────────────────────────────────

// classifyError maps repository errors to user-facing booking errors.
func (s *BookingService) classifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrBookingNotFound), errors.Is(err, repository.ErrNotFound):
		return ErrBookingNotFound
	case errors.Is(err, repository.ErrAlreadyAssigned):
		return ErrBookingAlreadyAssigned
	case errors.Is(err, repository.ErrDriverNotAvailable):
		return ErrDriverNotAvailable
	case errors.Is(err, repository.ErrDriverNotFound):
		return ErrDriverNotFound
	case errors.Is(err, repository.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	case errors.Is(err, repository.ErrNotCancellable):
		return ErrNotCancellable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: store timeout: %v", ErrUpstream, err)
	default:
		return fmt.Errorf("booking: unexpected error: %w", err)
	}
}
