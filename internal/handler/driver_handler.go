package handler

import (
	"errors"
	"net/http"

	"github.com/shiva/swiftparcel/internal/middleware"
	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/internal/repository"
	"github.com/shiva/swiftparcel/internal/service"
)

// DriverHandler exposes driver profile, presence, documents and the
// active-trip view.
type DriverHandler struct {
	users        *repository.UserRepository
	bookings     *repository.BookingRepository
	locations    *repository.LocationRepository
	verification *service.VerificationService
	area         *service.ServiceAreaService
	events       service.Events
}

// NewDriverHandler creates the driver handler.
func NewDriverHandler(
	users *repository.UserRepository,
	bookings *repository.BookingRepository,
	locations *repository.LocationRepository,
	verification *service.VerificationService,
	area *service.ServiceAreaService,
	events service.Events,
) *DriverHandler {
	if events == nil {
		events = service.NopEvents{}
	}
	return &DriverHandler{
		users:        users,
		bookings:     bookings,
		locations:    locations,
		verification: verification,
		area:         area,
		events:       events,
	}
}

// Profile handles GET /drivers/me.
func (h *DriverHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	driver, err := h.users.GetDriver(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrDriverNotFound) {
			writeError(w, http.StatusNotFound, "DRIVER_NOT_FOUND", "driver profile not found")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, driver)
}

// statusBody is the PUT /drivers/me/status body.
type statusBody struct {
	IsOnline    bool `json:"is_online"`
	IsAvailable bool `json:"is_available"`
}

// SetStatus handles PUT /drivers/me/status: the explicit go-online /
// go-offline intent. Going online requires verified documents and, under
// strict mode, a location inside the service area.
func (h *DriverHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	var req statusBody
	if !decodeBody(w, r, &req) {
		return
	}

	if req.IsOnline {
		driver, err := h.users.GetDriver(r.Context(), identity.UserID)
		if err != nil {
			writeError(w, http.StatusNotFound, "DRIVER_NOT_FOUND", "driver profile not found")
			return
		}
		if !driver.Driver.VerificationStatus.IsEligible() {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "documents must be verified before going online")
			return
		}
		if check, ok := h.area.AllowGoOnline(driver.Driver.CurrentLocation); !ok {
			writeError(w, http.StatusUnprocessableEntity, "SERVICE_AREA_VIOLATION", check.Message)
			return
		}
	}

	if err := h.users.SetDriverStatus(r.Context(), identity.UserID, req.IsOnline, req.IsAvailable); err != nil {
		writeServiceError(w, err)
		return
	}
	h.events.DriverStatusChanged(identity.UserID, req.IsOnline, req.IsAvailable)
	writeJSON(w, http.StatusOK, map[string]any{
		"is_online":    req.IsOnline,
		"is_available": req.IsAvailable,
	})
}

// locationBody is the PUT /drivers/me/location body.
type locationBody struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AccuracyM  float64 `json:"accuracy_m"`
	SpeedKmph  float64 `json:"speed_kmph"`
	BearingDeg float64 `json:"bearing_deg"`
	TripID     string  `json:"trip_id"`
}

// SetLocation handles PUT /drivers/me/location, the REST fallback for
// clients without a live session. Stale fixes are dropped.
func (h *DriverHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	var req locationBody
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "coordinates out of range")
		return
	}

	loc := &model.DriverLocation{
		DriverID:   identity.UserID,
		Point:      model.GeoPoint{Latitude: req.Latitude, Longitude: req.Longitude},
		AccuracyM:  req.AccuracyM,
		SpeedKmph:  req.SpeedKmph,
		BearingDeg: req.BearingDeg,
	}
	if req.TripID != "" {
		loc.CurrentTripID = &req.TripID
	}

	applied, err := h.locations.Upsert(r.Context(), loc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if applied {
		_ = h.users.UpdateDriverLocation(r.Context(), identity.UserID, loc.Point)
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied})
}

// documentBody is the POST /drivers/me/documents body. The URL points at
// the already-uploaded object; this endpoint records it.
type documentBody struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// SubmitDocument handles POST /drivers/me/documents.
func (h *DriverHandler) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	var req documentBody
	if !decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "document url is required")
		return
	}

	snap, err := h.verification.SubmitDocument(r.Context(), identity.UserID, req.Kind, req.URL)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// deviceBody is the PUT /drivers/me/device body.
type deviceBody struct {
	DeviceToken string `json:"device_token"`
}

// RegisterDevice handles PUT /drivers/me/device. An empty token clears the
// registration, so a logged-out device stops receiving offers.
func (h *DriverHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	var req deviceBody
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.users.SetDeviceToken(r.Context(), identity.UserID, req.DeviceToken); err != nil {
		if errors.Is(err, repository.ErrDriverNotFound) {
			writeError(w, http.StatusNotFound, "DRIVER_NOT_FOUND", "driver profile not found")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registered": req.DeviceToken != ""})
}

// VerificationStatus handles GET /drivers/me/verification.
func (h *DriverHandler) VerificationStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	snap, err := h.verification.Snapshot(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ActiveTrip handles GET /drivers/me/trip: the driver's current booking,
// 404 when idle.
func (h *DriverHandler) ActiveTrip(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	booking, err := h.bookings.ActiveForDriver(r.Context(), identity.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		writeServiceError(w, err)
		return
	}
	if booking == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no active trip")
		return
	}
	writeJSON(w, http.StatusOK, booking)
}
