package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shiva/swiftparcel/internal/middleware"
	"github.com/shiva/swiftparcel/internal/repository"
	"github.com/shiva/swiftparcel/internal/service"
)

// AdminHandler is the admin dashboard surface: verification review, the
// pending queue and booking oversight.
type AdminHandler struct {
	users        *repository.UserRepository
	bookings     *repository.BookingRepository
	verification *service.VerificationService
	bookingSvc   *service.BookingService
	events       service.Events
}

// NewAdminHandler creates the admin handler. events may be nil.
func NewAdminHandler(
	users *repository.UserRepository,
	bookings *repository.BookingRepository,
	verification *service.VerificationService,
	bookingSvc *service.BookingService,
	events service.Events,
) *AdminHandler {
	if events == nil {
		events = service.NopEvents{}
	}
	return &AdminHandler{
		users:        users,
		bookings:     bookings,
		verification: verification,
		bookingSvc:   bookingSvc,
		events:       events,
	}
}

// PendingDrivers handles GET /admin/drivers/pending: the review queue,
// oldest first.
func (h *AdminHandler) PendingDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.users.ListPendingVerificationDrivers(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drivers": drivers, "count": len(drivers)})
}

// DriverVerification handles GET /admin/drivers/{id}/verification: the
// derived per-document view for the review screen.
func (h *AdminHandler) DriverVerification(w http.ResponseWriter, r *http.Request) {
	snap, err := h.verification.Snapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// reviewBody is the POST /admin/drivers/{id}/documents/{kind}/review body.
type reviewBody struct {
	Decision string `json:"decision"` // verified | rejected
	Reason   string `json:"reason"`
}

// ReviewDocument handles POST /admin/drivers/{id}/documents/{kind}/review.
// The decision is audited and the driver's overall status recomputed in
// the same call.
func (h *AdminHandler) ReviewDocument(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	var req reviewBody
	if !decodeBody(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	snap, err := h.verification.Review(r.Context(), vars["id"], vars["kind"], req.Decision, req.Reason, identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ApproveDriver handles POST /admin/drivers/{id}/approve: the explicit
// admin grant on top of verified.
func (h *AdminHandler) ApproveDriver(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	snap, err := h.verification.Approve(r.Context(), mux.Vars(r)["id"], identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PendingBookings handles GET /admin/bookings/pending: unassigned bookings
// awaiting a driver, oldest first.
func (h *AdminHandler) PendingBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListPending(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings, "count": len(bookings)})
}

// assignBody is the POST /admin/bookings/{id}/assign body.
type assignBody struct {
	DriverID string `json:"driver_id"`
}

// AssignBooking handles POST /admin/bookings/{id}/assign: manual dispatch.
// Goes through the same accept path as a driver tap, so the lock, the
// availability check and the assignment transaction all still apply.
func (h *AdminHandler) AssignBooking(w http.ResponseWriter, r *http.Request) {
	var req assignBody
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DriverID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "driver_id is required")
		return
	}

	booking, err := h.bookingSvc.Accept(r.Context(), mux.Vars(r)["id"], req.DriverID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// BookingTrail handles GET /admin/bookings/{id}/trail: the append-only
// status history.
func (h *AdminHandler) BookingTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.bookings.StatusTrail(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trail": trail, "count": len(trail)})
}

// DeactivateUser handles DELETE /admin/users/{id}: soft-delete plus a
// force_logout push so live sessions drop immediately.
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.users.Deactivate(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	h.events.UserDeactivated(id)
	writeJSON(w, http.StatusOK, map[string]any{"deactivated": true})
}
