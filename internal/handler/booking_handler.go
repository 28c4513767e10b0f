package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shiva/swiftparcel/internal/middleware"
	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/internal/service"
)

// BookingHandler exposes the booking lifecycle over HTTP.
type BookingHandler struct {
	bookings *service.BookingService
	dispatch *service.DispatchService
}

// NewBookingHandler creates the booking handler.
func NewBookingHandler(bookings *service.BookingService, dispatch *service.DispatchService) *BookingHandler {
	return &BookingHandler{bookings: bookings, dispatch: dispatch}
}

// createRequest is the POST /bookings body.
type createRequest struct {
	Pickup        model.Endpoint `json:"pickup"`
	Dropoff       model.Endpoint `json:"dropoff"`
	Package       model.Package  `json:"package"`
	VehicleType   string         `json:"vehicle_type"`
	PaymentMethod string         `json:"payment_method"`
}

// Create handles POST /bookings: price, persist and fan out to nearby
// drivers. Dispatch failure does not fail the booking; it stays pending
// and is rediscoverable.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	if identity.UserType != model.TypeCustomer {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "only customers create bookings")
		return
	}

	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := h.bookings.Create(r.Context(), service.CreateRequest{
		CustomerID:    identity.UserID,
		Pickup:        req.Pickup,
		Dropoff:       req.Dropoff,
		Package:       req.Package,
		VehicleType:   req.VehicleType,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	notified, err := h.dispatch.Notify(r.Context(), booking)
	if err != nil {
		writeJSON(w, http.StatusCreated, map[string]any{
			"booking":          booking,
			"drivers_notified": 0,
			"dispatch_error":   "driver notification failed, booking remains pending",
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"booking":          booking,
		"drivers_notified": len(notified),
	})
}

// Get handles GET /bookings/{id}. Only the parties and admins may read it.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	booking, err := h.bookings.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !identity.IsAdmin() &&
		booking.CustomerID != identity.UserID &&
		booking.AssignedDriverID() != identity.UserID {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not a party of this booking")
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// List handles GET /bookings: the caller's own history, newest first.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	bookings, err := h.bookings.ListForUser(r.Context(), identity.UserID, identity.UserType, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings, "count": len(bookings)})
}

// Accept handles POST /bookings/{id}/accept: the driver's claim on a
// pending booking. Exactly one concurrent accept wins.
func (h *BookingHandler) Accept(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	if identity.UserType != model.TypeDriver {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "only drivers accept bookings")
		return
	}

	booking, err := h.bookings.Accept(r.Context(), mux.Vars(r)["id"], identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// rejectRequest is the POST /bookings/{id}/reject body.
type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject handles POST /bookings/{id}/reject and re-offers the booking to
// the remaining candidates.
func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	if identity.UserType != model.TypeDriver {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "only drivers reject bookings")
		return
	}

	var req rejectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := h.bookings.Reject(r.Context(), mux.Vars(r)["id"], identity.UserID, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Re-offer to everyone still eligible; the rejector is now excluded.
	if booking.Status == model.StatusPending {
		if _, err := h.dispatch.Notify(r.Context(), booking); err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"booking": booking, "redispatched": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking, "redispatched": true})
}

// statusRequest is the PATCH /bookings/{id}/status body.
type statusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// UpdateStatus handles PATCH /bookings/{id}/status.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updatedBy := identity.UserID
	if identity.IsAdmin() {
		updatedBy = "admin:" + identity.UserID
	}
	booking, err := h.bookings.UpdateStatus(r.Context(), mux.Vars(r)["id"], model.BookingStatus(req.Status), updatedBy, req.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// cancelRequest is the POST /bookings/{id}/cancel body.
type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /bookings/{id}/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	var req cancelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := h.bookings.Cancel(r.Context(), mux.Vars(r)["id"], identity.UserID, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// rateRequest is the POST /bookings/{id}/rating body.
type rateRequest struct {
	Stars   int    `json:"stars"`
	Comment string `json:"comment"`
}

// Rate handles POST /bookings/{id}/rating.
func (h *BookingHandler) Rate(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	var req rateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.bookings.Rate(r.Context(), mux.Vars(r)["id"], identity.UserID, req.Stars, req.Comment); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rated": true})
}

// Candidates handles GET /bookings/{id}/candidates: the ranked driver list
// for a pending booking. Admin debugging surface.
func (h *BookingHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	cands, err := h.dispatch.Candidates(r.Context(), booking)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": cands, "count": len(cands)})
}
