package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/shiva/swiftparcel/internal/middleware"
	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/internal/service"
)

// SlotHandler exposes the work-slot scheduler.
type SlotHandler struct {
	slots *service.SlotService
}

// NewSlotHandler creates the slot handler.
func NewSlotHandler(slots *service.SlotService) *SlotHandler {
	return &SlotHandler{slots: slots}
}

// generateBody is the POST /slots/generate body. Date defaults to today.
type generateBody struct {
	Date string `json:"date"` // YYYY-MM-DD
}

// Generate handles POST /slots/generate: (re)create the eight slots for a
// driver-day. Idempotent; concurrent duplicates are refused by the guard.
func (h *SlotHandler) Generate(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	if identity.UserType != model.TypeDriver {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "only drivers generate work slots")
		return
	}

	var req generateBody
	if !decodeBody(w, r, &req) {
		return
	}

	day := time.Now()
	if req.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	slots, err := h.slots.GenerateDailySlots(r.Context(), identity.UserID, day, time.Local)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots, "count": len(slots)})
}

// List handles GET /slots?date=YYYY-MM-DD.
func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	slots, err := h.slots.ListForDay(r.Context(), identity.UserID, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots, "count": len(slots)})
}

// selectBody is the PATCH /slots/{id}/select body.
type selectBody struct {
	Selected bool `json:"selected"`
}

// Select handles PATCH /slots/{id}/select. Deselecting a slot already
// past its start time is refused.
func (h *SlotHandler) Select(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	var req selectBody
	if !decodeBody(w, r, &req) {
		return
	}

	slot, err := h.slots.SetSelected(r.Context(), mux.Vars(r)["id"], identity.UserID, req.Selected)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// selectBatchBody is the PATCH /slots/select body.
type selectBatchBody struct {
	SlotIDs  []string `json:"slot_ids"`
	Selected bool     `json:"selected"`
}

// SelectBatch handles PATCH /slots/select: bulk selection, silently
// skipping slots the single-slot rules would refuse.
func (h *SlotHandler) SelectBatch(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	var req selectBatchBody
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.SlotIDs) == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "slot_ids is required")
		return
	}

	slots, err := h.slots.SetSelectedBatch(r.Context(), req.SlotIDs, identity.UserID, req.Selected)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slots":   slots,
		"applied": len(slots),
		"skipped": len(req.SlotIDs) - len(slots),
	})
}

// Book handles POST /slots/{id}/book: a customer reserving an available
// slot.
func (h *SlotHandler) Book(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())
	if identity.UserType != model.TypeCustomer {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "only customers book work slots")
		return
	}

	slot, err := h.slots.Book(r.Context(), mux.Vars(r)["id"], identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}
