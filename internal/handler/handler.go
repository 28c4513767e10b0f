// Package handler implements the HTTP API surface.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/shiva/swiftparcel/internal/repository"
	"github.com/shiva/swiftparcel/internal/service"
)

// ─── Responses ──────────────────────────────────────────────

// errorBody is the uniform error envelope.
type errorBody struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("[http] encode response: %v", err)
		}
	}
}

// writeError writes the uniform error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// writeServiceError maps service-layer errors onto HTTP statuses and the
// fixed wire-code taxonomy. On an accept race the loser gets exactly
// BOOKING_ALREADY_ASSIGNED.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "BOOKING_NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrDriverNotFound):
		writeError(w, http.StatusNotFound, "DRIVER_NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrBookingAlreadyAssigned):
		writeError(w, http.StatusConflict, "BOOKING_ALREADY_ASSIGNED", err.Error())
	case errors.Is(err, service.ErrDriverNotAvailable):
		writeError(w, http.StatusConflict, "DRIVER_NOT_AVAILABLE", err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, service.ErrNotCancellable):
		writeError(w, http.StatusConflict, "NOT_CANCELLABLE", err.Error())
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrServiceArea):
		writeError(w, http.StatusUnprocessableEntity, "SERVICE_AREA_VIOLATION", err.Error())
	case errors.Is(err, service.ErrUnsupportedVehicle):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "SLOT_NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrSlotNotAvailable):
		writeError(w, http.StatusConflict, "SLOT_NOT_AVAILABLE", err.Error())
	case errors.Is(err, service.ErrSlotAlreadyStarted):
		writeError(w, http.StatusConflict, "SLOT_ALREADY_STARTED", err.Error())
	case errors.Is(err, service.ErrSlotNotOwned):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, service.ErrGenerationInProgress):
		writeError(w, http.StatusConflict, "GENERATION_IN_PROGRESS", err.Error())
	case errors.Is(err, service.ErrUnknownDocument):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrBadDecision):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrUpstream):
		writeError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "store temporarily unavailable")
	case errors.Is(err, repository.ErrDriverNotFound):
		writeError(w, http.StatusNotFound, "DRIVER_NOT_FOUND", "driver not found")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	default:
		log.Printf("[http] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// decodeBody parses a JSON request body, rejecting unknown garbage early.
func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request body is not valid JSON")
		return false
	}
	return true
}

// queryInt reads an integer query parameter with a default.
func queryInt(r *http.Request, key string, def int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return def
}
