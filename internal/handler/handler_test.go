package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shiva/swiftparcel/internal/repository"
	"github.com/shiva/swiftparcel/internal/service"
)

func TestWriteServiceError_Taxonomy(t *testing.T) {
	cases := []struct {
		name   string
		in     error
		status int
		code   string
	}{
		{"booking not found", service.ErrBookingNotFound, http.StatusNotFound, "BOOKING_NOT_FOUND"},
		{"accept race loser", service.ErrBookingAlreadyAssigned, http.StatusConflict, "BOOKING_ALREADY_ASSIGNED"},
		{"driver offline", service.ErrDriverNotAvailable, http.StatusConflict, "DRIVER_NOT_AVAILABLE"},
		{"driver missing", service.ErrDriverNotFound, http.StatusNotFound, "DRIVER_NOT_FOUND"},
		{"bad transition", service.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
		{"past cancel window", service.ErrNotCancellable, http.StatusConflict, "NOT_CANCELLABLE"},
		{"bad request", service.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"outside area", service.ErrServiceArea, http.StatusUnprocessableEntity, "SERVICE_AREA_VIOLATION"},
		{"bad vehicle", service.ErrUnsupportedVehicle, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"slot missing", service.ErrSlotNotFound, http.StatusNotFound, "SLOT_NOT_FOUND"},
		{"slot taken", service.ErrSlotNotAvailable, http.StatusConflict, "SLOT_NOT_AVAILABLE"},
		{"slot started", service.ErrSlotAlreadyStarted, http.StatusConflict, "SLOT_ALREADY_STARTED"},
		{"slot not owned", service.ErrSlotNotOwned, http.StatusForbidden, "FORBIDDEN"},
		{"guard held", service.ErrGenerationInProgress, http.StatusConflict, "GENERATION_IN_PROGRESS"},
		{"store transient", service.ErrUpstream, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{"repo driver missing", repository.ErrDriverNotFound, http.StatusNotFound, "DRIVER_NOT_FOUND"},
		{"repo row missing", repository.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeServiceError(rec, c.in)

		if rec.Code != c.status {
			t.Errorf("%s: status = %d, want %d", c.name, rec.Code, c.status)
		}
		var body errorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode body: %v", c.name, err)
		}
		if body.Code != c.code {
			t.Errorf("%s: code = %q, want %q", c.name, body.Code, c.code)
		}
		if body.Timestamp.IsZero() {
			t.Errorf("%s: timestamp missing", c.name)
		}
	}
}

func TestWriteServiceError_WrappedRaceLoser(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, fmt.Errorf("accept b1: %w", service.ErrBookingAlreadyAssigned))

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "BOOKING_ALREADY_ASSIGNED" {
		t.Errorf("code = %q, want BOOKING_ALREADY_ASSIGNED", body.Code)
	}
}
