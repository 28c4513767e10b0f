package handler

import (
	"net/http"
	"time"

	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/internal/service"
)

// FareHandler exposes pre-booking fare estimation.
type FareHandler struct {
	fares *service.FareService
	area  *service.ServiceAreaService
}

// NewFareHandler creates the fare handler.
func NewFareHandler(fares *service.FareService, area *service.ServiceAreaService) *FareHandler {
	return &FareHandler{fares: fares, area: area}
}

// quoteBody is the POST /fare/quote body.
type quoteBody struct {
	Pickup      model.GeoPoint `json:"pickup"`
	Dropoff     model.GeoPoint `json:"dropoff"`
	WeightKg    float64        `json:"weight_kg"`
	VehicleType string         `json:"vehicle_type"`
}

// Quote handles POST /fare/quote. The estimate uses the same pipeline as
// booking creation, so the quoted total matches the booked one for the
// same inputs and hour.
func (h *FareHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteBody
	if !decodeBody(w, r, &req) {
		return
	}
	if req.VehicleType == "" {
		req.VehicleType = "2_wheeler"
	}

	if check, ok := h.area.ValidateBooking(req.Pickup, req.Dropoff); !ok {
		writeError(w, http.StatusUnprocessableEntity, "SERVICE_AREA_VIOLATION", check.Message)
		return
	}

	distanceKm := h.fares.DistanceKm(r.Context(), req.Pickup, req.Dropoff)
	fare, err := h.fares.Quote(distanceKm, req.WeightKg, req.VehicleType, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fare)
}
