package handler

import (
	"net/http"
	"strconv"

	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/internal/service"
)

// ServiceAreaHandler exposes the service-area validator so clients can
// pre-check addresses before submitting a booking.
type ServiceAreaHandler struct {
	area *service.ServiceAreaService
}

// NewServiceAreaHandler creates the service-area handler.
func NewServiceAreaHandler(area *service.ServiceAreaService) *ServiceAreaHandler {
	return &ServiceAreaHandler{area: area}
}

// Info handles GET /service-area.
func (h *ServiceAreaHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.area.Info())
}

// Check handles GET /service-area/check?lat=..&lng=..
func (h *ServiceAreaHandler) Check(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "lat and lng query parameters are required")
		return
	}
	check := h.area.Check(model.GeoPoint{Latitude: lat, Longitude: lng}, "Location")
	writeJSON(w, http.StatusOK, check)
}

// routeBody is the POST /service-area/route body.
type routeBody struct {
	Pickup  model.GeoPoint `json:"pickup"`
	Dropoff model.GeoPoint `json:"dropoff"`
	Samples int            `json:"samples"`
}

// CheckRoute handles POST /service-area/route: sampled validation of the
// pickup→dropoff segment.
func (h *ServiceAreaHandler) CheckRoute(w http.ResponseWriter, r *http.Request) {
	var req routeBody
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.area.ValidateRoute(req.Pickup, req.Dropoff, req.Samples))
}
