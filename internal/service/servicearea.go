package service

import (
	"fmt"

	"github.com/shiva/swiftparcel/config"
	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/pkg/geo"
)

// ─── ServiceAreaService ─────────────────────────────────────

// ServiceAreaService tests points against the configured service annulus:
// valid iff radius_min ≤ distance(centre, point) ≤ radius_max.
type ServiceAreaService struct {
	cfg config.ServiceAreaConfig
}

// NewServiceAreaService creates the validator from config.
func NewServiceAreaService(cfg config.ServiceAreaConfig) *ServiceAreaService {
	return &ServiceAreaService{cfg: cfg}
}

// AreaCheck is the result of validating a single point.
type AreaCheck struct {
	Valid      bool    `json:"valid"`
	Warning    bool    `json:"warning"`
	DistanceM  float64 `json:"distance_m"`
	CenterName string  `json:"center_name"`
	Message    string  `json:"message,omitempty"`
}

// Check validates one point. label names the endpoint in the message
// ("Pickup", "Dropoff", "Driver location").
func (s *ServiceAreaService) Check(p model.GeoPoint, label string) AreaCheck {
	center := model.GeoPoint{Latitude: s.cfg.CenterLat, Longitude: s.cfg.CenterLng}
	d := geo.HaversineM(center, p)

	check := AreaCheck{
		DistanceM:  d,
		CenterName: s.cfg.CenterName,
	}
	if d < s.cfg.RadiusMinM || d > s.cfg.RadiusMaxM {
		check.Message = fmt.Sprintf(
			"%s is outside the %s service area (%.1f km from centre, allowed %.1f–%.1f km)",
			label, s.cfg.CenterName, d/1000, s.cfg.RadiusMinM/1000, s.cfg.RadiusMaxM/1000,
		)
		return check
	}
	check.Valid = true
	if s.cfg.WarningThresholdM > 0 && d >= s.cfg.WarningThresholdM {
		check.Warning = true
		check.Message = fmt.Sprintf("%s is near the edge of the %s service area", label, s.cfg.CenterName)
	}
	return check
}

// ValidateBooking runs pickup AND dropoff. The first failing endpoint is
// named in the returned check's message.
func (s *ServiceAreaService) ValidateBooking(pickup, dropoff model.GeoPoint) (AreaCheck, bool) {
	if check := s.Check(pickup, "Pickup"); !check.Valid {
		return check, false
	}
	check := s.Check(dropoff, "Dropoff")
	return check, check.Valid
}

// AllowGoOnline gates the driver-status API: under strict mode a driver
// outside the area cannot flip isOnline=true.
func (s *ServiceAreaService) AllowGoOnline(p *model.GeoPoint) (AreaCheck, bool) {
	if p == nil {
		// No known location: allow, the first location push will tell.
		return AreaCheck{Valid: true, CenterName: s.cfg.CenterName}, true
	}
	check := s.Check(*p, "Driver location")
	if !s.cfg.Strict {
		return check, true
	}
	return check, check.Valid
}

// RouteCheck summarizes a sampled-route validation.
type RouteCheck struct {
	Total   int `json:"total_points"`
	Inside  int `json:"inside"`
	Outside int `json:"outside"`
	Warning int `json:"warning"`
}

// ValidateRoute samples the pickup→dropoff segment and reports how many
// sampled points fall outside the area.
func (s *ServiceAreaService) ValidateRoute(pickup, dropoff model.GeoPoint, samples int) RouteCheck {
	if samples < 2 {
		samples = 10
	}
	var rc RouteCheck
	for _, p := range geo.SampleSegment(pickup, dropoff, samples) {
		rc.Total++
		check := s.Check(p, "Route point")
		switch {
		case !check.Valid:
			rc.Outside++
		case check.Warning:
			rc.Inside++
			rc.Warning++
		default:
			rc.Inside++
		}
	}
	return rc
}

// Info describes the configured area for clients.
func (s *ServiceAreaService) Info() map[string]any {
	return map[string]any{
		"center": model.GeoPoint{Latitude: s.cfg.CenterLat, Longitude: s.cfg.CenterLng},
		"center_name":       s.cfg.CenterName,
		"radius_min_m":      s.cfg.RadiusMinM,
		"radius_max_m":      s.cfg.RadiusMaxM,
		"warning_threshold_m": s.cfg.WarningThresholdM,
		"strict":            s.cfg.Strict,
	}
}
