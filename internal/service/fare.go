package service

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/shiva/swiftparcel/config"
	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/pkg/geo"
	"github.com/shiva/swiftparcel/pkg/maps"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	// ErrUnsupportedVehicle is returned for any vehicle type other than
	// 2_wheeler; nothing else is on the road yet.
	ErrUnsupportedVehicle = errors.New("fare: unsupported vehicle type")
)

// ─── Multipliers ────────────────────────────────────────────
//
// Weight multiplier is a step function over package weight:
//
//	kg > 10      →  1.2x
//	5 < kg ≤ 10  →  1.1x
//	else         →  1.0x
//
// Surge is by local wall clock:
//
//	08:00–10:00  →  1.2x  (morning peak)
//	22:00–06:00  →  1.3x  (late night)
//	else         →  1.0x

const (
	weightMultHeavy  = 1.2
	weightMultMedium = 1.1

	surgeMultPeak      = 1.2
	surgeMultLateNight = 1.3
)

// WeightMultiplier returns the step multiplier for a package weight.
func WeightMultiplier(weightKg float64) float64 {
	switch {
	case weightKg > 10:
		return weightMultHeavy
	case weightKg > 5:
		return weightMultMedium
	default:
		return 1.0
	}
}

// SurgeMultiplier returns the time-band multiplier for a local timestamp.
func SurgeMultiplier(at time.Time) float64 {
	h := at.Hour()
	switch {
	case h >= 22 || h < 6:
		return surgeMultLateNight
	case h >= 8 && h < 10:
		return surgeMultPeak
	default:
		return 1.0
	}
}

// ─── FareService ────────────────────────────────────────────

// FareService computes the fare pipeline:
//
//	subtotal = base + distance_km × per_km
//	total    = round(subtotal × weight_mult × surge_mult)   // whole rupees
//
// The output is deterministic for identical (distance, weight, timestamp,
// vehicle) inputs; the breakdown is persisted verbatim with the
// booking for audit.
type FareService struct {
	cfg      config.FareConfig
	provider maps.DistanceProvider
}

// NewFareService creates the fare engine. provider may be nil, in which
// case distance is always Haversine.
func NewFareService(cfg config.FareConfig, provider maps.DistanceProvider) *FareService {
	return &FareService{cfg: cfg, provider: provider}
}

// DistanceKm resolves the trip distance: map collaborator first, Haversine
// on any failure. The fallback is logged, never surfaced.
func (s *FareService) DistanceKm(ctx context.Context, pickup, dropoff model.GeoPoint) float64 {
	if s.provider != nil {
		km, err := s.provider.DistanceKm(ctx, pickup, dropoff)
		if err == nil {
			return km
		}
		log.Printf("[fare] WARNING: map provider failed: %v — falling back to haversine", err)
	}
	return geo.HaversineKm(pickup, dropoff)
}

// Quote computes the fare breakdown for the given inputs.
func (s *FareService) Quote(distanceKm, weightKg float64, vehicleType string, at time.Time) (model.FareBreakdown, error) {
	if vehicleType != "2_wheeler" {
		return model.FareBreakdown{}, ErrUnsupportedVehicle
	}

	distanceFare := distanceKm * s.cfg.PerKmRate
	subtotal := s.cfg.BaseFare + distanceFare
	weightMult := WeightMultiplier(weightKg)
	surgeMult := SurgeMultiplier(at)
	total := math.Round(subtotal * weightMult * surgeMult)

	return model.FareBreakdown{
		BaseFare:         s.cfg.BaseFare,
		DistanceKm:       distanceKm,
		PerKmRate:        s.cfg.PerKmRate,
		DistanceFare:     distanceFare,
		Subtotal:         subtotal,
		WeightMultiplier: weightMult,
		SurgeMultiplier:  surgeMult,
		Total:            total,
		Currency:         "INR",
	}, nil
}
