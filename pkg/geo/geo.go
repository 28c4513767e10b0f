// Package geo provides geographic utility functions for delivery dispatch.
//
// All distance calculations use the Haversine formula on WGS-84 coordinates.
// Road distance comes from the map collaborator when available; everything
// in this package is the straight-line fallback.
package geo

import (
	"math"

	"github.com/shiva/swiftparcel/internal/model"
)

// ─── Constants ──────────────────────────────────────────────

const (
	// EarthRadiusKm is the mean radius of Earth in kilometers.
	EarthRadiusKm = 6371.0

	// EarthRadiusM is the mean radius of Earth in meters.
	EarthRadiusM = 6_371_000.0

	// AverageSpeedKmph is the assumed average city riding speed for a
	// 2-wheeler. Used for ETA estimation when the routing engine is down.
	AverageSpeedKmph = 25.0
)

// ─── Distance ───────────────────────────────────────────────

// HaversineKm returns the great-circle distance between two points in kilometers.
//
// Complexity: O(1)
func HaversineKm(a, b model.GeoPoint) float64 {
	dLat := degToRad(b.Latitude - a.Latitude)
	dLng := degToRad(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(a.Latitude))*math.Cos(degToRad(b.Latitude))*sinLng*sinLng

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// HaversineM returns the great-circle distance between two points in meters.
func HaversineM(a, b model.GeoPoint) float64 {
	return HaversineKm(a, b) * 1000.0
}

// EstimateTimeMinutes returns the estimated direct travel time between two
// points in minutes, assuming AverageSpeedKmph.
func EstimateTimeMinutes(a, b model.GeoPoint) float64 {
	return (HaversineKm(a, b) / AverageSpeedKmph) * 60.0
}

// ─── Bearing ────────────────────────────────────────────────

// BearingDeg returns the initial bearing from a to b in degrees [0, 360).
// Pushed to customers alongside location updates so the client can orient
// the driver marker.
func BearingDeg(a, b model.GeoPoint) float64 {
	lat1 := degToRad(a.Latitude)
	lat2 := degToRad(b.Latitude)
	dLng := degToRad(b.Longitude - a.Longitude)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	deg := radToDeg(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// ─── Route sampling ─────────────────────────────────────────

// SampleSegment returns n evenly spaced points along the straight segment
// from a to b, endpoints included. Used by route validation to check whether
// a leg leaves the service area. n < 2 degenerates to the endpoints.
func SampleSegment(a, b model.GeoPoint, n int) []model.GeoPoint {
	if n < 2 {
		return []model.GeoPoint{a, b}
	}
	points := make([]model.GeoPoint, 0, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		points = append(points, model.GeoPoint{
			Latitude:  a.Latitude + (b.Latitude-a.Latitude)*t,
			Longitude: a.Longitude + (b.Longitude-a.Longitude)*t,
		})
	}
	return points
}

// ─── Helpers ────────────────────────────────────────────────

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

func radToDeg(rad float64) float64 {
	return rad * (180.0 / math.Pi)
}
