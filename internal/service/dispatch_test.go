package service

import (
	"testing"

	"github.com/shiva/swiftparcel/internal/model"
)

func cand(id string, distM, rating float64, trips int) Candidate {
	return Candidate{
		Driver:    model.DriverSummary{ID: id, Rating: rating, TotalTrips: trips},
		DistanceM: distM,
	}
}

func order(cands []Candidate) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.Driver.ID
	}
	return ids
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRankCandidates_DistanceFirst(t *testing.T) {
	cands := []Candidate{
		cand("far", 8000, 5.0, 500),
		cand("near", 1500, 3.0, 10),
		cand("mid", 4000, 4.9, 300),
	}
	RankCandidates(cands)
	if got := order(cands); !sameOrder(got, []string{"near", "mid", "far"}) {
		t.Errorf("order = %v, want near, mid, far", got)
	}
}

func TestRankCandidates_RatingBreaksKmTies(t *testing.T) {
	// 1200 m and 1900 m fall in the same kilometre band; the higher-rated
	// driver ranks first despite being farther.
	cands := []Candidate{
		cand("low", 1200, 4.1, 50),
		cand("high", 1900, 4.8, 50),
	}
	RankCandidates(cands)
	if got := order(cands); !sameOrder(got, []string{"high", "low"}) {
		t.Errorf("order = %v, want high, low", got)
	}
}

func TestRankCandidates_TripsBreakRatingTies(t *testing.T) {
	cands := []Candidate{
		cand("rookie", 1200, 4.5, 12),
		cand("veteran", 1600, 4.5, 900),
	}
	RankCandidates(cands)
	if got := order(cands); !sameOrder(got, []string{"veteran", "rookie"}) {
		t.Errorf("order = %v, want veteran, rookie", got)
	}
}

func TestRankCandidates_BandBoundary(t *testing.T) {
	// 950 m and 1050 m are different bands: distance wins over rating.
	cands := []Candidate{
		cand("next-band", 1050, 5.0, 1000),
		cand("first-band", 950, 1.0, 0),
	}
	RankCandidates(cands)
	if got := order(cands); !sameOrder(got, []string{"first-band", "next-band"}) {
		t.Errorf("order = %v, want first-band, next-band", got)
	}
}

func TestRankCandidates_Stable(t *testing.T) {
	cands := []Candidate{
		cand("b", 500, 4.0, 10),
		cand("a", 700, 4.0, 10),
	}
	RankCandidates(cands)
	// Identical band/rating/trips: id ordering keeps the result stable.
	if got := order(cands); !sameOrder(got, []string{"a", "b"}) {
		t.Errorf("order = %v, want a, b", got)
	}
}

func TestRankCandidates_Empty(t *testing.T) {
	RankCandidates(nil) // must not panic
	var empty []Candidate
	RankCandidates(empty)
}

func TestBuildNotifications_SkipsTokenlessDrivers(t *testing.T) {
	booking := &model.Booking{ID: "bk1", Fare: model.FareBreakdown{Total: 180}}
	cands := []Candidate{
		{Driver: model.DriverSummary{ID: "d1"}, DistanceM: 1200, deviceToken: "tok-1"},
		{Driver: model.DriverSummary{ID: "d2"}, DistanceM: 800},
		{Driver: model.DriverSummary{ID: "d3"}, DistanceM: 2500, deviceToken: "tok-3"},
	}

	ns := buildNotifications(booking, cands)
	if len(ns) != 2 {
		t.Fatalf("got %d notifications, want 2", len(ns))
	}
	if ns[0].DeviceToken != "tok-1" || ns[1].DeviceToken != "tok-3" {
		t.Errorf("tokens = %q, %q; want tok-1, tok-3", ns[0].DeviceToken, ns[1].DeviceToken)
	}
	for _, n := range ns {
		if n.Data["booking_id"] != "bk1" {
			t.Errorf("booking_id = %v, want bk1", n.Data["booking_id"])
		}
	}
}

func TestBuildNotifications_NeverUsesDriverID(t *testing.T) {
	booking := &model.Booking{ID: "bk2"}
	cands := []Candidate{
		{Driver: model.DriverSummary{ID: "driver-42"}, deviceToken: "device-42"},
	}
	ns := buildNotifications(booking, cands)
	if len(ns) != 1 {
		t.Fatalf("got %d notifications, want 1", len(ns))
	}
	if ns[0].DeviceToken == "driver-42" {
		t.Error("notification targeted the driver id instead of the device token")
	}
	if ns[0].DeviceToken != "device-42" {
		t.Errorf("DeviceToken = %q, want device-42", ns[0].DeviceToken)
	}
}
