package service

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/shiva/swiftparcel/config"
	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/internal/repository"
	"github.com/shiva/swiftparcel/pkg/geo"
	"github.com/shiva/swiftparcel/pkg/push"
)

// ─── Candidate ──────────────────────────────────────────────

// Candidate is one ranked driver for a pending booking. The device token
// rides along unexported so it reaches the push collaborator without ever
// appearing in API payloads.
type Candidate struct {
	Driver     model.DriverSummary `json:"driver"`
	DistanceM  float64             `json:"distance_m"`
	EtaMinutes float64             `json:"eta_minutes"`

	deviceToken string
}

// ─── DispatchService ────────────────────────────────────────

// DispatchService discovers and ranks drivers for a pending booking and
// fans the offer out to them.
//
// Discovery is a filter pipeline over the online driver set:
//
//	online ∧ available ∧ eligible ∧ has location   (repository query)
//	→ within the dispatch radius of the pickup      (Haversine)
//	→ no rejection on record for this booking
//
// Ranking: ascending pickup distance; within the same kilometre band,
// higher rating first, then more completed trips. The tie bands keep a
// nearby high-rated driver ahead of a marginally closer low-rated one.
type DispatchService struct {
	cfg        config.DispatchConfig
	users      *repository.UserRepository
	rejections *repository.RejectionRepository
	events     Events
	pusher     push.Sender
}

// NewDispatchService wires the dispatch engine. events and pusher may be
// nil; both default to no-ops.
func NewDispatchService(
	cfg config.DispatchConfig,
	users *repository.UserRepository,
	rejections *repository.RejectionRepository,
	events Events,
	pusher push.Sender,
) *DispatchService {
	if events == nil {
		events = NopEvents{}
	}
	if pusher == nil {
		pusher = push.NopSender{}
	}
	return &DispatchService{
		cfg:        cfg,
		users:      users,
		rejections: rejections,
		events:     events,
		pusher:     pusher,
	}
}

// Candidates returns the ranked driver list for a booking's pickup point.
func (s *DispatchService) Candidates(ctx context.Context, booking *model.Booking) ([]Candidate, error) {
	drivers, err := s.users.ListDispatchCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatch: candidates for %s: %w", booking.ID, err)
	}

	rejected, err := s.rejections.RejectedDrivers(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: rejections for %s: %w", booking.ID, err)
	}

	pickup := booking.Pickup.Point
	out := make([]Candidate, 0, len(drivers))
	for _, d := range drivers {
		if rejected[d.ID] {
			continue
		}
		if d.Driver == nil || d.Driver.CurrentLocation == nil {
			continue
		}
		distM := geo.HaversineM(*d.Driver.CurrentLocation, pickup)
		if distM > s.cfg.RadiusMeters {
			continue
		}
		out = append(out, Candidate{
			Driver:      d.Summary(),
			DistanceM:   distM,
			EtaMinutes:  geo.EstimateTimeMinutes(*d.Driver.CurrentLocation, pickup),
			deviceToken: d.Driver.DeviceToken,
		})
	}

	RankCandidates(out)
	return out, nil
}

// RankCandidates sorts in place: distance band (km) ascending, then rating
// descending, then total trips descending, then id for a stable order.
func RankCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		bi, bj := int(cands[i].DistanceM/1000), int(cands[j].DistanceM/1000)
		if bi != bj {
			return bi < bj
		}
		if cands[i].Driver.Rating != cands[j].Driver.Rating {
			return cands[i].Driver.Rating > cands[j].Driver.Rating
		}
		if cands[i].Driver.TotalTrips != cands[j].Driver.TotalTrips {
			return cands[i].Driver.TotalTrips > cands[j].Driver.TotalTrips
		}
		return cands[i].Driver.ID < cands[j].Driver.ID
	})
}

// Notify announces the booking to every ranked candidate: session rooms
// first, then best-effort device pushes. Returns the notified driver ids.
func (s *DispatchService) Notify(ctx context.Context, booking *model.Booking) ([]string, error) {
	cands, err := s.Candidates(ctx, booking)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		log.Printf("[dispatch] no candidates for %s (pickup %.4f,%.4f)",
			booking.ID, booking.Pickup.Point.Latitude, booking.Pickup.Point.Longitude)
		return nil, nil
	}

	driverIDs := make([]string, len(cands))
	for i, c := range cands {
		driverIDs[i] = c.Driver.ID
	}
	s.events.BookingAvailable(booking, driverIDs)

	for _, n := range buildNotifications(booking, cands) {
		if err := s.pusher.Send(ctx, n); err != nil {
			log.Printf("[dispatch] WARNING: push for %s: %v", booking.ID, err)
		}
	}

	log.Printf("[dispatch] booking %s offered to %d drivers", booking.ID, len(driverIDs))
	return driverIDs, nil
}

// buildNotifications renders the device pushes for an offer. Candidates
// without a registered device token get the session-room offer only.
func buildNotifications(booking *model.Booking, cands []Candidate) []push.Notification {
	out := make([]push.Notification, 0, len(cands))
	for _, c := range cands {
		if c.deviceToken == "" {
			continue
		}
		out = append(out, push.Notification{
			DeviceToken: c.deviceToken,
			Title:       "New delivery nearby",
			Body:        fmt.Sprintf("Pickup %.1f km away · ₹%.0f", c.DistanceM/1000, booking.Fare.Total),
			Data: map[string]any{
				"booking_id": booking.ID,
				"distance_m": c.DistanceM,
			},
		})
	}
	return out
}
