package core

import (
	"context"
	"fmt"

	"tfdcore/pkg/domain"
)

// NewTripCapacityRule returns the default in-transaction rule enforcing vehicle seat limits.
func NewTripCapacityRule() domain.Rule {
	return tripCapacityRule{}
}

type tripCapacityRule struct{}

func (tripCapacityRule) Name() string { return "trip_capacity" }

func (r tripCapacityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, id := range changedIDs(changes, domain.EntityTrip, tripID) {
		trip, ok := view.FindTrip(id)
		if !ok || trip.Status == domain.TripCancelled {
			continue
		}
		if trip.OccupiedSeats > trip.TotalSeats {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("trip %s over capacity: %d/%d seats", trip.ID, trip.OccupiedSeats, trip.TotalSeats),
				Entity:   domain.EntityTrip,
				EntityID: trip.ID,
			})
		}
	}
	return res, nil
}
