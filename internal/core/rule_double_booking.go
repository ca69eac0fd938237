package core

import (
	"context"
	"fmt"

	"tfdcore/pkg/domain"
)

// NewPatientDoubleBookingRule warns when a saved trip seats a patient who is
// already on another trip that day.
func NewPatientDoubleBookingRule() domain.Rule {
	return patientDoubleBookingRule{}
}

type patientDoubleBookingRule struct {
	detector ConflictDetector
}

func (patientDoubleBookingRule) Name() string { return "patient_double_booking" }

func (r patientDoubleBookingRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, id := range changedIDs(changes, domain.EntityTrip, tripID) {
		trip, ok := view.FindTrip(id)
		if !ok || trip.Status == domain.TripCancelled {
			continue
		}
		for _, row := range trip.Passengers {
			if row.IsCompanion {
				continue
			}
			check := r.detector.IsPatientTravelingOnDate(view, row.PatientID, trip.Date, trip.ID)
			if !check.IsTraveling {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("patient %s is on trips %s and %s on %s", row.PatientName, trip.ID, check.Trip.ID, trip.Date),
				Entity:   domain.EntityTrip,
				EntityID: trip.ID,
			})
		}
	}
	return res, nil
}
