package core

import (
	"fmt"

	"github.com/samber/lo"

	"tfdcore/pkg/domain"
)

// TravelCheck reports whether a patient already rides a trip on a date.
type TravelCheck struct {
	IsTraveling bool  `json:"is_traveling"`
	Trip        *Trip `json:"trip,omitempty"`
}

// Warning converts a positive check into a confirmable conflict warning.
func (c TravelCheck) Warning(patientName string) (Warning, bool) {
	if !c.IsTraveling || c.Trip == nil {
		return Warning{}, false
	}
	return Warning{
		Kind:    domain.WarningConflict,
		Message: fmt.Sprintf("%s is already on trip %s to %s on %s", patientName, c.Trip.ID, c.Trip.Destination, c.Trip.Date),
		TripID:  c.Trip.ID,
	}, true
}

// ConflictDetector finds same-day double bookings. It never blocks.
type ConflictDetector struct{}

// IsPatientTravelingOnDate scans non-cancelled trips on date, other than
// excludeTripID, for a patient row belonging to patientID.
func (ConflictDetector) IsPatientTravelingOnDate(view domain.RuleView, patientID, date, excludeTripID string) TravelCheck {
	trips := lo.Filter(view.ListTrips(), func(t Trip, _ int) bool {
		return t.Date == date && t.Status != domain.TripCancelled && t.ID != excludeTripID
	})
	for _, trip := range trips {
		if lo.ContainsBy(trip.Passengers, func(p TripPassenger) bool {
			return !p.IsCompanion && p.PatientID == patientID
		}) {
			found := trip
			return TravelCheck{IsTraveling: true, Trip: &found}
		}
	}
	return TravelCheck{}
}
