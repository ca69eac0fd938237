package core

import (
	"context"
	"fmt"

	"tfdcore/pkg/domain"
)

// NewAppointmentTripLinkRule keeps appointment trip references and trip
// manifest back-references consistent.
func NewAppointmentTripLinkRule() domain.Rule {
	return appointmentTripLinkRule{}
}

type appointmentTripLinkRule struct{}

func (appointmentTripLinkRule) Name() string { return "appointment_trip_link" }

func (r appointmentTripLinkRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(entity EntityType, id, format string, args ...any) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf(format, args...),
			Entity:   entity,
			EntityID: id,
		})
	}

	for _, id := range changedIDs(changes, domain.EntityAppointment, appointmentID) {
		appt, ok := view.FindAppointment(id)
		if !ok {
			continue
		}
		if appt.Status != domain.AppointmentScheduledTrip {
			if appt.TripID != "" {
				block(domain.EntityAppointment, appt.ID, "appointment %s is %s but still references trip %s", appt.ID, appt.Status, appt.TripID)
			}
			continue
		}
		if appt.TripID == "" {
			block(domain.EntityAppointment, appt.ID, "appointment %s is scheduled without a trip", appt.ID)
			continue
		}
		trip, ok := view.FindTrip(appt.TripID)
		switch {
		case !ok:
			block(domain.EntityAppointment, appt.ID, "appointment %s references missing trip %s", appt.ID, appt.TripID)
		case trip.Status == domain.TripCancelled:
			block(domain.EntityAppointment, appt.ID, "appointment %s references cancelled trip %s", appt.ID, trip.ID)
		case trip.Date != appt.Date:
			block(domain.EntityAppointment, appt.ID, "appointment %s on %s cannot ride trip %s on %s", appt.ID, appt.Date, trip.ID, trip.Date)
		case !manifestHasAppointment(trip, appt):
			block(domain.EntityAppointment, appt.ID, "trip %s has no manifest row for appointment %s", trip.ID, appt.ID)
		}
	}

	for _, id := range changedIDs(changes, domain.EntityTrip, tripID) {
		trip, ok := view.FindTrip(id)
		if !ok || trip.Status.Terminal() {
			continue
		}
		for _, row := range trip.Passengers {
			if row.IsCompanion || row.AppointmentID == "" {
				continue
			}
			appt, ok := view.FindAppointment(row.AppointmentID)
			switch {
			case !ok:
				block(domain.EntityTrip, trip.ID, "trip %s lists missing appointment %s", trip.ID, row.AppointmentID)
			case appt.PatientID != row.PatientID:
				block(domain.EntityTrip, trip.ID, "trip %s lists appointment %s under another patient", trip.ID, appt.ID)
			case appt.Status != domain.AppointmentScheduledTrip || appt.TripID != trip.ID:
				block(domain.EntityTrip, trip.ID, "trip %s lists appointment %s which is %s on trip %q", trip.ID, appt.ID, appt.Status, appt.TripID)
			}
		}
	}

	for _, c := range changes {
		if c.Entity != domain.EntityTrip || c.Action != domain.ActionDelete {
			continue
		}
		deleted := tripID(c.Before)
		for _, appt := range view.ListAppointments() {
			if appt.TripID == deleted {
				block(domain.EntityAppointment, appt.ID, "appointment %s still references deleted trip %s", appt.ID, deleted)
			}
		}
	}
	return res, nil
}

func manifestHasAppointment(trip Trip, appt Appointment) bool {
	for _, row := range trip.Passengers {
		if !row.IsCompanion && row.AppointmentID == appt.ID && row.PatientID == appt.PatientID {
			return true
		}
	}
	return false
}
