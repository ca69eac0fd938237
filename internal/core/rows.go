package core

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"tfdcore/pkg/domain"
)

// SuggestionOptions chooses the leg and companions when seating an appointment.
type SuggestionOptions struct {
	Leg                 domain.LegMode `json:"leg"`
	WithCompanion       bool           `json:"with_companion"`
	WithSecondCompanion bool           `json:"with_second_companion"`
}

// Seats returns the seats the options will occupy.
func (o SuggestionOptions) Seats() int {
	return 1 + lo.Ternary(o.WithCompanion, 1, 0) + lo.Ternary(o.WithSecondCompanion, 1, 0)
}

// defaultOptions derives options from the appointment direction and the
// patient's companion entitlements.
func defaultOptions(appt Appointment, patient Patient) SuggestionOptions {
	return SuggestionOptions{
		Leg:                 lo.Ternary(appt.IsReturn, domain.LegReturn, domain.LegRoundTrip),
		WithCompanion:       patient.AllowsCompanion,
		WithSecondCompanion: patient.AllowsSecondCompanion,
	}
}

func checkEntitlements(patient Patient, opts SuggestionOptions) error {
	if !opts.Leg.Valid() {
		return domain.Errorf(domain.ErrValidation, domain.EntityTripPassenger, patient.ID, "invalid leg %q", opts.Leg)
	}
	if opts.WithCompanion && !patient.AllowsCompanion {
		return domain.Errorf(domain.ErrValidation, domain.EntityPatient, patient.ID, "patient %s is not entitled to a companion", patient.Name)
	}
	if opts.WithSecondCompanion && (!patient.AllowsSecondCompanion || !opts.WithCompanion) {
		return domain.Errorf(domain.ErrValidation, domain.EntityPatient, patient.ID, "patient %s is not entitled to a second companion", patient.Name)
	}
	return nil
}

// seating describes one patient row and its companions before ids are assigned.
type seating struct {
	patient         Patient
	appointmentID   string
	leg             domain.LegMode
	origin          string
	destination     string
	appointmentTime string
	companion       string
	secondCompanion string
	withCompanion   bool
	withSecond      bool
}

// rows expands a seating into its patient row followed by companion rows.
func (s seating) rows() []TripPassenger {
	patientRow := TripPassenger{
		ID:                 uuid.NewString(),
		PatientID:          s.patient.ID,
		PatientName:        s.patient.Name,
		HasCompanion:       s.withCompanion,
		HasSecondCompanion: s.withSecond,
		Status:             domain.PassengerConfirmed,
		Origin:             s.origin,
		Destination:        s.destination,
		AppointmentTime:    s.appointmentTime,
		AppointmentID:      s.appointmentID,
		Leg:                s.leg,
	}
	if s.withCompanion {
		patientRow.CompanionName = s.companion
	}
	if s.withSecond {
		patientRow.SecondCompanionName = s.secondCompanion
	}
	out := []TripPassenger{patientRow}
	companion := func(slot int, name string) TripPassenger {
		return TripPassenger{
			ID:                 uuid.NewString(),
			PatientName:        name,
			IsCompanion:        true,
			RelatedPatientID:   s.patient.ID,
			RelatedPatientName: s.patient.Name,
			CompanionSlot:      slot,
			Status:             domain.PassengerConfirmed,
			Origin:             s.origin,
			Destination:        s.destination,
			AppointmentTime:    s.appointmentTime,
			Leg:                s.leg,
		}
	}
	if s.withCompanion {
		out = append(out, companion(1, s.companion))
	}
	if s.withSecond {
		out = append(out, companion(2, s.secondCompanion))
	}
	return out
}

// seatingFor builds the seating of an appointment on a trip.
func seatingFor(appt Appointment, patient Patient, tripOrigin, tripDestination string, opts SuggestionOptions) seating {
	return seating{
		patient:         patient,
		appointmentID:   appt.ID,
		leg:             opts.Leg,
		origin:          lo.CoalesceOrEmpty(patient.Address, tripOrigin),
		destination:     lo.CoalesceOrEmpty(appt.DestinationName, appt.TreatmentName, tripDestination),
		appointmentTime: appt.Time,
		companion:       companionName(patient.CompanionName, patient.Name),
		secondCompanion: companionName(patient.SecondCompanionName, patient.Name),
		withCompanion:   opts.WithCompanion,
		withSecond:      opts.WithSecondCompanion,
	}
}

func companionName(name, patientName string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("Companion of %s", patientName)
}

// withoutPatient drops the patient row of patientID and its companion rows.
func withoutPatient(rows []TripPassenger, patientID string) []TripPassenger {
	return lo.Filter(rows, func(p TripPassenger, _ int) bool {
		if p.IsCompanion {
			return p.RelatedPatientID != patientID
		}
		return p.PatientID != patientID
	})
}
