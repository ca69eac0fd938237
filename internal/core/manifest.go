package core

import (
	"context"

	"github.com/samber/lo"

	"tfdcore/pkg/domain"
)

// ManifestTrip is the trip context a manifest is composed against. Capacity
// zero means no vehicle is selected yet.
type ManifestTrip struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Capacity    int    `json:"capacity"`
}

// Suggestion is an appointment offered as a candidate passenger.
type Suggestion struct {
	Appointment Appointment       `json:"appointment"`
	Patient     Patient           `json:"patient"`
	Options     SuggestionOptions `json:"options"`
}

// ManualPassenger describes a non-TFD passenger added without an appointment.
type ManualPassenger struct {
	PatientID           string         `json:"patient_id"`
	Leg                 domain.LegMode `json:"leg"`
	Origin              string         `json:"origin"`
	AppointmentTime     string         `json:"appointment_time"`
	CompanionName       string         `json:"companion_name"`
	SecondCompanionName string         `json:"second_companion_name"`
}

// PassengerEdit changes the free-text fields of a row. Nil leaves a field as is.
type PassengerEdit struct {
	Origin          *string `json:"origin"`
	AppointmentTime *string `json:"appointment_time"`
}

// ManifestBuilder composes a trip's passenger list in memory. Nothing is
// written to the store; the rows feed CreateTrip or UpdateTrip.
type ManifestBuilder struct {
	store    domain.EntityStore
	trip     ManifestTrip
	rows     []TripPassenger
	capacity CapacityValidator
	conflict ConflictDetector
}

// NewManifestBuilder starts a builder from existing rows.
func NewManifestBuilder(store domain.EntityStore, trip ManifestTrip, rows []TripPassenger) *ManifestBuilder {
	return &ManifestBuilder{store: store, trip: trip, rows: append([]TripPassenger(nil), rows...)}
}

// NewManifest starts an empty builder for a trip that is being created.
func (s *Service) NewManifest(trip ManifestTrip) *ManifestBuilder {
	return NewManifestBuilder(s.store, trip, nil)
}

// EditManifest loads a stored trip into a builder.
func (s *Service) EditManifest(ctx context.Context, tripID string) (*ManifestBuilder, error) {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return NewManifestBuilder(s.store, ManifestTrip{
		ID:          trip.ID,
		Date:        trip.Date,
		Origin:      trip.Origin,
		Destination: trip.Destination,
		Capacity:    trip.TotalSeats,
	}, trip.Passengers), nil
}

// Trip returns the trip context.
func (b *ManifestBuilder) Trip() ManifestTrip { return b.trip }

// Rows returns a copy of the current manifest.
func (b *ManifestBuilder) Rows() []TripPassenger {
	return append([]TripPassenger(nil), b.rows...)
}

// Occupancy returns the seats currently taken.
func (b *ManifestBuilder) Occupancy() int { return b.capacity.ComputeOccupancy(b.rows) }

// SetCapacity updates the seat limit after a vehicle is chosen.
func (b *ManifestBuilder) SetCapacity(capacity int) { b.trip.Capacity = capacity }

func (b *ManifestBuilder) hasAppointment(id string) bool {
	return lo.ContainsBy(b.rows, func(p TripPassenger) bool { return !p.IsCompanion && p.AppointmentID == id })
}

func (b *ManifestBuilder) hasPatient(id string) bool {
	return lo.ContainsBy(b.rows, func(p TripPassenger) bool { return !p.IsCompanion && p.PatientID == id })
}

func (b *ManifestBuilder) suggestible(appt Appointment) bool {
	switch appt.Status {
	case domain.AppointmentCancelled, domain.AppointmentMissed, domain.AppointmentCompleted:
		return false
	}
	if appt.Date != b.trip.Date {
		return false
	}
	if appt.TripID != "" && appt.TripID != b.trip.ID {
		return false
	}
	return !b.hasAppointment(appt.ID)
}

// Suggestions lists same-day appointments not attached to another trip and
// not yet on this manifest.
func (b *ManifestBuilder) Suggestions(ctx context.Context) ([]Suggestion, error) {
	var out []Suggestion
	err := b.store.View(ctx, func(v TransactionView) error {
		for _, appt := range lo.Filter(v.ListAppointments(), func(a Appointment, _ int) bool { return b.suggestible(a) }) {
			patient, ok := v.FindPatient(appt.PatientID)
			if !ok {
				continue
			}
			out = append(out, Suggestion{Appointment: appt, Patient: patient, Options: defaultOptions(appt, patient)})
		}
		return nil
	})
	return out, err
}

// AddSuggestion seats an appointment's patient. opts defaults to the
// suggestion's options. Conflict and capacity findings come back as a
// proposal awaiting confirmation.
func (b *ManifestBuilder) AddSuggestion(ctx context.Context, appointmentID string, opts *SuggestionOptions) (*Proposal, error) {
	var (
		st       seating
		warnings []Warning
	)
	err := b.store.View(ctx, func(v TransactionView) error {
		appt, ok := v.FindAppointment(appointmentID)
		if !ok {
			return domain.NotFound(domain.EntityAppointment, appointmentID)
		}
		if b.hasAppointment(appt.ID) || b.hasPatient(appt.PatientID) {
			return domain.Errorf(domain.ErrDuplicateInManifest, domain.EntityAppointment, appt.ID, "patient %s is already on this manifest", appt.PatientName)
		}
		if !b.suggestible(appt) {
			return domain.Errorf(domain.ErrLinkage, domain.EntityAppointment, appt.ID, "appointment %s cannot ride this trip", appt.ID)
		}
		patient, ok := v.FindPatient(appt.PatientID)
		if !ok {
			return domain.NotFound(domain.EntityPatient, appt.PatientID)
		}
		options := defaultOptions(appt, patient)
		if opts != nil {
			options = *opts
		}
		if err := checkEntitlements(patient, options); err != nil {
			return err
		}
		st = seatingFor(appt, patient, b.trip.Origin, b.trip.Destination, options)
		warnings = b.softChecks(v, patient, options.Seats())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settle(ctx, warnings, func(context.Context) error {
		b.rows = append(b.rows, st.rows()...)
		return nil
	})
}

// AddManual seats a non-TFD patient without an appointment.
func (b *ManifestBuilder) AddManual(ctx context.Context, in ManualPassenger) (*Proposal, error) {
	var (
		st       seating
		warnings []Warning
	)
	err := b.store.View(ctx, func(v TransactionView) error {
		patient, ok := v.FindPatient(in.PatientID)
		if !ok {
			return domain.NotFound(domain.EntityPatient, in.PatientID)
		}
		if patient.IsTFD {
			return domain.Errorf(domain.ErrManualAddNotAllowed, domain.EntityPatient, patient.ID, "patient %s must be added through an appointment", patient.Name)
		}
		if b.hasPatient(patient.ID) {
			return domain.Errorf(domain.ErrDuplicateInManifest, domain.EntityPatient, patient.ID, "patient %s is already on this manifest", patient.Name)
		}
		if !in.Leg.Valid() {
			return domain.Errorf(domain.ErrValidation, domain.EntityTripPassenger, patient.ID, "invalid leg %q", in.Leg)
		}
		if in.SecondCompanionName != "" && in.CompanionName == "" {
			return domain.Errorf(domain.ErrValidation, domain.EntityTripPassenger, patient.ID, "second companion requires a first companion")
		}
		st = seating{
			patient:         patient,
			leg:             in.Leg,
			origin:          lo.CoalesceOrEmpty(in.Origin, patient.Address, b.trip.Origin),
			destination:     b.trip.Destination,
			appointmentTime: in.AppointmentTime,
			companion:       in.CompanionName,
			secondCompanion: in.SecondCompanionName,
			withCompanion:   in.CompanionName != "",
			withSecond:      in.SecondCompanionName != "",
		}
		seats := 1 + lo.Ternary(st.withCompanion, 1, 0) + lo.Ternary(st.withSecond, 1, 0)
		warnings = b.softChecks(v, patient, seats)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settle(ctx, warnings, func(context.Context) error {
		b.rows = append(b.rows, st.rows()...)
		return nil
	})
}

func (b *ManifestBuilder) softChecks(v domain.RuleView, patient Patient, seats int) []Warning {
	var warnings []Warning
	if w, ok := b.conflict.IsPatientTravelingOnDate(v, patient.ID, b.trip.Date, b.trip.ID).Warning(patient.Name); ok {
		warnings = append(warnings, w)
	}
	if w, ok := b.capacity.Validate(b.trip.Capacity, b.rows, seats).Warning(); ok {
		warnings = append(warnings, w)
	}
	return warnings
}

// EditPassenger changes a row's origin or appointment time.
func (b *ManifestBuilder) EditPassenger(rowID string, edit PassengerEdit) error {
	for i := range b.rows {
		if b.rows[i].ID != rowID {
			continue
		}
		if edit.Origin != nil {
			b.rows[i].Origin = *edit.Origin
		}
		if edit.AppointmentTime != nil {
			b.rows[i].AppointmentTime = *edit.AppointmentTime
		}
		return nil
	}
	return domain.NotFound(domain.EntityTripPassenger, rowID)
}

// RemovePassenger drops a row. A patient row takes its companions along; a
// companion row only clears its flag on the patient row.
func (b *ManifestBuilder) RemovePassenger(rowID string) error {
	row, ok := lo.Find(b.rows, func(p TripPassenger) bool { return p.ID == rowID })
	if !ok {
		return domain.NotFound(domain.EntityTripPassenger, rowID)
	}
	if !row.IsCompanion {
		b.rows = withoutPatient(b.rows, row.PatientID)
		return nil
	}
	b.rows = lo.Reject(b.rows, func(p TripPassenger, _ int) bool { return p.ID == rowID })
	for i := range b.rows {
		p := &b.rows[i]
		if p.IsCompanion || p.PatientID != row.RelatedPatientID {
			continue
		}
		switch row.CompanionSlot {
		case 1:
			p.HasCompanion, p.CompanionName = false, ""
		case 2:
			p.HasSecondCompanion, p.SecondCompanionName = false, ""
		}
	}
	return nil
}
