package core

import (
	"errors"
	"testing"

	"tfdcore/pkg/domain"
)

func TestManifestFillsToCapacityThenWarns(t *testing.T) {
	f := newFixture(t)
	b := f.manifest()
	var appts []Appointment
	for _, name := range []string{"Ana", "Bia", "Caio", "Duda", "Edu"} {
		appts = append(appts, f.appointment(t, f.patient(t, name).ID, tripDate))
	}
	for _, a := range appts[:4] {
		p, err := b.AddSuggestion(f.ctx, a.ID, nil)
		if err != nil {
			t.Fatalf("add %s: %v", a.PatientName, err)
		}
		if p.NeedsConfirmation() || !p.Applied() {
			t.Fatalf("expected %s to be seated without confirmation, warnings %+v", a.PatientName, p.Warnings)
		}
	}
	if b.Occupancy() != 4 {
		t.Fatalf("expected 4 seats taken, got %d", b.Occupancy())
	}

	p, err := b.AddSuggestion(f.ctx, appts[4].ID, nil)
	if err != nil {
		t.Fatalf("add fifth: %v", err)
	}
	if !p.NeedsConfirmation() || p.Applied() {
		t.Fatalf("expected capacity confirmation")
	}
	if len(p.Warnings) != 1 || p.Warnings[0].Kind != domain.WarningCapacity || p.Warnings[0].Projected != 5 || p.Warnings[0].Capacity != 4 {
		t.Fatalf("unexpected warnings %+v", p.Warnings)
	}
	if len(b.Rows()) != 4 {
		t.Fatalf("warning must not apply the mutation")
	}
	if err := p.ProceedAnyway(f.ctx); err != nil {
		t.Fatalf("proceed: %v", err)
	}
	if err := p.ProceedAnyway(f.ctx); !errors.Is(err, ErrProposalApplied) {
		t.Fatalf("expected second proceed to fail, got %v", err)
	}
	if b.Occupancy() != 5 {
		t.Fatalf("expected override to seat fifth patient")
	}

	if _, _, err := f.svc.CreateTrip(f.ctx, f.details(), b.Rows()); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("expected hard capacity failure on save, got %v", err)
	}
	if trips, _ := f.svc.ListTrips(f.ctx); len(trips) != 0 {
		t.Fatalf("failed save must leave store unchanged")
	}
	for _, a := range appts {
		if got := f.mustAppointment(t, a.ID); got.Status != domain.AppointmentPending {
			t.Fatalf("appointment %s changed on failed save: %s", a.ID, got.Status)
		}
	}
	f.assertInvariants(t)
}

func TestSuggestionsAndManualAdds(t *testing.T) {
	f := newFixture(t)
	tfd := f.patient(t, "Ana", withCompanion("Maria"))
	walkIn := f.patient(t, "Bruno", nonTFD)
	appt := f.appointment(t, tfd.ID, tripDate)
	f.appointment(t, tfd.ID, "2025-01-13")

	b := f.manifest()
	suggestions, err := b.Suggestions(f.ctx)
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].Appointment.ID != appt.ID {
		t.Fatalf("expected only the same-day appointment, got %+v", suggestions)
	}
	opts := suggestions[0].Options
	if opts.Leg != domain.LegRoundTrip || !opts.WithCompanion || opts.WithSecondCompanion {
		t.Fatalf("unexpected default options %+v", opts)
	}
	for _, s := range suggestions {
		if s.Patient.ID == walkIn.ID {
			t.Fatalf("patient without appointment must not be suggested")
		}
	}

	if _, err := b.AddManual(f.ctx, ManualPassenger{PatientID: tfd.ID, Leg: domain.LegOneWay}); !errors.Is(err, domain.ErrManualAddNotAllowed) {
		t.Fatalf("expected manual add of TFD patient to be rejected, got %v", err)
	}
	p, err := b.AddManual(f.ctx, ManualPassenger{PatientID: walkIn.ID, Leg: domain.LegOneWay, AppointmentTime: "after lunch", CompanionName: "Irma"})
	if err != nil || !p.Applied() {
		t.Fatalf("manual add: %v", err)
	}
	if _, err := b.AddManual(f.ctx, ManualPassenger{PatientID: walkIn.ID, Leg: domain.LegOneWay}); !errors.Is(err, domain.ErrDuplicateInManifest) {
		t.Fatalf("expected duplicate manual add to fail, got %v", err)
	}
	rows := b.Rows()
	if len(rows) != 2 || rows[0].Origin != walkIn.Address || rows[0].Destination != "Capital" || !rows[1].IsCompanion || rows[1].PatientName != "Irma" {
		t.Fatalf("unexpected manual rows %+v", rows)
	}

	if _, err := b.AddSuggestion(f.ctx, appt.ID, &SuggestionOptions{Leg: domain.LegReturn, WithSecondCompanion: true, WithCompanion: true}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected entitlement failure, got %v", err)
	}
	if _, err := b.AddSuggestion(f.ctx, appt.ID, nil); err != nil {
		t.Fatalf("add suggestion: %v", err)
	}
	if _, err := b.AddSuggestion(f.ctx, appt.ID, nil); !errors.Is(err, domain.ErrDuplicateInManifest) {
		t.Fatalf("expected duplicate suggestion to fail, got %v", err)
	}
	if b.Occupancy() != 4 {
		t.Fatalf("expected 4 seats, got %d", b.Occupancy())
	}
	patientRow := b.Rows()[2]
	if patientRow.AppointmentID != appt.ID || patientRow.Origin != tfd.Address || patientRow.Destination != "Oncology" || patientRow.AppointmentTime != "08:00" {
		t.Fatalf("unexpected suggestion row %+v", patientRow)
	}
	if after, _ := b.Suggestions(f.ctx); len(after) != 0 {
		t.Fatalf("seated appointment must leave the suggestions")
	}
}

func TestSuggestionConflictWarning(t *testing.T) {
	f := newFixture(t)
	ana := f.patient(t, "Ana")
	first := f.appointment(t, ana.ID, tripDate)
	f.tripWith(t, first)

	dest, _, err := f.svc.SaveDestination(f.ctx, Destination{Name: "Clinic"})
	if err != nil {
		t.Fatalf("destination: %v", err)
	}
	second, _, err := f.svc.CreateAppointment(f.ctx, AppointmentInput{PatientID: ana.ID, DestinationID: dest.ID, Date: tripDate})
	if err != nil {
		t.Fatalf("second appointment: %v", err)
	}
	b := f.manifest()
	p, err := b.AddSuggestion(f.ctx, second.ID, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !p.NeedsConfirmation() || p.Warnings[0].Kind != domain.WarningConflict {
		t.Fatalf("expected conflict warning, got %+v", p.Warnings)
	}
	if check, _ := f.svc.CheckPatientTravel(f.ctx, ana.ID, tripDate, ""); !check.IsTraveling {
		t.Fatalf("expected patient to be traveling")
	}
}

func TestManifestEditAndRemove(t *testing.T) {
	f := newFixture(t)
	ana := f.patient(t, "Ana", withCompanion("Maria"), func(p *Patient) {
		p.AllowsSecondCompanion = true
		p.SecondCompanionName = "Jose"
	})
	appt := f.appointment(t, ana.ID, tripDate)
	b := f.manifest()
	if _, err := b.AddSuggestion(f.ctx, appt.ID, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(b.Rows()) != 3 || b.Occupancy() != 3 {
		t.Fatalf("expected patient and two companions, got %+v", b.Rows())
	}
	origin := "Praca"
	patientRow := b.Rows()[0]
	if err := b.EditPassenger(patientRow.ID, PassengerEdit{Origin: &origin}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if b.Rows()[0].Origin != "Praca" || b.Rows()[0].AppointmentTime != "08:00" {
		t.Fatalf("edit must only touch origin")
	}
	if err := b.EditPassenger("missing", PassengerEdit{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	second := b.Rows()[2]
	if err := b.RemovePassenger(second.ID); err != nil {
		t.Fatalf("remove companion: %v", err)
	}
	rows := b.Rows()
	if len(rows) != 2 || rows[0].HasSecondCompanion || rows[0].SecondCompanionName != "" || b.Occupancy() != 2 {
		t.Fatalf("expected second companion cleared, got %+v", rows)
	}
	if err := b.RemovePassenger(rows[0].ID); err != nil {
		t.Fatalf("remove patient: %v", err)
	}
	if len(b.Rows()) != 0 {
		t.Fatalf("removing the patient must remove companions")
	}
}

func TestEditManifestLoadsStoredTrip(t *testing.T) {
	f := newFixture(t)
	a := f.appointment(t, f.patient(t, "Ana").ID, tripDate)
	b := f.appointment(t, f.patient(t, "Bia").ID, tripDate)
	trip := f.tripWith(t, a)

	builder, err := f.svc.EditManifest(f.ctx, trip.ID)
	if err != nil {
		t.Fatalf("edit manifest: %v", err)
	}
	if builder.Trip().Capacity != 4 || len(builder.Rows()) != 1 {
		t.Fatalf("unexpected builder state %+v", builder.Trip())
	}
	suggestions, _ := builder.Suggestions(f.ctx)
	if len(suggestions) != 1 || suggestions[0].Appointment.ID != b.ID {
		t.Fatalf("expected only the unattached appointment, got %+v", suggestions)
	}
	if _, err := builder.AddSuggestion(f.ctx, b.ID, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := builder.RemovePassenger(builder.Rows()[0].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	updated, _, err := f.svc.UpdateTrip(f.ctx, trip.ID, f.details(), builder.Rows())
	if err != nil {
		t.Fatalf("update trip: %v", err)
	}
	if updated.OccupiedSeats != 1 || updated.Version != trip.Version+1 {
		t.Fatalf("unexpected trip after update %+v", updated)
	}
	if got := f.mustAppointment(t, a.ID); got.Status != domain.AppointmentPending || got.TripID != "" {
		t.Fatalf("removed appointment must revert to pending, got %+v", got)
	}
	if got := f.mustAppointment(t, b.ID); got.Status != domain.AppointmentScheduledTrip || got.TripID != trip.ID {
		t.Fatalf("added appointment must be scheduled, got %+v", got)
	}
	f.assertInvariants(t)
}

func TestCapacityValidatorSkipsWithoutVehicle(t *testing.T) {
	rows := []TripPassenger{{PatientID: "p1", HasCompanion: true}, {IsCompanion: true, RelatedPatientID: "p1", CompanionSlot: 1}}
	v := CapacityValidator{}
	if v.ComputeOccupancy(rows) != 2 {
		t.Fatalf("expected companion rows to be counted through the patient row")
	}
	if check := v.Validate(0, rows, 10); !check.OK {
		t.Fatalf("capacity zero must skip the check")
	}
	check := v.Validate(3, rows, 2)
	if check.OK || check.Overflow != 1 || check.Projected != 4 {
		t.Fatalf("unexpected check %+v", check)
	}
	if _, ok := check.Warning(); !ok {
		t.Fatalf("expected warning")
	}
}
