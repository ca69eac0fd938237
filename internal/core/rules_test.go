package core

import (
	"errors"
	"testing"

	"tfdcore/pkg/domain"
)

func TestLinkRuleRejectsDanglingTripReference(t *testing.T) {
	f := newFixture(t)
	ana := f.patient(t, "Ana")
	_, err := f.svc.Store().RunInTransaction(f.ctx, func(tx Transaction) error {
		_, err := tx.CreateAppointment(Appointment{PatientID: ana.ID, Date: tripDate, Status: domain.AppointmentScheduledTrip, TripID: "ghost"})
		return err
	})
	if !errors.Is(err, domain.ErrLinkage) {
		t.Fatalf("expected linkage violation, got %v", err)
	}
	var rv RuleViolationError
	if !errors.As(err, &rv) || rv.Result.Violations[0].Rule != "appointment_trip_link" {
		t.Fatalf("expected rule violation error, got %T", err)
	}

	a := f.appointment(t, ana.ID, tripDate)
	trip := f.tripWith(t, a)
	bia := f.patient(t, "Bia")
	pending := f.appointment(t, bia.ID, tripDate)
	_, err = f.svc.Store().RunInTransaction(f.ctx, func(tx Transaction) error {
		_, err := tx.UpdateTrip(trip.ID, func(tr *Trip) error {
			tr.Passengers = append(tr.Passengers, TripPassenger{PatientID: bia.ID, AppointmentID: pending.ID, Leg: domain.LegRoundTrip})
			return nil
		})
		return err
	})
	if !errors.Is(err, domain.ErrLinkage) {
		t.Fatalf("manifest row without scheduled appointment must be rejected, got %v", err)
	}
	_, err = f.svc.Store().RunInTransaction(f.ctx, func(tx Transaction) error {
		return tx.DeleteTrip(trip.ID)
	})
	if !errors.Is(err, domain.ErrLinkage) {
		t.Fatalf("deleting a referenced trip must be rejected, got %v", err)
	}
	f.assertInvariants(t)
}

func TestLifecycleRuleBlocksTerminalExit(t *testing.T) {
	f := newFixture(t)
	trip := f.tripWith(t, f.appointment(t, f.patient(t, "Ana").ID, tripDate))
	if _, _, err := f.svc.UpdateTripStatus(f.ctx, trip.ID, domain.TripCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err := f.svc.Store().RunInTransaction(f.ctx, func(tx Transaction) error {
		_, err := tx.UpdateTrip(trip.ID, func(tr *Trip) error {
			tr.Status = domain.TripScheduled
			return nil
		})
		return err
	})
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition, got %v", err)
	}
}

func TestTripCapacityRuleBlocksDirectOverflow(t *testing.T) {
	f := newFixture(t)
	trip := f.tripWith(t, f.appointment(t, f.patient(t, "Ana", withCompanion("Maria")).ID, tripDate))
	_, err := f.svc.Store().RunInTransaction(f.ctx, func(tx Transaction) error {
		_, err := tx.UpdateTrip(trip.ID, func(tr *Trip) error {
			tr.TotalSeats = 1
			return nil
		})
		return err
	})
	if !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("expected capacity violation, got %v", err)
	}
}

func TestManifestProblems(t *testing.T) {
	patient := TripPassenger{ID: "r1", PatientID: "p1", Leg: domain.LegRoundTrip, Status: domain.PassengerConfirmed, HasCompanion: true}
	companion := TripPassenger{ID: "r2", IsCompanion: true, RelatedPatientID: "p1", CompanionSlot: 1, Leg: domain.LegRoundTrip, Status: domain.PassengerConfirmed}

	if problems := manifestProblems([]TripPassenger{patient, companion}); len(problems) != 0 {
		t.Fatalf("expected consistent manifest, got %v", problems)
	}
	cases := map[string][]TripPassenger{
		"missing companion row": {patient},
		"orphan companion":      {func() TripPassenger { p := patient; p.HasCompanion = false; return p }(), companion},
		"duplicate patient":     {patient, companion, func() TripPassenger { p := patient; p.ID = "r3"; p.HasCompanion = false; return p }()},
		"bad slot":              {patient, func() TripPassenger { c := companion; c.CompanionSlot = 3; return c }()},
		"bad leg":               {func() TripPassenger { p := patient; p.Leg = "sideways"; return p }(), companion},
	}
	for name, rows := range cases {
		if problems := manifestProblems(rows); len(problems) == 0 {
			t.Fatalf("%s: expected a problem", name)
		}
	}
}

func TestDoubleBookingRuleWarnsOnSave(t *testing.T) {
	f := newFixture(t)
	walkIn := f.patient(t, "Bruno", nonTFD)

	first := f.manifest()
	if _, err := first.AddManual(f.ctx, ManualPassenger{PatientID: walkIn.ID, Leg: domain.LegOneWay}); err != nil {
		t.Fatalf("manual add: %v", err)
	}
	if _, receipt, err := f.svc.CreateTrip(f.ctx, f.details(), first.Rows()); err != nil || len(receipt.Result.Warnings()) != 0 {
		t.Fatalf("first trip: %v %+v", err, receipt.Result)
	}

	second := f.manifest()
	p, err := second.AddManual(f.ctx, ManualPassenger{PatientID: walkIn.ID, Leg: domain.LegReturn})
	if err != nil {
		t.Fatalf("manual add: %v", err)
	}
	if !p.NeedsConfirmation() || p.Warnings[0].Kind != domain.WarningConflict {
		t.Fatalf("expected conflict warning, got %+v", p.Warnings)
	}
	if err := p.ProceedAnyway(f.ctx); err != nil {
		t.Fatalf("proceed: %v", err)
	}
	_, receipt, err := f.svc.CreateTrip(f.ctx, f.details(), second.Rows())
	if err != nil {
		t.Fatalf("second trip: %v", err)
	}
	warnings := receipt.Result.Warnings()
	if len(warnings) != 1 || warnings[0].Rule != "patient_double_booking" {
		t.Fatalf("expected double booking warning, got %+v", warnings)
	}
}
