package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"tfdcore/pkg/domain"
)

func fixedStore(engine *domain.RulesEngine) *Store {
	seq := 0
	return NewStore(engine,
		WithNowFunc(func() time.Time { return time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("id-%03d", seq) }),
	)
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := fixedStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindPatient("missing"); ok {
			t.Fatalf("expected missing patient lookup")
		}
		created, err := tx.CreatePatient(domain.Patient{Name: "Ana", Address: "Rua 1"})
		if err != nil {
			return err
		}
		if created.ID == "" || created.Version != 1 || created.Status != domain.PatientStatusActive {
			t.Fatalf("expected generated id, version and default status: %+v", created)
		}
		if len(tx.Snapshot().ListPatients()) != 1 {
			t.Fatalf("snapshot must observe uncommitted writes")
		}
		if len(tx.Changes()) != 1 || tx.Changes()[0].Action != domain.ActionCreate {
			t.Fatalf("expected a recorded create change")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListPatients()) != 1 {
		t.Fatalf("expected committed patient")
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListPatients()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListPatients()) != 1 {
		t.Fatalf("expected restored state")
	}
	if snapshot.Counts()["patients"] != 1 {
		t.Fatalf("unexpected counts %+v", snapshot.Counts())
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected engine and clock")
	}
}

func TestStoreFailedTransactionLeavesStateUntouched(t *testing.T) {
	store := fixedStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreatePatient(domain.Patient{Name: "Ana"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatalf("expected abort error")
	}
	if len(store.ListPatients()) != 0 {
		t.Fatalf("aborted transaction must not commit")
	}
}

func TestStoreRuleViolation(t *testing.T) {
	store := fixedStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateDestination(domain.Destination{Name: "Hospital"})
		return e
	})
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) || !res.HasBlocking() {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(store.ListDestinations()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}}, nil
}

func TestStoreTripDerivesOccupancyAndRowIdentity(t *testing.T) {
	store := fixedStore(nil)
	ctx := context.Background()
	var tripID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		trip, err := tx.CreateTrip(domain.Trip{
			Date:          "2025-01-12",
			TotalSeats:    4,
			OccupiedSeats: 99,
			Passengers: []domain.TripPassenger{
				{PatientID: "p1", HasCompanion: true, Leg: domain.LegRoundTrip},
				{IsCompanion: true, RelatedPatientID: "p1", CompanionSlot: 1, Leg: domain.LegRoundTrip},
			},
		})
		if err != nil {
			return err
		}
		tripID = trip.ID
		if trip.OccupiedSeats != 2 || trip.Status != domain.TripScheduled {
			t.Fatalf("expected derived occupancy 2 and default status, got %+v", trip)
		}
		for _, row := range trip.Passengers {
			if row.ID == "" || row.TripID != trip.ID || row.Status != domain.PassengerConfirmed {
				t.Fatalf("expected normalized row, got %+v", row)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		updated, err := tx.UpdateTrip(tripID, func(trip *domain.Trip) error {
			trip.Passengers = trip.Passengers[:1]
			trip.Passengers[0].HasCompanion = false
			return nil
		})
		if err != nil {
			return err
		}
		if updated.OccupiedSeats != 1 || updated.Version != 2 {
			t.Fatalf("expected recomputed occupancy and bumped version, got %+v", updated)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update trip: %v", err)
	}
	trip, ok := store.GetTrip(tripID)
	if !ok || len(trip.Passengers) != 1 {
		t.Fatalf("expected committed manifest, got %+v", trip)
	}
}

func TestStoreReturnsClones(t *testing.T) {
	store := fixedStore(nil)
	ctx := context.Background()
	var id string
	_, _ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		trip, err := tx.CreateTrip(domain.Trip{Date: "2025-01-12", Passengers: []domain.TripPassenger{{PatientID: "p1", Leg: domain.LegOneWay}}})
		id = trip.ID
		return err
	})
	trip, _ := store.GetTrip(id)
	trip.Passengers[0].Origin = "mutated"
	again, _ := store.GetTrip(id)
	if again.Passengers[0].Origin == "mutated" {
		t.Fatalf("store leaked internal slice")
	}
}

func TestStoreUpdateAndDeleteErrors(t *testing.T) {
	store := fixedStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpdateVehicle("missing", func(*domain.Vehicle) error { return nil }); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if err := tx.DeleteTrip("missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found on delete, got %v", err)
		}
		if _, err := tx.CreateVehicle(domain.Vehicle{Model: "Van"}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected capacity validation, got %v", err)
		}
		v, err := tx.CreateVehicle(domain.Vehicle{Model: "Van", Capacity: 4})
		if err != nil {
			return err
		}
		if _, err := tx.CreateVehicle(domain.Vehicle{Base: domain.Base{ID: v.ID}, Model: "Dup", Capacity: 2}); err == nil {
			t.Fatalf("expected duplicate id error")
		}
		if _, err := tx.UpdateVehicle(v.ID, func(*domain.Vehicle) error { return fmt.Errorf("boom") }); err == nil {
			t.Fatalf("expected mutator error")
		}
		if _, err := tx.CreateAppointment(domain.Appointment{PatientID: "ghost", Date: "2025-01-12"}); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected missing patient, got %v", err)
		}
		if _, err := tx.CreatePatientStay(domain.PatientStay{PatientID: "ghost"}); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected missing stay patient, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestListingsAreOrdered(t *testing.T) {
	store := fixedStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		p, err := tx.CreatePatient(domain.Patient{Name: "Ana"})
		if err != nil {
			return err
		}
		for _, date := range []string{"2025-02-01", "2025-01-05", "2025-01-20"} {
			if _, err := tx.CreateAppointment(domain.Appointment{PatientID: p.ID, Date: date}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	appts := store.ListAppointments()
	if len(appts) != 3 || appts[0].Date != "2025-01-05" || appts[2].Date != "2025-02-01" {
		t.Fatalf("expected date ordering, got %+v", appts)
	}
	if appts[0].Status != domain.AppointmentPending {
		t.Fatalf("expected default pending status")
	}
}

func TestPersisterRoundTripAndFailures(t *testing.T) {
	p := NewPersister()
	ctx := context.Background()
	if err := p.Upsert(ctx, domain.EntityTrip, "t1", domain.Trip{Base: domain.Base{ID: "t1"}, Date: "2025-01-12"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rows := []domain.TripPassenger{{ID: "r1", TripID: "t1", Leg: domain.LegOneWay}, {ID: "r2", TripID: "t1", Leg: domain.LegReturn}}
	if err := p.ReplaceTripPassengers(ctx, "t1", rows); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := p.ReplaceTripPassengers(ctx, "t1", rows[:1]); err != nil {
		t.Fatalf("replace shrink: %v", err)
	}
	got, err := p.FetchAll(ctx, domain.EntityTripPassenger)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one passenger row, got %d (%v)", len(got), err)
	}
	var row domain.TripPassenger
	if err := json.Unmarshal(got[0], &row); err != nil || row.ID != "r1" {
		t.Fatalf("unexpected row %+v (%v)", row, err)
	}
	p.FailNext(errors.New("offline"))
	if err := p.Delete(ctx, domain.EntityTrip, "t1"); err == nil {
		t.Fatalf("expected injected failure")
	}
	if err := p.DeleteTrip(ctx, "t1"); err != nil {
		t.Fatalf("delete trip: %v", err)
	}
	trips, _ := p.FetchAll(ctx, domain.EntityTrip)
	passengers, _ := p.FetchAll(ctx, domain.EntityTripPassenger)
	if len(trips) != 0 || len(passengers) != 0 {
		t.Fatalf("expected trip and manifest removed")
	}
	if p.Calls() != 8 || p.Driver() != "memory" || p.Close() != nil {
		t.Fatalf("unexpected bookkeeping: calls=%d", p.Calls())
	}
}
