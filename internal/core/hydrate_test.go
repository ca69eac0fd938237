package core

import (
	"context"
	"errors"
	"testing"

	"tfdcore/internal/infra/persistence/memory"
	"tfdcore/pkg/domain"
)

func TestPushAndLoadSnapshotRoundTrip(t *testing.T) {
	f := newFixture(t)
	ana := f.patient(t, "Ana", withCompanion("Maria"), func(p *Patient) {
		p.AllowsSecondCompanion = true
		p.SecondCompanionName = "Jose"
	})
	bia := f.patient(t, "Bia")
	trip := f.tripWith(t, f.appointment(t, ana.ID, tripDate), f.appointment(t, bia.ID, tripDate))
	house, _, _ := f.svc.SaveSupportHouse(f.ctx, SupportHouse{Name: "Casa", Capacity: 4})
	if _, _, err := f.svc.CheckInStay(f.ctx, StayInput{PatientID: bia.ID, SupportHouseID: house.ID, EntryDate: tripDate}); err != nil {
		t.Fatalf("stay: %v", err)
	}

	source := f.svc.Store().(*memory.Store)
	snap := source.ExportState()
	persister := memory.NewPersister()
	if err := PushSnapshot(f.ctx, persister, snap); err != nil {
		t.Fatalf("push: %v", err)
	}
	loaded, err := LoadSnapshot(f.ctx, persister)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for name, n := range snap.Counts() {
		if loaded.Counts()[name] != n {
			t.Fatalf("%s: expected %d, got %d", name, n, loaded.Counts()[name])
		}
	}
	want := snap.Trips[trip.ID].Passengers
	got := loaded.Trips[trip.ID].Passengers
	if len(got) != len(want) || len(got) != 4 {
		t.Fatalf("expected 4 manifest rows, got %d", len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Seq != i {
			t.Fatalf("row %d out of order: %s (seq %d), want %s", i, got[i].ID, got[i].Seq, want[i].ID)
		}
	}

	target := memory.NewStore(NewDefaultRulesEngine())
	if _, err := Hydrate(f.ctx, persister, target); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	restored, ok := target.GetTrip(trip.ID)
	if !ok || restored.OccupiedSeats != 4 || restored.DriverName != "Joao" {
		t.Fatalf("unexpected restored trip %+v", restored)
	}
	if appt, ok := target.GetAppointment(got[0].AppointmentID); !ok || appt.TripID != trip.ID {
		t.Fatalf("expected appointment link to survive the round trip")
	}
}

func TestLoadSnapshotReportsBackendFailure(t *testing.T) {
	persister := memory.NewPersister()
	persister.FailNext(errors.New("timeout"))
	if _, err := LoadSnapshot(context.Background(), persister); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}
