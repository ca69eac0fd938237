package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"tfdcore/pkg/domain"
)

func TestSQLitePersistsRecordsAndManifests(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tfd.db")
	p, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if p.Driver() != "sqlite" {
		t.Fatalf("unexpected driver %s", p.Driver())
	}

	patient := domain.Patient{Base: domain.Base{ID: "p1", Version: 1}, Name: "Ana"}
	if err := p.Upsert(ctx, domain.EntityPatient, "p1", patient); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	patient.Name = "Ana Maria"
	if err := p.Upsert(ctx, domain.EntityPatient, "p1", patient); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	trip := domain.Trip{Base: domain.Base{ID: "t1"}, Date: "2025-01-12", Status: domain.TripScheduled}
	if err := p.Upsert(ctx, domain.EntityTrip, "t1", trip); err != nil {
		t.Fatalf("upsert trip: %v", err)
	}
	rows := []domain.TripPassenger{
		{ID: "r-z", PatientID: "p1", HasCompanion: true},
		{ID: "r-a", IsCompanion: true, RelatedPatientID: "p1", CompanionSlot: 1},
	}
	if err := p.ReplaceTripPassengers(ctx, "t1", rows); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	patients, err := reopened.FetchAll(ctx, domain.EntityPatient)
	if err != nil || len(patients) != 1 {
		t.Fatalf("expected one patient, got %d (%v)", len(patients), err)
	}
	var got domain.Patient
	if err := json.Unmarshal(patients[0], &got); err != nil || got.Name != "Ana Maria" {
		t.Fatalf("expected latest patient payload, got %s", patients[0])
	}
	stored, err := reopened.FetchAll(ctx, domain.EntityTripPassenger)
	if err != nil || len(stored) != 2 {
		t.Fatalf("expected two rows, got %d (%v)", len(stored), err)
	}
	var first domain.TripPassenger
	_ = json.Unmarshal(stored[0], &first)
	if first.ID != "r-z" || first.TripID != "t1" || first.Seq != 0 {
		t.Fatalf("rows must come back in manifest order, got %+v", first)
	}

	if err := reopened.ReplaceTripPassengers(ctx, "t1", rows[:1]); err != nil {
		t.Fatalf("shrink manifest: %v", err)
	}
	if stored, _ := reopened.FetchAll(ctx, domain.EntityTripPassenger); len(stored) != 1 {
		t.Fatalf("replace must drop rows no longer on the manifest")
	}
	if err := reopened.DeleteTrip(ctx, "t1"); err != nil {
		t.Fatalf("delete trip: %v", err)
	}
	if trips, _ := reopened.FetchAll(ctx, domain.EntityTrip); len(trips) != 0 {
		t.Fatalf("trip header left behind")
	}
	if stored, _ := reopened.FetchAll(ctx, domain.EntityTripPassenger); len(stored) != 0 {
		t.Fatalf("passenger rows left behind")
	}
	if err := reopened.Delete(ctx, domain.EntityPatient, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := reopened.Delete(ctx, domain.EntityPatient, "p1"); err != nil {
		t.Fatalf("deleting a missing record is not an error: %v", err)
	}
}
