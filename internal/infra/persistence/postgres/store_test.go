package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"tfdcore/pkg/domain"
)

func TestOpenRejectsUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := Open(ctx, "postgres://tfd@127.0.0.1:1/tfd?sslmode=disable&connect_timeout=1"); err == nil {
		t.Fatalf("expected connection failure")
	}
	if _, err := Open(ctx, "://bad"); err == nil {
		t.Fatalf("expected dsn parse failure")
	}
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("TFD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TFD_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	p, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	if err := Migrate(ctx, p.DB()); err != nil {
		t.Fatalf("migrations must be idempotent: %v", err)
	}
	tripID := "test-trip-" + time.Now().Format("150405.000000")
	trip := domain.Trip{Base: domain.Base{ID: tripID}, Date: "2025-01-12", Status: domain.TripScheduled}
	if err := p.Upsert(ctx, domain.EntityTrip, tripID, trip); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rows := []domain.TripPassenger{{ID: tripID + "-r1", PatientID: "p1"}, {ID: tripID + "-r2", PatientID: "p2"}}
	if err := p.ReplaceTripPassengers(ctx, tripID, rows); err != nil {
		t.Fatalf("replace: %v", err)
	}
	stored, err := p.FetchAll(ctx, domain.EntityTripPassenger)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	var mine []domain.TripPassenger
	for _, raw := range stored {
		var row domain.TripPassenger
		if err := json.Unmarshal(raw, &row); err == nil && row.TripID == tripID {
			mine = append(mine, row)
		}
	}
	if len(mine) != 2 || mine[0].Seq != 0 || mine[1].PatientID != "p2" {
		t.Fatalf("unexpected rows %+v", mine)
	}
	if err := p.DeleteTrip(ctx, tripID); err != nil {
		t.Fatalf("delete trip: %v", err)
	}
}
