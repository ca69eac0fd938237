package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"tfdcore/internal/infra/persistence/memory"
	"tfdcore/pkg/domain"
)

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

func newPersistedFixture(t *testing.T, persister domain.Persister, opts ...ServiceOption) *fixture {
	t.Helper()
	clock := ClockFunc(func() time.Time { return testNow })
	store := memory.NewStore(NewDefaultRulesEngine(), memory.WithNowFunc(clock.Now))
	opts = append([]ServiceOption{WithClock(clock), WithPersistRetry(2, time.Millisecond)}, opts...)
	svc := NewService(store, persister, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})
	return &fixture{ctx: context.Background(), svc: svc}
}

func waitPersisted(t *testing.T, receipt Receipt) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return receipt.Persistence.Wait(ctx)
}

func TestPersistenceMirrorsTripsAsHeaderAndRows(t *testing.T) {
	persister := memory.NewPersister()
	f := newPersistedFixture(t, persister)
	f.seedRegistry(t)
	a := f.appointment(t, f.patient(t, "Ana", withCompanion("Maria")).ID, tripDate)
	b := f.manifest()
	if _, err := b.AddSuggestion(f.ctx, a.ID, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	trip, receipt, err := f.svc.CreateTrip(f.ctx, f.details(), b.Rows())
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if err := waitPersisted(t, receipt); err != nil {
		t.Fatalf("persist: %v", err)
	}

	headers, _ := persister.FetchAll(f.ctx, domain.EntityTrip)
	if len(headers) != 1 {
		t.Fatalf("expected one trip header, got %d", len(headers))
	}
	var header Trip
	if err := json.Unmarshal(headers[0], &header); err != nil || header.ID != trip.ID || len(header.Passengers) != 0 {
		t.Fatalf("unexpected header %s (%v)", headers[0], err)
	}
	rows, _ := persister.FetchAll(f.ctx, domain.EntityTripPassenger)
	if len(rows) != 2 {
		t.Fatalf("expected patient and companion rows, got %d", len(rows))
	}
	appts, _ := persister.FetchAll(f.ctx, domain.EntityAppointment)
	var stored Appointment
	if err := json.Unmarshal(appts[0], &stored); err != nil || stored.TripID != trip.ID {
		t.Fatalf("expected scheduled appointment to be mirrored, got %s", appts[0])
	}

	receipt, err = f.svc.DeleteTrip(f.ctx, trip.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := waitPersisted(t, receipt); err != nil {
		t.Fatalf("persist delete: %v", err)
	}
	if headers, _ := persister.FetchAll(f.ctx, domain.EntityTrip); len(headers) != 0 {
		t.Fatalf("trip header left behind")
	}
	if rows, _ := persister.FetchAll(f.ctx, domain.EntityTripPassenger); len(rows) != 0 {
		t.Fatalf("passenger rows left behind")
	}
}

func TestPersistenceRetriesTransientFailures(t *testing.T) {
	persister := memory.NewPersister()
	f := newPersistedFixture(t, persister)
	persister.FailNext(errors.New("connection reset"), errors.New("connection reset"))

	p, receipt, err := f.svc.SavePatient(f.ctx, Patient{Name: "Ana", IsTFD: true})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := waitPersisted(t, receipt); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if persister.Calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", persister.Calls())
	}
	records, _ := persister.FetchAll(f.ctx, domain.EntityPatient)
	if len(records) != 1 {
		t.Fatalf("expected patient %s persisted", p.ID)
	}
}

func TestPersistenceFailureIsReportedNotRolledBack(t *testing.T) {
	persister := memory.NewPersister()
	logger := &recordingLogger{}
	outcomes := make(chan PersistOutcome, 1)
	f := newPersistedFixture(t, persister, WithLogger(logger), WithPersistenceListener(func(o PersistOutcome) { outcomes <- o }))
	boom := errors.New("disk full")
	persister.FailNext(boom, boom, boom)

	p, receipt, err := f.svc.SavePatient(f.ctx, Patient{Name: "Ana"})
	if err != nil {
		t.Fatalf("commit must succeed regardless of backend: %v", err)
	}
	err = waitPersisted(t, receipt)
	if !errors.Is(err, domain.ErrPersistence) || !errors.Is(err, boom) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	select {
	case o := <-outcomes:
		if o.Operation != "patient.save" || o.Jobs != 1 || o.Err == nil {
			t.Fatalf("unexpected outcome %+v", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("listener not called")
	}
	if logger.count() != 1 {
		t.Fatalf("expected failure to be logged once, got %d", logger.count())
	}
	patients, _ := f.svc.ListPatients(f.ctx)
	if len(patients) != 1 || patients[0].ID != p.ID {
		t.Fatalf("in-memory state must keep the committed patient")
	}
}

func TestPersistenceQueueCloseDrains(t *testing.T) {
	persister := memory.NewPersister()
	f := newPersistedFixture(t, persister)
	var receipts []Receipt
	for _, name := range []string{"Ana", "Bia", "Caio"} {
		_, receipt, err := f.svc.SavePatient(f.ctx, Patient{Name: name})
		if err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		receipts = append(receipts, receipt)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.svc.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, r := range receipts {
		select {
		case <-r.Persistence.Done():
		default:
			t.Fatalf("close returned before draining")
		}
	}
	if records, _ := persister.FetchAll(f.ctx, domain.EntityPatient); len(records) != 3 {
		t.Fatalf("expected 3 patients persisted, got %d", len(records))
	}
	_, receipt, err := f.svc.SavePatient(f.ctx, Patient{Name: "Late"})
	if err != nil {
		t.Fatalf("save after close: %v", err)
	}
	if err := receipt.Persistence.Err(); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected closed queue error, got %v", err)
	}
}

func TestJobsFromChangesCollapsesRepeatedWrites(t *testing.T) {
	p1 := Patient{Base: Base{ID: "p1", Version: 1}, Name: "Ana"}
	p2 := p1
	p2.Version = 2
	trip := Trip{Base: Base{ID: "t1"}, Passengers: []TripPassenger{{ID: "r1", PatientID: "p1"}}}
	jobs := jobsFromChanges([]Change{
		{Entity: domain.EntityPatient, Action: domain.ActionCreate, After: p1},
		{Entity: domain.EntityPatient, Action: domain.ActionUpdate, Before: p1, After: p2},
		{Entity: domain.EntityTrip, Action: domain.ActionCreate, After: trip},
	})
	if len(jobs) != 3 {
		t.Fatalf("expected patient, trip header and passenger jobs, got %d", len(jobs))
	}
	if got := jobs[0].record.(Patient); got.Version != 2 {
		t.Fatalf("expected latest patient version, got %d", got.Version)
	}
	if header := jobs[1].record.(Trip); len(header.Passengers) != 0 {
		t.Fatalf("trip upsert must carry the header only")
	}
	if jobs[2].action != jobReplacePassengers || len(jobs[2].rows) != 1 {
		t.Fatalf("unexpected passenger job %+v", jobs[2])
	}
}
