package core

import (
	"context"
	"testing"
	"time"

	"tfdcore/pkg/domain"
)

const tripDate = "2025-01-12"

var testNow = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx       context.Context
	svc       *Service
	dest      Destination
	treatment TreatmentType
	vehicle   Vehicle
	driver    Driver
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	opts = append([]ServiceOption{WithClock(ClockFunc(func() time.Time { return testNow }))}, opts...)
	f := &fixture{ctx: context.Background(), svc: NewInMemoryService(NewDefaultRulesEngine(), opts...)}
	f.seedRegistry(t)
	return f
}

func (f *fixture) seedRegistry(t *testing.T) {
	t.Helper()
	var err error
	if f.dest, _, err = f.svc.SaveDestination(f.ctx, Destination{Name: "Hospital Central"}); err != nil {
		t.Fatalf("seed destination: %v", err)
	}
	if f.treatment, _, err = f.svc.SaveTreatmentType(f.ctx, TreatmentType{Name: "Oncology"}); err != nil {
		t.Fatalf("seed treatment: %v", err)
	}
	if f.vehicle, _, err = f.svc.SaveVehicle(f.ctx, Vehicle{Model: "Van", Plate: "ABC1D23", Capacity: 4}); err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	if f.driver, _, err = f.svc.SaveDriver(f.ctx, Driver{Name: "Joao", Active: true}); err != nil {
		t.Fatalf("seed driver: %v", err)
	}
}

func (f *fixture) patient(t *testing.T, name string, mods ...func(*Patient)) Patient {
	t.Helper()
	p := Patient{Name: name, Address: "Rua " + name, IsTFD: true}
	for _, mod := range mods {
		mod(&p)
	}
	saved, _, err := f.svc.SavePatient(f.ctx, p)
	if err != nil {
		t.Fatalf("save patient %s: %v", name, err)
	}
	return saved
}

func withCompanion(name string) func(*Patient) {
	return func(p *Patient) {
		p.AllowsCompanion = true
		p.CompanionName = name
	}
}

func nonTFD(p *Patient) { p.IsTFD = false }

func (f *fixture) appointment(t *testing.T, patientID, date string) Appointment {
	t.Helper()
	appt, _, err := f.svc.CreateAppointment(f.ctx, AppointmentInput{PatientID: patientID, TreatmentID: f.treatment.ID, Date: date, Time: "08:00"})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return appt
}

func (f *fixture) details() TripDetails {
	return TripDetails{Date: tripDate, Time: "05:00", Origin: "Town", Destination: "Capital", VehicleID: f.vehicle.ID, DriverID: f.driver.ID}
}

func (f *fixture) manifest() *ManifestBuilder {
	return f.svc.NewManifest(ManifestTrip{Date: tripDate, Origin: "Town", Destination: "Capital", Capacity: f.vehicle.Capacity})
}

// tripWith builds and saves a trip carrying the given appointments.
func (f *fixture) tripWith(t *testing.T, appts ...Appointment) Trip {
	t.Helper()
	b := f.manifest()
	for _, a := range appts {
		p, err := b.AddSuggestion(f.ctx, a.ID, nil)
		if err != nil {
			t.Fatalf("add suggestion %s: %v", a.ID, err)
		}
		if !p.Applied() {
			t.Fatalf("unexpected warnings adding %s: %+v", a.ID, p.Warnings)
		}
	}
	trip, _, err := f.svc.CreateTrip(f.ctx, f.details(), b.Rows())
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return trip
}

func (f *fixture) mustAppointment(t *testing.T, id string) Appointment {
	t.Helper()
	a, err := f.svc.GetAppointment(f.ctx, id)
	if err != nil {
		t.Fatalf("get appointment %s: %v", id, err)
	}
	return a
}

func (f *fixture) mustTrip(t *testing.T, id string) Trip {
	t.Helper()
	trip, err := f.svc.GetTrip(f.ctx, id)
	if err != nil {
		t.Fatalf("get trip %s: %v", id, err)
	}
	return trip
}

// assertInvariants checks trip ids are set exactly on scheduled appointments
// and every trip's occupancy matches its manifest.
func (f *fixture) assertInvariants(t *testing.T) {
	t.Helper()
	appts, _ := f.svc.ListAppointments(f.ctx, "")
	for _, a := range appts {
		if (a.TripID != "") != (a.Status == domain.AppointmentScheduledTrip) {
			t.Fatalf("appointment %s has status %s with trip %q", a.ID, a.Status, a.TripID)
		}
	}
	trips, _ := f.svc.ListTrips(f.ctx)
	for _, trip := range trips {
		if got := (CapacityValidator{}).ComputeOccupancy(trip.Passengers); got != trip.OccupiedSeats {
			t.Fatalf("trip %s occupancy %d, manifest says %d", trip.ID, trip.OccupiedSeats, got)
		}
	}
}
