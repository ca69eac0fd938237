package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Transaction exposes the domain operations that the authoritative store
// supports within an atomic scope.
type Transaction interface {
	RuleView
	Snapshot() TransactionView
	Now() time.Time
	Changes() []Change
	CreatePatient(Patient) (Patient, error)
	UpdatePatient(id string, mutator func(*Patient) error) (Patient, error)
	DeletePatient(id string) error
	CreateTreatmentType(TreatmentType) (TreatmentType, error)
	UpdateTreatmentType(id string, mutator func(*TreatmentType) error) (TreatmentType, error)
	DeleteTreatmentType(id string) error
	CreateDestination(Destination) (Destination, error)
	UpdateDestination(id string, mutator func(*Destination) error) (Destination, error)
	DeleteDestination(id string) error
	CreateVehicle(Vehicle) (Vehicle, error)
	UpdateVehicle(id string, mutator func(*Vehicle) error) (Vehicle, error)
	DeleteVehicle(id string) error
	CreateDriver(Driver) (Driver, error)
	UpdateDriver(id string, mutator func(*Driver) error) (Driver, error)
	DeleteDriver(id string) error
	CreateAppointment(Appointment) (Appointment, error)
	UpdateAppointment(id string, mutator func(*Appointment) error) (Appointment, error)
	DeleteAppointment(id string) error
	CreateTrip(Trip) (Trip, error)
	UpdateTrip(id string, mutator func(*Trip) error) (Trip, error)
	DeleteTrip(id string) error
	CreateSupportHouse(SupportHouse) (SupportHouse, error)
	UpdateSupportHouse(id string, mutator func(*SupportHouse) error) (SupportHouse, error)
	DeleteSupportHouse(id string) error
	CreatePatientStay(PatientStay) (PatientStay, error)
	UpdatePatientStay(id string, mutator func(*PatientStay) error) (PatientStay, error)
	DeletePatientStay(id string) error
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
}

// EntityStore is the authoritative in-process store used by the service layer.
type EntityStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	NowFunc() func() time.Time
}

// Persister is the durable backend the in-memory state is mirrored to. Trips
// are stored as a header record plus passenger rows joined by trip id.
type Persister interface {
	// Upsert inserts or replaces record of kind by id.
	Upsert(ctx context.Context, kind EntityType, id string, record any) error
	// Delete removes the record of kind with id. Missing records are not an error.
	Delete(ctx context.Context, kind EntityType, id string) error
	// FetchAll returns every stored record of kind as raw JSON.
	FetchAll(ctx context.Context, kind EntityType) ([]json.RawMessage, error)
	// ReplaceTripPassengers swaps the stored manifest of tripID for rows atomically.
	ReplaceTripPassengers(ctx context.Context, tripID string, rows []TripPassenger) error
	// DeleteTrip removes the trip header and all of its passenger rows.
	DeleteTrip(ctx context.Context, tripID string) error
	Driver() string
	Close() error
}
