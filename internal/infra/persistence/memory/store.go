// Package memory provides the authoritative in-memory store for tfdcore plus
// an in-memory Persister used by tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tfdcore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.EntityStore = (*Store)(nil)
	_ domain.Transaction = (*transaction)(nil)
)

type (
	// Patient aliases domain.Patient.
	Patient = domain.Patient
	// TreatmentType aliases domain.TreatmentType.
	TreatmentType = domain.TreatmentType
	// Destination aliases domain.Destination.
	Destination = domain.Destination
	// Vehicle aliases domain.Vehicle.
	Vehicle = domain.Vehicle
	// Driver aliases domain.Driver.
	Driver = domain.Driver
	// Appointment aliases domain.Appointment.
	Appointment = domain.Appointment
	// Trip aliases domain.Trip.
	Trip = domain.Trip
	// SupportHouse aliases domain.SupportHouse.
	SupportHouse = domain.SupportHouse
	// PatientStay aliases domain.PatientStay.
	PatientStay = domain.PatientStay
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	patients     map[string]Patient
	treatments   map[string]TreatmentType
	destinations map[string]Destination
	vehicles     map[string]Vehicle
	drivers      map[string]Driver
	appointments map[string]Appointment
	trips        map[string]Trip
	houses       map[string]SupportHouse
	stays        map[string]PatientStay
}

func newMemoryState() memoryState {
	return memoryState{
		patients:     make(map[string]Patient),
		treatments:   make(map[string]TreatmentType),
		destinations: make(map[string]Destination),
		vehicles:     make(map[string]Vehicle),
		drivers:      make(map[string]Driver),
		appointments: make(map[string]Appointment),
		trips:        make(map[string]Trip),
		houses:       make(map[string]SupportHouse),
		stays:        make(map[string]PatientStay),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		patients:     cloneMap(s.patients, identity[Patient]),
		treatments:   cloneMap(s.treatments, identity[TreatmentType]),
		destinations: cloneMap(s.destinations, identity[Destination]),
		vehicles:     cloneMap(s.vehicles, identity[Vehicle]),
		drivers:      cloneMap(s.drivers, identity[Driver]),
		appointments: cloneMap(s.appointments, identity[Appointment]),
		trips:        cloneMap(s.trips, cloneTrip),
		houses:       cloneMap(s.houses, identity[SupportHouse]),
		stays:        cloneMap(s.stays, identity[PatientStay]),
	}
}

func identity[T any](v T) T { return v }

func cloneTrip(t Trip) Trip {
	if t.Passengers != nil {
		t.Passengers = append([]domain.TripPassenger(nil), t.Passengers...)
	}
	return t
}

func cloneMap[T any](in map[string]T, clone func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

// Option customises a Store.
type Option func(*Store)

// WithNowFunc overrides the clock used for record timestamps.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// WithIDGenerator overrides record ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.idFn = fn
		}
	}
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	idFn   func() string
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Nothing is committed when fn fails or a rule reports a blocking violation.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	tx.view = transactionView{state: &tx.state}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, tx.view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(transactionView{state: &snapshot})
}

func (s *Store) read() transactionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := s.state.clone()
	return transactionView{state: &snapshot}
}

// ListPatients returns all patients.
func (s *Store) ListPatients() []Patient { return s.read().ListPatients() }

// ListAppointments returns all appointments ordered by date and time.
func (s *Store) ListAppointments() []Appointment { return s.read().ListAppointments() }

// ListTrips returns all trips ordered by date and time.
func (s *Store) ListTrips() []Trip { return s.read().ListTrips() }

// ListVehicles returns all vehicles.
func (s *Store) ListVehicles() []Vehicle { return s.read().ListVehicles() }

// ListDrivers returns all drivers.
func (s *Store) ListDrivers() []Driver { return s.read().ListDrivers() }

// ListDestinations returns all destinations.
func (s *Store) ListDestinations() []Destination { return s.read().ListDestinations() }

// ListTreatmentTypes returns all treatment types.
func (s *Store) ListTreatmentTypes() []TreatmentType { return s.read().ListTreatmentTypes() }

// ListSupportHouses returns all support houses.
func (s *Store) ListSupportHouses() []SupportHouse { return s.read().ListSupportHouses() }

// ListPatientStays returns all stays.
func (s *Store) ListPatientStays() []PatientStay { return s.read().ListPatientStays() }

// GetPatient returns a patient by id.
func (s *Store) GetPatient(id string) (Patient, bool) { return s.read().FindPatient(id) }

// GetAppointment returns an appointment by id.
func (s *Store) GetAppointment(id string) (Appointment, bool) { return s.read().FindAppointment(id) }

// GetTrip returns a trip with its manifest.
func (s *Store) GetTrip(id string) (Trip, bool) { return s.read().FindTrip(id) }

type transaction struct {
	view    transactionView
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView { return tx.view }

// Now returns the timestamp shared by every write in the transaction.
func (tx *transaction) Now() time.Time { return tx.now }

// Changes returns the mutations recorded so far.
func (tx *transaction) Changes() []Change {
	return append([]Change(nil), tx.changes...)
}

type record[T any] interface {
	*T
	Meta() *domain.Base
}

func create[T any, P record[T]](tx *transaction, bucket map[string]T, kind domain.EntityType, v T, clone func(T) T) (T, error) {
	var zero T
	meta := P(&v).Meta()
	if meta.ID == "" {
		meta.ID = tx.store.idFn()
	}
	if _, exists := bucket[meta.ID]; exists {
		return zero, fmt.Errorf("%s %q already exists", kind, meta.ID)
	}
	if meta.Version == 0 {
		meta.Version = 1
	}
	meta.CreatedAt = tx.now
	meta.UpdatedAt = tx.now
	bucket[meta.ID] = clone(v)
	tx.recordChange(Change{Entity: kind, Action: domain.ActionCreate, After: clone(v)})
	return clone(v), nil
}

func update[T any, P record[T]](tx *transaction, bucket map[string]T, kind domain.EntityType, id string, mutator func(*T) error, clone func(T) T, finalize func(*T) error) (T, error) {
	var zero T
	current, ok := bucket[id]
	if !ok {
		return zero, domain.NotFound(kind, id)
	}
	before := clone(current)
	current = clone(current)
	if err := mutator(&current); err != nil {
		return zero, err
	}
	prev := P(&before).Meta()
	meta := P(&current).Meta()
	meta.ID = id
	meta.CreatedAt = prev.CreatedAt
	meta.Version = prev.Version + 1
	meta.UpdatedAt = tx.now
	if finalize != nil {
		if err := finalize(&current); err != nil {
			return zero, err
		}
	}
	bucket[id] = clone(current)
	tx.recordChange(Change{Entity: kind, Action: domain.ActionUpdate, Before: before, After: clone(current)})
	return clone(current), nil
}

func remove[T any](tx *transaction, bucket map[string]T, kind domain.EntityType, id string) error {
	current, ok := bucket[id]
	if !ok {
		return domain.NotFound(kind, id)
	}
	delete(bucket, id)
	tx.recordChange(Change{Entity: kind, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreatePatient stores a new patient.
func (tx *transaction) CreatePatient(p Patient) (Patient, error) {
	if p.Name == "" {
		return Patient{}, domain.Errorf(domain.ErrValidation, domain.EntityPatient, p.ID, "patient requires name")
	}
	if p.Status == "" {
		p.Status = domain.PatientStatusActive
	}
	return create(tx, tx.state.patients, domain.EntityPatient, p, identity[Patient])
}

// UpdatePatient mutates an existing patient.
func (tx *transaction) UpdatePatient(id string, mutator func(*Patient) error) (Patient, error) {
	return update(tx, tx.state.patients, domain.EntityPatient, id, mutator, identity[Patient], nil)
}

// DeletePatient removes a patient.
func (tx *transaction) DeletePatient(id string) error {
	return remove(tx, tx.state.patients, domain.EntityPatient, id)
}

// CreateTreatmentType stores a new treatment type.
func (tx *transaction) CreateTreatmentType(t TreatmentType) (TreatmentType, error) {
	if t.Name == "" {
		return TreatmentType{}, domain.Errorf(domain.ErrValidation, domain.EntityTreatmentType, t.ID, "treatment type requires name")
	}
	return create(tx, tx.state.treatments, domain.EntityTreatmentType, t, identity[TreatmentType])
}

// UpdateTreatmentType mutates a treatment type.
func (tx *transaction) UpdateTreatmentType(id string, mutator func(*TreatmentType) error) (TreatmentType, error) {
	return update(tx, tx.state.treatments, domain.EntityTreatmentType, id, mutator, identity[TreatmentType], nil)
}

// DeleteTreatmentType removes a treatment type.
func (tx *transaction) DeleteTreatmentType(id string) error {
	return remove(tx, tx.state.treatments, domain.EntityTreatmentType, id)
}

// CreateDestination stores a new destination.
func (tx *transaction) CreateDestination(d Destination) (Destination, error) {
	if d.Name == "" {
		return Destination{}, domain.Errorf(domain.ErrValidation, domain.EntityDestination, d.ID, "destination requires name")
	}
	return create(tx, tx.state.destinations, domain.EntityDestination, d, identity[Destination])
}

// UpdateDestination mutates a destination.
func (tx *transaction) UpdateDestination(id string, mutator func(*Destination) error) (Destination, error) {
	return update(tx, tx.state.destinations, domain.EntityDestination, id, mutator, identity[Destination], nil)
}

// DeleteDestination removes a destination.
func (tx *transaction) DeleteDestination(id string) error {
	return remove(tx, tx.state.destinations, domain.EntityDestination, id)
}

func validateVehicle(v *Vehicle) error {
	if v.Capacity <= 0 {
		return domain.Errorf(domain.ErrValidation, domain.EntityVehicle, v.ID, "vehicle capacity must be positive")
	}
	if v.Status == "" {
		v.Status = domain.VehicleStatusActive
	}
	return nil
}

// CreateVehicle stores a new vehicle.
func (tx *transaction) CreateVehicle(v Vehicle) (Vehicle, error) {
	if err := validateVehicle(&v); err != nil {
		return Vehicle{}, err
	}
	return create(tx, tx.state.vehicles, domain.EntityVehicle, v, identity[Vehicle])
}

// UpdateVehicle mutates a vehicle.
func (tx *transaction) UpdateVehicle(id string, mutator func(*Vehicle) error) (Vehicle, error) {
	return update(tx, tx.state.vehicles, domain.EntityVehicle, id, mutator, identity[Vehicle], validateVehicle)
}

// DeleteVehicle removes a vehicle.
func (tx *transaction) DeleteVehicle(id string) error {
	return remove(tx, tx.state.vehicles, domain.EntityVehicle, id)
}

// CreateDriver stores a new driver.
func (tx *transaction) CreateDriver(d Driver) (Driver, error) {
	if d.Name == "" {
		return Driver{}, domain.Errorf(domain.ErrValidation, domain.EntityDriver, d.ID, "driver requires name")
	}
	return create(tx, tx.state.drivers, domain.EntityDriver, d, identity[Driver])
}

// UpdateDriver mutates a driver.
func (tx *transaction) UpdateDriver(id string, mutator func(*Driver) error) (Driver, error) {
	return update(tx, tx.state.drivers, domain.EntityDriver, id, mutator, identity[Driver], nil)
}

// DeleteDriver removes a driver.
func (tx *transaction) DeleteDriver(id string) error {
	return remove(tx, tx.state.drivers, domain.EntityDriver, id)
}

func (tx *transaction) checkAppointment(a *Appointment) error {
	if a.PatientID == "" {
		return domain.Errorf(domain.ErrValidation, domain.EntityAppointment, a.ID, "appointment requires patient")
	}
	if _, ok := tx.state.patients[a.PatientID]; !ok {
		return domain.NotFound(domain.EntityPatient, a.PatientID)
	}
	if a.Status == "" {
		a.Status = domain.AppointmentPending
	}
	return nil
}

// CreateAppointment stores a new appointment.
func (tx *transaction) CreateAppointment(a Appointment) (Appointment, error) {
	if err := tx.checkAppointment(&a); err != nil {
		return Appointment{}, err
	}
	return create(tx, tx.state.appointments, domain.EntityAppointment, a, identity[Appointment])
}

// UpdateAppointment mutates an appointment.
func (tx *transaction) UpdateAppointment(id string, mutator func(*Appointment) error) (Appointment, error) {
	return update(tx, tx.state.appointments, domain.EntityAppointment, id, mutator, identity[Appointment], tx.checkAppointment)
}

// DeleteAppointment removes an appointment.
func (tx *transaction) DeleteAppointment(id string) error {
	return remove(tx, tx.state.appointments, domain.EntityAppointment, id)
}

// normalizeTrip assigns row identity and recomputes the derived seat count.
func (tx *transaction) normalizeTrip(t *Trip) error {
	if t.Status == "" {
		t.Status = domain.TripScheduled
	}
	occupied := 0
	for i := range t.Passengers {
		row := &t.Passengers[i]
		if row.ID == "" {
			row.ID = tx.store.idFn()
		}
		row.TripID = t.ID
		row.Seq = i
		if row.Status == "" {
			row.Status = domain.PassengerConfirmed
		}
		occupied += row.Seats()
	}
	t.OccupiedSeats = occupied
	return nil
}

// CreateTrip stores a new trip together with its manifest.
func (tx *transaction) CreateTrip(t Trip) (Trip, error) {
	if t.ID == "" {
		t.ID = tx.store.idFn()
	}
	t = cloneTrip(t)
	if err := tx.normalizeTrip(&t); err != nil {
		return Trip{}, err
	}
	return create(tx, tx.state.trips, domain.EntityTrip, t, cloneTrip)
}

// UpdateTrip mutates a trip. Occupancy is recomputed from the manifest.
func (tx *transaction) UpdateTrip(id string, mutator func(*Trip) error) (Trip, error) {
	return update(tx, tx.state.trips, domain.EntityTrip, id, mutator, cloneTrip, tx.normalizeTrip)
}

// DeleteTrip removes a trip and its manifest.
func (tx *transaction) DeleteTrip(id string) error {
	return remove(tx, tx.state.trips, domain.EntityTrip, id)
}

// CreateSupportHouse stores a new support house.
func (tx *transaction) CreateSupportHouse(h SupportHouse) (SupportHouse, error) {
	if h.Name == "" {
		return SupportHouse{}, domain.Errorf(domain.ErrValidation, domain.EntitySupportHouse, h.ID, "support house requires name")
	}
	return create(tx, tx.state.houses, domain.EntitySupportHouse, h, identity[SupportHouse])
}

// UpdateSupportHouse mutates a support house.
func (tx *transaction) UpdateSupportHouse(id string, mutator func(*SupportHouse) error) (SupportHouse, error) {
	return update(tx, tx.state.houses, domain.EntitySupportHouse, id, mutator, identity[SupportHouse], nil)
}

// DeleteSupportHouse removes a support house.
func (tx *transaction) DeleteSupportHouse(id string) error {
	return remove(tx, tx.state.houses, domain.EntitySupportHouse, id)
}

func (tx *transaction) checkStay(s *PatientStay) error {
	if _, ok := tx.state.patients[s.PatientID]; !ok {
		return domain.NotFound(domain.EntityPatient, s.PatientID)
	}
	if _, ok := tx.state.houses[s.SupportHouseID]; !ok {
		return domain.NotFound(domain.EntitySupportHouse, s.SupportHouseID)
	}
	if s.Status == "" {
		s.Status = domain.StayActive
	}
	return nil
}

// CreatePatientStay stores a new stay.
func (tx *transaction) CreatePatientStay(s PatientStay) (PatientStay, error) {
	if err := tx.checkStay(&s); err != nil {
		return PatientStay{}, err
	}
	return create(tx, tx.state.stays, domain.EntityPatientStay, s, identity[PatientStay])
}

// UpdatePatientStay mutates a stay.
func (tx *transaction) UpdatePatientStay(id string, mutator func(*PatientStay) error) (PatientStay, error) {
	return update(tx, tx.state.stays, domain.EntityPatientStay, id, mutator, identity[PatientStay], tx.checkStay)
}

// DeletePatientStay removes a stay.
func (tx *transaction) DeletePatientStay(id string) error {
	return remove(tx, tx.state.stays, domain.EntityPatientStay, id)
}

// Read access inside a transaction observes its own uncommitted writes.

func (tx *transaction) ListPatients() []Patient             { return tx.view.ListPatients() }
func (tx *transaction) ListTreatmentTypes() []TreatmentType { return tx.view.ListTreatmentTypes() }
func (tx *transaction) ListDestinations() []Destination     { return tx.view.ListDestinations() }
func (tx *transaction) ListVehicles() []Vehicle             { return tx.view.ListVehicles() }
func (tx *transaction) ListDrivers() []Driver               { return tx.view.ListDrivers() }
func (tx *transaction) ListAppointments() []Appointment     { return tx.view.ListAppointments() }
func (tx *transaction) ListTrips() []Trip                   { return tx.view.ListTrips() }
func (tx *transaction) ListSupportHouses() []SupportHouse   { return tx.view.ListSupportHouses() }
func (tx *transaction) ListPatientStays() []PatientStay     { return tx.view.ListPatientStays() }

func (tx *transaction) FindPatient(id string) (Patient, bool) { return tx.view.FindPatient(id) }
func (tx *transaction) FindTreatmentType(id string) (TreatmentType, bool) {
	return tx.view.FindTreatmentType(id)
}
func (tx *transaction) FindDestination(id string) (Destination, bool) {
	return tx.view.FindDestination(id)
}
func (tx *transaction) FindVehicle(id string) (Vehicle, bool) { return tx.view.FindVehicle(id) }
func (tx *transaction) FindDriver(id string) (Driver, bool)   { return tx.view.FindDriver(id) }
func (tx *transaction) FindAppointment(id string) (Appointment, bool) {
	return tx.view.FindAppointment(id)
}
func (tx *transaction) FindTrip(id string) (Trip, bool) { return tx.view.FindTrip(id) }
func (tx *transaction) FindSupportHouse(id string) (SupportHouse, bool) {
	return tx.view.FindSupportHouse(id)
}
func (tx *transaction) FindPatientStay(id string) (PatientStay, bool) {
	return tx.view.FindPatientStay(id)
}

// transactionView exposes a read-only snapshot of state to rules and callers.
type transactionView struct {
	state *memoryState
}

func values[T any](m map[string]T, clone func(T) T, less func(a, b T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, clone(v))
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func find[T any](m map[string]T, id string, clone func(T) T) (T, bool) {
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, false
	}
	return clone(v), true
}

func byID[T any, P record[T]](a, b T) bool {
	return P(&a).Meta().ID < P(&b).Meta().ID
}

func (v transactionView) ListPatients() []Patient {
	return values(v.state.patients, identity[Patient], byID[Patient])
}

func (v transactionView) ListTreatmentTypes() []TreatmentType {
	return values(v.state.treatments, identity[TreatmentType], byID[TreatmentType])
}

func (v transactionView) ListDestinations() []Destination {
	return values(v.state.destinations, identity[Destination], byID[Destination])
}

func (v transactionView) ListVehicles() []Vehicle {
	return values(v.state.vehicles, identity[Vehicle], byID[Vehicle])
}

func (v transactionView) ListDrivers() []Driver {
	return values(v.state.drivers, identity[Driver], byID[Driver])
}

func (v transactionView) ListAppointments() []Appointment {
	return values(v.state.appointments, identity[Appointment], func(a, b Appointment) bool {
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
}

func (v transactionView) ListTrips() []Trip {
	return values(v.state.trips, cloneTrip, func(a, b Trip) bool {
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
}

func (v transactionView) ListSupportHouses() []SupportHouse {
	return values(v.state.houses, identity[SupportHouse], byID[SupportHouse])
}

func (v transactionView) ListPatientStays() []PatientStay {
	return values(v.state.stays, identity[PatientStay], byID[PatientStay])
}

func (v transactionView) FindPatient(id string) (Patient, bool) {
	return find(v.state.patients, id, identity[Patient])
}

func (v transactionView) FindTreatmentType(id string) (TreatmentType, bool) {
	return find(v.state.treatments, id, identity[TreatmentType])
}

func (v transactionView) FindDestination(id string) (Destination, bool) {
	return find(v.state.destinations, id, identity[Destination])
}

func (v transactionView) FindVehicle(id string) (Vehicle, bool) {
	return find(v.state.vehicles, id, identity[Vehicle])
}

func (v transactionView) FindDriver(id string) (Driver, bool) {
	return find(v.state.drivers, id, identity[Driver])
}

func (v transactionView) FindAppointment(id string) (Appointment, bool) {
	return find(v.state.appointments, id, identity[Appointment])
}

func (v transactionView) FindTrip(id string) (Trip, bool) {
	return find(v.state.trips, id, cloneTrip)
}

func (v transactionView) FindSupportHouse(id string) (SupportHouse, bool) {
	return find(v.state.houses, id, identity[SupportHouse])
}

func (v transactionView) FindPatientStay(id string) (PatientStay, bool) {
	return find(v.state.stays, id, identity[PatientStay])
}
