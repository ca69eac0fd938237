package domain

import "context"

// RuleView provides read-only access to domain entities for rule evaluation.
type RuleView interface {
	ListPatients() []Patient
	ListTreatmentTypes() []TreatmentType
	ListDestinations() []Destination
	ListVehicles() []Vehicle
	ListDrivers() []Driver
	ListAppointments() []Appointment
	ListTrips() []Trip
	ListSupportHouses() []SupportHouse
	ListPatientStays() []PatientStay
	FindPatient(id string) (Patient, bool)
	FindTreatmentType(id string) (TreatmentType, bool)
	FindDestination(id string) (Destination, bool)
	FindVehicle(id string) (Vehicle, bool)
	FindDriver(id string) (Driver, bool)
	FindAppointment(id string) (Appointment, bool)
	FindTrip(id string) (Trip, bool)
	FindSupportHouse(id string) (SupportHouse, bool)
	FindPatientStay(id string) (PatientStay, bool)
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
