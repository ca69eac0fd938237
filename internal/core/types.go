package core

import "tfdcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Patient            = domain.Patient
	TreatmentType      = domain.TreatmentType
	Destination        = domain.Destination
	Vehicle            = domain.Vehicle
	Driver             = domain.Driver
	Appointment        = domain.Appointment
	Trip               = domain.Trip
	TripPassenger      = domain.TripPassenger
	SupportHouse       = domain.SupportHouse
	PatientStay        = domain.PatientStay
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Warning            = domain.Warning
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	RulesEngine        = domain.RulesEngine
	Rule               = domain.Rule
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewTripCapacityRule())
	engine.Register(NewTripManifestRule())
	engine.Register(NewAppointmentTripLinkRule())
	engine.Register(LifecycleTransitionRule())
	engine.Register(NewSupportHouseCapacityRule())
	engine.Register(NewPatientDoubleBookingRule())
	return engine
}

// changedIDs returns the ids of entity records created or updated in changes.
func changedIDs(changes []Change, entity EntityType, id func(any) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range changes {
		if c.Entity != entity || c.After == nil {
			continue
		}
		key := id(c.After)
		if _, ok := seen[key]; ok || key == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func tripID(v any) string {
	if t, ok := v.(Trip); ok {
		return t.ID
	}
	return ""
}

func appointmentID(v any) string {
	if a, ok := v.(Appointment); ok {
		return a.ID
	}
	return ""
}
