// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by tfdcore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityPatient identifies a patient record.
	EntityPatient EntityType = "patient"
	// EntityTreatmentType identifies a treatment type record.
	EntityTreatmentType EntityType = "treatment_type"
	// EntityDestination identifies a destination (clinic, hospital) record.
	EntityDestination EntityType = "destination"
	// EntityVehicle identifies a vehicle record.
	EntityVehicle EntityType = "vehicle"
	// EntityDriver identifies a driver record.
	EntityDriver EntityType = "driver"
	// EntityAppointment identifies an appointment record.
	EntityAppointment EntityType = "appointment"
	// EntityTrip identifies a trip header record.
	EntityTrip EntityType = "trip"
	// EntityTripPassenger identifies a trip passenger row. Rows are owned by a
	// trip and only exist as a separate kind at the persistence boundary.
	EntityTripPassenger EntityType = "trip_passenger"
	// EntitySupportHouse identifies a support house record.
	EntitySupportHouse EntityType = "support_house"
	// EntityPatientStay identifies a support house stay record.
	EntityPatientStay EntityType = "patient_stay"
)

// PersistedKinds lists entity kinds in dependency order for loading and export.
var PersistedKinds = []EntityType{
	EntityDestination,
	EntityTreatmentType,
	EntityPatient,
	EntityVehicle,
	EntityDriver,
	EntitySupportHouse,
	EntityPatientStay,
	EntityTrip,
	EntityTripPassenger,
	EntityAppointment,
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// DateLayout is the calendar date format used by appointments, trips and stays.
const DateLayout = "2006-01-02"

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PatientStatus enumerates registry states for a patient.
type PatientStatus string

// Patient registry states.
const (
	PatientStatusActive   PatientStatus = "active"
	PatientStatusInactive PatientStatus = "inactive"
)

// Patient is a person served by the out-of-home treatment program.
type Patient struct {
	Base
	Name                         string        `json:"name"`
	CPF                          string        `json:"cpf"`
	SUSCard                      string        `json:"sus_card"`
	BirthDate                    string        `json:"birth_date,omitempty"`
	Phone                        string        `json:"phone,omitempty"`
	Address                      string        `json:"address"`
	Neighborhood                 string        `json:"neighborhood,omitempty"`
	City                         string        `json:"city,omitempty"`
	ReferencePoint               string        `json:"reference_point,omitempty"`
	Status                       PatientStatus `json:"status"`
	IsTFD                        bool          `json:"is_tfd"`
	AllowsCompanion              bool          `json:"allows_companion"`
	CompanionName                string        `json:"companion_name,omitempty"`
	CompanionJustification       string        `json:"companion_justification,omitempty"`
	AllowsSecondCompanion        bool          `json:"allows_second_companion"`
	SecondCompanionName          string        `json:"second_companion_name,omitempty"`
	SecondCompanionJustification string        `json:"second_companion_justification,omitempty"`
	MedicalNotes                 string        `json:"medical_notes,omitempty"`
}

// TreatmentType is a named clinical procedure patients travel for.
type TreatmentType struct {
	Base
	Name                 string `json:"name"`
	SpecialistName       string `json:"specialist_name,omitempty"`
	Notes                string `json:"notes,omitempty"`
	DefaultDestinationID string `json:"default_destination_id,omitempty"`
}

// Destination is a care facility trips deliver patients to.
type Destination struct {
	Base
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// VehicleStatus enumerates fleet availability.
type VehicleStatus string

// Vehicle availability states.
const (
	VehicleStatusActive      VehicleStatus = "active"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
)

// Vehicle is a fleet unit with a fixed seat count.
type Vehicle struct {
	Base
	Model    string        `json:"model"`
	Plate    string        `json:"plate"`
	Capacity int           `json:"capacity"`
	Status   VehicleStatus `json:"status"`
}

// Driver operates fleet vehicles.
type Driver struct {
	Base
	Name     string `json:"name"`
	Document string `json:"document,omitempty"`
	CNH      string `json:"cnh,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Active   bool   `json:"active"`
}

// AppointmentStatus enumerates the appointment lifecycle.
type AppointmentStatus string

// Appointment lifecycle states.
const (
	AppointmentPending       AppointmentStatus = "pending"
	AppointmentScheduledTrip AppointmentStatus = "scheduled_trip"
	AppointmentCompleted     AppointmentStatus = "completed"
	AppointmentCancelled     AppointmentStatus = "cancelled"
	AppointmentMissed        AppointmentStatus = "missed"
	AppointmentRescheduled   AppointmentStatus = "rescheduled"
)

// Valid reports whether s is one of the enumerated appointment states.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentScheduledTrip, AppointmentCompleted,
		AppointmentCancelled, AppointmentMissed, AppointmentRescheduled:
		return true
	default:
		return false
	}
}

// Active reports whether the status still expects a future journey. Active
// appointments are subject to the retroactive date policy.
func (s AppointmentStatus) Active() bool {
	switch s {
	case AppointmentPending, AppointmentScheduledTrip, AppointmentRescheduled:
		return true
	default:
		return false
	}
}

// Appointment is one patient's need for care on a given date.
type Appointment struct {
	Base
	PatientID       string            `json:"patient_id"`
	PatientName     string            `json:"patient_name"`
	DestinationID   string            `json:"destination_id,omitempty"`
	DestinationName string            `json:"destination_name,omitempty"`
	TreatmentID     string            `json:"treatment_id,omitempty"`
	TreatmentName   string            `json:"treatment_name,omitempty"`
	Date            string            `json:"date"`
	Time            string            `json:"time,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Status          AppointmentStatus `json:"status"`
	TripID          string            `json:"trip_id,omitempty"`
	IsReturn        bool              `json:"is_return"`
}

// TripStatus enumerates the trip lifecycle.
type TripStatus string

// Trip lifecycle states. Completed and Cancelled are terminal.
const (
	TripScheduled TripStatus = "scheduled"
	TripBoarding  TripStatus = "boarding"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
)

// Valid reports whether s is one of the enumerated trip states.
func (s TripStatus) Valid() bool {
	switch s {
	case TripScheduled, TripBoarding, TripCompleted, TripCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are allowed.
func (s TripStatus) Terminal() bool {
	return s == TripCompleted || s == TripCancelled
}

// LegMode describes which legs of the journey a passenger row covers.
type LegMode string

// Supported leg modes.
const (
	LegOneWay    LegMode = "one_way"
	LegReturn    LegMode = "return"
	LegRoundTrip LegMode = "round_trip"
)

// Valid reports whether m covers at least one physical leg.
func (m LegMode) Valid() bool {
	switch m {
	case LegOneWay, LegReturn, LegRoundTrip:
		return true
	default:
		return false
	}
}

// PassengerStatus tracks boarding for a manifest row.
type PassengerStatus string

// Boarding states.
const (
	PassengerConfirmed PassengerStatus = "confirmed"
	PassengerMissing   PassengerStatus = "missing"
	PassengerBoarded   PassengerStatus = "boarded"
)

// Valid reports whether s is a known boarding state.
func (s PassengerStatus) Valid() bool {
	switch s {
	case PassengerConfirmed, PassengerMissing, PassengerBoarded:
		return true
	default:
		return false
	}
}

// TripPassenger is one seat allocation on a trip manifest.
type TripPassenger struct {
	ID                  string          `json:"id"`
	TripID              string          `json:"trip_id"`
	PatientID           string          `json:"patient_id,omitempty"`
	PatientName         string          `json:"patient_name"`
	IsCompanion         bool            `json:"is_companion"`
	RelatedPatientID    string          `json:"related_patient_id,omitempty"`
	RelatedPatientName  string          `json:"related_patient_name,omitempty"`
	CompanionSlot       int             `json:"companion_slot,omitempty"`
	HasCompanion        bool            `json:"has_companion"`
	CompanionName       string          `json:"companion_name,omitempty"`
	HasSecondCompanion  bool            `json:"has_second_companion"`
	SecondCompanionName string          `json:"second_companion_name,omitempty"`
	Status              PassengerStatus `json:"status"`
	Origin              string          `json:"origin"`
	Destination         string          `json:"destination"`
	AppointmentTime     string          `json:"appointment_time,omitempty"`
	AppointmentID       string          `json:"appointment_id,omitempty"`
	Leg                 LegMode         `json:"leg"`
	Seq                 int             `json:"seq"`
}

// IsReturn reports whether the row covers only the inbound leg.
func (p TripPassenger) IsReturn() bool { return p.Leg == LegReturn }

// IsRoundTrip reports whether the row covers both legs.
func (p TripPassenger) IsRoundTrip() bool { return p.Leg == LegRoundTrip }

// Seats returns the seats a patient row occupies including its companions.
// Companion rows are accounted for through their patient row and return zero.
func (p TripPassenger) Seats() int {
	if p.IsCompanion {
		return 0
	}
	seats := 1
	if p.HasCompanion {
		seats++
	}
	if p.HasSecondCompanion {
		seats++
	}
	return seats
}

// Trip is one scheduled vehicle departure and its manifest.
type Trip struct {
	Base
	Date          string          `json:"date"`
	Time          string          `json:"time,omitempty"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	TreatmentID   string          `json:"treatment_id,omitempty"`
	TreatmentName string          `json:"treatment_name,omitempty"`
	DriverID      string          `json:"driver_id"`
	DriverName    string          `json:"driver_name"`
	VehicleID     string          `json:"vehicle_id"`
	VehicleModel  string          `json:"vehicle_model"`
	VehiclePlate  string          `json:"vehicle_plate"`
	TotalSeats    int             `json:"total_seats"`
	OccupiedSeats int             `json:"occupied_seats"`
	Status        TripStatus      `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	Passengers    []TripPassenger `json:"passengers,omitempty"`
}

// Header returns the trip without its passenger rows, as persisted.
func (t Trip) Header() Trip {
	t.Passengers = nil
	return t
}

// PatientRow returns the patient row for patientID on the manifest.
func (t Trip) PatientRow(patientID string) (TripPassenger, bool) {
	for _, p := range t.Passengers {
		if !p.IsCompanion && p.PatientID == patientID {
			return p, true
		}
	}
	return TripPassenger{}, false
}

// SupportHouse is lodging used by patients treated away from home.
type SupportHouse struct {
	Base
	Name      string  `json:"name"`
	Address   string  `json:"address,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Capacity  int     `json:"capacity"`
	DailyCost float64 `json:"daily_cost"`
}

// StayStatus enumerates support house stay states.
type StayStatus string

// Stay states.
const (
	StayActive    StayStatus = "active"
	StayCompleted StayStatus = "completed"
	StayCancelled StayStatus = "cancelled"
)

// PatientStay records a patient lodged at a support house.
type PatientStay struct {
	Base
	PatientID      string     `json:"patient_id"`
	PatientName    string     `json:"patient_name"`
	SupportHouseID string     `json:"support_house_id"`
	HasCompanion   bool       `json:"has_companion"`
	CompanionName  string     `json:"companion_name,omitempty"`
	EntryDate      string     `json:"entry_date"`
	EntryTime      string     `json:"entry_time,omitempty"`
	ExitDate       string     `json:"exit_date,omitempty"`
	ExitTime       string     `json:"exit_time,omitempty"`
	Status         StayStatus `json:"status"`
	Notes          string     `json:"notes,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in transactions.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v)
		}
	}
	return out
}

// Meta exposes the common record fields to generic store helpers.
func (b *Base) Meta() *Base { return b }
