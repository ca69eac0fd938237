package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Concrete errors wrap one of these so callers can branch with errors.Is.
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrRetroactiveDate      = errors.New("date is in the past")
	ErrDuplicateAppointment = errors.New("duplicate appointment")
	ErrDuplicateInManifest  = errors.New("patient already on manifest")
	ErrManualAddNotAllowed  = errors.New("manual add not allowed for TFD patient")
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrLinkage              = errors.New("invalid trip linkage")
	ErrIllegalTransition    = errors.New("illegal status transition")
	ErrDetachRequired       = errors.New("appointment must be detached from its trip first")
	ErrVersionConflict      = errors.New("version conflict")
	ErrPersistence          = errors.New("persistence failed")
)

// Error is a domain failure tagged with its kind and the offending record.
type Error struct {
	Kind    error
	Entity  EntityType
	ID      string
	Message string
}

// Errorf builds an *Error of the given kind.
func Errorf(kind error, entity EntityType, id, format string, args ...any) *Error {
	return &Error{Kind: kind, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing record.
func NotFound(entity EntityType, id string) *Error {
	return &Error{Kind: ErrNotFound, Entity: entity, ID: id, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

var ruleKinds = map[string]error{
	"trip_capacity":         ErrCapacityExceeded,
	"appointment_trip_link": ErrLinkage,
	"trip_lifecycle":        ErrIllegalTransition,
	"appointment_status":    ErrIllegalTransition,
	"trip_manifest":         ErrValidation,
	"stay_lifecycle":        ErrIllegalTransition,
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	var msgs []string
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, v.Message)
		}
	}
	if len(msgs) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(msgs, "; ")
}

// Is maps blocking rule names onto error kinds.
func (e RuleViolationError) Is(target error) bool {
	for _, v := range e.Result.Violations {
		if v.Severity != SeverityBlock {
			continue
		}
		if kind, ok := ruleKinds[v.Rule]; ok && kind == target {
			return true
		}
	}
	return false
}

// WarningKind classifies a soft outcome the caller may override.
type WarningKind string

// Warning kinds.
const (
	WarningCapacity WarningKind = "capacity"
	WarningConflict WarningKind = "conflict"
	WarningDetach   WarningKind = "detach"
)

// Warning is a confirmable outcome. Nothing is applied until the caller proceeds.
type Warning struct {
	Kind      WarningKind `json:"kind"`
	Message   string      `json:"message"`
	Projected int         `json:"projected,omitempty"`
	Capacity  int         `json:"capacity,omitempty"`
	TripID    string      `json:"trip_id,omitempty"`
}
