package core

import (
	"context"
	"fmt"

	"tfdcore/pkg/domain"
)

// LifecycleTransitionRule blocks illegal state transitions on stateful entities.
func LifecycleTransitionRule() domain.Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

type lifecycleMachine struct {
	rule      string
	label     string
	terminal  map[string]struct{}
	valid     map[string]struct{}
	backwards map[[2]string]struct{}
	extractor func(v any) (id string, state string, ok bool)
}

var lifecycleMachines = map[domain.EntityType]lifecycleMachine{
	domain.EntityTrip: {
		rule:     "trip_lifecycle",
		label:    "trip",
		terminal: toSet(string(domain.TripCompleted), string(domain.TripCancelled)),
		valid: toSet(
			string(domain.TripScheduled),
			string(domain.TripBoarding),
			string(domain.TripCompleted),
			string(domain.TripCancelled),
		),
		backwards: map[[2]string]struct{}{
			{string(domain.TripBoarding), string(domain.TripScheduled)}: {},
		},
		extractor: func(v any) (string, string, bool) {
			trip, ok := v.(Trip)
			if !ok {
				return "", "", false
			}
			return trip.ID, string(trip.Status), true
		},
	},
	domain.EntityAppointment: {
		rule:  "appointment_status",
		label: "appointment",
		valid: toSet(
			string(domain.AppointmentPending),
			string(domain.AppointmentScheduledTrip),
			string(domain.AppointmentCompleted),
			string(domain.AppointmentCancelled),
			string(domain.AppointmentMissed),
			string(domain.AppointmentRescheduled),
		),
		extractor: func(v any) (string, string, bool) {
			appt, ok := v.(Appointment)
			if !ok {
				return "", "", false
			}
			return appt.ID, string(appt.Status), true
		},
	},
	domain.EntityPatientStay: {
		rule:     "stay_lifecycle",
		label:    "stay",
		terminal: toSet(string(domain.StayCompleted), string(domain.StayCancelled)),
		valid: toSet(
			string(domain.StayActive),
			string(domain.StayCompleted),
			string(domain.StayCancelled),
		),
		extractor: func(v any) (string, string, bool) {
			stay, ok := v.(PatientStay)
			if !ok {
				return "", "", false
			}
			return stay.ID, string(stay.Status), true
		},
	},
}

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

func (lifecycleTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		machine, ok := lifecycleMachines[change.Entity]
		if !ok {
			continue
		}
		afterID, afterState, ok := machine.extractor(change.After)
		if !ok {
			continue
		}
		if _, valid := machine.valid[afterState]; !valid {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     machine.rule,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s %s is set to invalid state %q", machine.label, afterID, afterState),
				Entity:   change.Entity,
				EntityID: afterID,
			})
			continue
		}
		_, beforeState, ok := machine.extractor(change.Before)
		if !ok || beforeState == afterState {
			continue
		}
		if _, terminal := machine.terminal[beforeState]; terminal {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     machine.rule,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("cannot move %s %s from terminal state %s to %s", machine.label, afterID, beforeState, afterState),
				Entity:   change.Entity,
				EntityID: afterID,
			})
			continue
		}
		if _, back := machine.backwards[[2]string{beforeState, afterState}]; back {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     machine.rule,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("cannot move %s %s back from %s to %s", machine.label, afterID, beforeState, afterState),
				Entity:   change.Entity,
				EntityID: afterID,
			})
		}
	}
	return res, nil
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
