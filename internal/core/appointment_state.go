package core

import "tfdcore/pkg/domain"

// AppointmentStateMachine owns the legal appointment status transitions.
type AppointmentStateMachine struct{}

// CanTransition reports whether from may move to to. Staying in place is
// always allowed for known states.
func (AppointmentStateMachine) CanTransition(from, to domain.AppointmentStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to || to == domain.AppointmentPending {
		return true
	}
	switch from {
	case domain.AppointmentPending, domain.AppointmentRescheduled:
		switch to {
		case domain.AppointmentScheduledTrip, domain.AppointmentCancelled, domain.AppointmentMissed:
			return true
		}
	case domain.AppointmentScheduledTrip:
		switch to {
		case domain.AppointmentCompleted, domain.AppointmentCancelled,
			domain.AppointmentMissed, domain.AppointmentRescheduled:
			return true
		}
	case domain.AppointmentCompleted, domain.AppointmentCancelled, domain.AppointmentMissed:
		// only back to pending
	}
	return false
}

// Check returns an ErrIllegalTransition error for a forbidden move.
func (m AppointmentStateMachine) Check(id string, from, to domain.AppointmentStatus) error {
	if !to.Valid() {
		return domain.Errorf(domain.ErrValidation, domain.EntityAppointment, id, "unknown appointment status %q", to)
	}
	if !m.CanTransition(from, to) {
		return domain.Errorf(domain.ErrIllegalTransition, domain.EntityAppointment, id, "cannot move appointment %s from %s to %s", id, from, to)
	}
	return nil
}
