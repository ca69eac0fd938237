package core

import (
	"context"

	"github.com/samber/lo"

	"tfdcore/pkg/domain"
)

// AppointmentInput carries the editable fields of an appointment.
type AppointmentInput struct {
	PatientID     string                   `json:"patient_id"`
	DestinationID string                   `json:"destination_id"`
	TreatmentID   string                   `json:"treatment_id"`
	Date          string                   `json:"date"`
	Time          string                   `json:"time"`
	Notes         string                   `json:"notes"`
	IsReturn      bool                     `json:"is_return"`
	Status        domain.AppointmentStatus `json:"status"`
	TripID        string                   `json:"trip_id"`
	Version       int64                    `json:"version"`
}

// DateChangePlan is the first phase of moving an appointment to another date.
// When nothing needed confirmation the move is already committed and
// Appointment and Receipt describe it.
type DateChangePlan struct {
	RequiresDetachConfirmation bool
	Proposal                   *Proposal
	Appointment                Appointment
	Receipt                    Receipt
}

// CreateAppointment registers a new appointment. A trip id seats it on that
// trip in the same transaction.
func (s *Service) CreateAppointment(ctx context.Context, in AppointmentInput) (Appointment, Receipt, error) {
	var created Appointment
	receipt, err := s.run(ctx, "appointment.create", func(tx Transaction) error {
		status := in.Status
		if status == "" || status == domain.AppointmentScheduledTrip {
			status = domain.AppointmentPending
		}
		if status == domain.AppointmentCompleted {
			return domain.Errorf(domain.ErrIllegalTransition, domain.EntityAppointment, "", "an appointment cannot be created as completed")
		}
		if in.Status == domain.AppointmentScheduledTrip && in.TripID == "" {
			return domain.Errorf(domain.ErrLinkage, domain.EntityAppointment, "", "scheduled appointment requires a trip")
		}
		appt := Appointment{
			PatientID:     in.PatientID,
			DestinationID: in.DestinationID,
			TreatmentID:   in.TreatmentID,
			Date:          in.Date,
			Time:          in.Time,
			Notes:         in.Notes,
			IsReturn:      in.IsReturn,
			Status:        status,
		}
		if err := s.prepareAppointment(tx, &appt); err != nil {
			return err
		}
		if err := s.guardAppointment(tx, appt); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateAppointment(appt)
		if err != nil {
			return err
		}
		if in.TripID != "" {
			created, err = s.link(tx, created, in.TripID, nil)
		}
		return err
	})
	return created, receipt, err
}

// UpdateAppointment edits an appointment. Moving a linked appointment to a
// different date or patient fails with ErrDetachRequired.
func (s *Service) UpdateAppointment(ctx context.Context, id string, in AppointmentInput) (Appointment, Receipt, error) {
	var updated Appointment
	receipt, err := s.run(ctx, "appointment.update", func(tx Transaction) error {
		current, ok := tx.FindAppointment(id)
		if !ok {
			return domain.NotFound(domain.EntityAppointment, id)
		}
		if in.Version != 0 && in.Version != current.Version {
			return domain.Errorf(domain.ErrVersionConflict, domain.EntityAppointment, id, "appointment %s is at version %d, not %d", id, current.Version, in.Version)
		}
		if current.TripID != "" && (in.Date != current.Date || in.PatientID != current.PatientID) {
			return domain.Errorf(domain.ErrDetachRequired, domain.EntityAppointment, id, "appointment %s is linked to trip %s", id, current.TripID)
		}
		if in.Date != current.Date {
			if err := checkRideHistory(tx, current, in.Date); err != nil {
				return err
			}
		}
		next := current
		next.PatientID = in.PatientID
		next.DestinationID = in.DestinationID
		next.TreatmentID = in.TreatmentID
		next.Date = in.Date
		next.Time = in.Time
		next.Notes = in.Notes
		next.IsReturn = in.IsReturn
		if err := s.prepareAppointment(tx, &next); err != nil {
			return err
		}
		target := next
		if in.Status != "" {
			target.Status = in.Status
		}
		if err := s.guardAppointment(tx, target); err != nil {
			return err
		}
		var err error
		updated, err = tx.UpdateAppointment(id, func(a *Appointment) error {
			*a = next
			return nil
		})
		if err != nil {
			return err
		}
		if current.TripID != "" && in.Time != current.Time {
			if err := s.syncRowTime(tx, updated); err != nil {
				return err
			}
		}
		if in.Status != "" && in.Status != updated.Status {
			updated, err = s.applyStatus(tx, updated, in.Status, in.TripID)
		}
		return err
	})
	return updated, receipt, err
}

// ChangeAppointmentStatus moves an appointment through its lifecycle. Entering
// scheduled_trip requires tripID; leaving it detaches the appointment.
func (s *Service) ChangeAppointmentStatus(ctx context.Context, id string, to domain.AppointmentStatus, tripID string) (Appointment, Receipt, error) {
	var updated Appointment
	receipt, err := s.run(ctx, "appointment.status", func(tx Transaction) error {
		current, ok := tx.FindAppointment(id)
		if !ok {
			return domain.NotFound(domain.EntityAppointment, id)
		}
		var err error
		updated, err = s.applyStatus(tx, current, to, tripID)
		return err
	})
	return updated, receipt, err
}

// LinkAppointmentToTrip seats the appointment's patient on a trip and moves
// it to scheduled_trip. opts defaults to the patient's entitlements.
func (s *Service) LinkAppointmentToTrip(ctx context.Context, id, tripID string, opts *SuggestionOptions) (Appointment, Receipt, error) {
	var updated Appointment
	receipt, err := s.run(ctx, "appointment.link", func(tx Transaction) error {
		current, ok := tx.FindAppointment(id)
		if !ok {
			return domain.NotFound(domain.EntityAppointment, id)
		}
		var err error
		updated, err = s.link(tx, current, tripID, opts)
		return err
	})
	return updated, receipt, err
}

// ProposeDateChange validates a new date. A linked appointment gets a detach
// warning and nothing changes until the proposal is confirmed; an unlinked
// one is moved at once.
func (s *Service) ProposeDateChange(ctx context.Context, id, date string) (DateChangePlan, error) {
	var current Appointment
	err := s.view(ctx, func(v TransactionView) error {
		appt, ok := v.FindAppointment(id)
		if !ok {
			return domain.NotFound(domain.EntityAppointment, id)
		}
		current = appt
		if err := validDate(domain.EntityAppointment, id, date); err != nil {
			return err
		}
		if err := checkRideHistory(v, appt, date); err != nil {
			return err
		}
		moved := appt
		moved.Date = date
		if moved.Status == domain.AppointmentScheduledTrip {
			moved.Status = domain.AppointmentPending
		}
		if moved.Status.Active() {
			if err := s.checkNotRetroactive(domain.EntityAppointment, id, date); err != nil {
				return err
			}
		}
		return s.checkDuplicate(v, moved)
	})
	if err != nil {
		return DateChangePlan{}, err
	}
	var warnings []Warning
	if current.TripID != "" && current.Date != date {
		warnings = append(warnings, Warning{
			Kind:    domain.WarningDetach,
			Message: "changing the date removes " + current.PatientName + " from trip " + current.TripID,
			TripID:  current.TripID,
		})
	}
	var plan DateChangePlan
	proposal, err := settle(ctx, warnings, func(ctx context.Context) error {
		var err error
		plan.Appointment, plan.Receipt, err = s.CommitDateChange(ctx, id, date)
		return err
	})
	if err != nil {
		return DateChangePlan{}, err
	}
	plan.RequiresDetachConfirmation = len(warnings) > 0
	plan.Proposal = proposal
	return plan, nil
}

// CommitDateChange detaches the appointment from its trip, reverting it to
// pending, and moves it to date in one transaction.
func (s *Service) CommitDateChange(ctx context.Context, id, date string) (Appointment, Receipt, error) {
	var updated Appointment
	receipt, err := s.run(ctx, "appointment.date", func(tx Transaction) error {
		current, ok := tx.FindAppointment(id)
		if !ok {
			return domain.NotFound(domain.EntityAppointment, id)
		}
		if err := validDate(domain.EntityAppointment, id, date); err != nil {
			return err
		}
		if current.Date == date {
			updated = current
			return nil
		}
		if err := checkRideHistory(tx, current, date); err != nil {
			return err
		}
		if current.TripID != "" {
			if err := s.detach(tx, current); err != nil {
				return err
			}
		}
		next := current
		next.Date = date
		next.TripID = ""
		if next.Status == domain.AppointmentScheduledTrip {
			next.Status = domain.AppointmentPending
		}
		if err := s.guardAppointment(tx, next); err != nil {
			return err
		}
		var err error
		updated, err = tx.UpdateAppointment(id, func(a *Appointment) error {
			*a = next
			return nil
		})
		return err
	})
	return updated, receipt, err
}

// DeleteAppointment removes the appointment and its manifest rows.
func (s *Service) DeleteAppointment(ctx context.Context, id string) (Receipt, error) {
	return s.run(ctx, "appointment.delete", func(tx Transaction) error {
		current, ok := tx.FindAppointment(id)
		if !ok {
			return domain.NotFound(domain.EntityAppointment, id)
		}
		if current.TripID != "" {
			if err := s.detach(tx, current); err != nil {
				return err
			}
		}
		return tx.DeleteAppointment(id)
	})
}

// applyStatus runs one state machine transition inside tx.
func (s *Service) applyStatus(tx Transaction, appt Appointment, to domain.AppointmentStatus, tripID string) (Appointment, error) {
	if err := s.machine.Check(appt.ID, appt.Status, to); err != nil {
		return Appointment{}, err
	}
	if to == appt.Status {
		return appt, nil
	}
	if to == domain.AppointmentScheduledTrip {
		if tripID == "" {
			return Appointment{}, domain.Errorf(domain.ErrLinkage, domain.EntityAppointment, appt.ID, "scheduling appointment %s requires a trip", appt.ID)
		}
		return s.link(tx, appt, tripID, nil)
	}
	if to == domain.AppointmentCompleted {
		trip, ok := tx.FindTrip(appt.TripID)
		if !ok || trip.Status != domain.TripCompleted {
			return Appointment{}, domain.Errorf(domain.ErrIllegalTransition, domain.EntityAppointment, appt.ID, "appointment %s can only complete after its trip completes", appt.ID)
		}
	} else if appt.TripID != "" {
		if err := s.detach(tx, appt); err != nil {
			return Appointment{}, err
		}
	}
	next := appt
	next.Status = to
	next.TripID = ""
	if err := s.guardAppointment(tx, next); err != nil {
		return Appointment{}, err
	}
	return tx.UpdateAppointment(appt.ID, func(a *Appointment) error {
		a.Status = to
		a.TripID = ""
		return nil
	})
}

// link seats appt on tripID and marks it scheduled_trip.
func (s *Service) link(tx Transaction, appt Appointment, tripID string, opts *SuggestionOptions) (Appointment, error) {
	if appt.TripID == tripID && appt.Status == domain.AppointmentScheduledTrip {
		return appt, nil
	}
	if appt.TripID != "" {
		return Appointment{}, domain.Errorf(domain.ErrLinkage, domain.EntityAppointment, appt.ID, "appointment %s is already on trip %s", appt.ID, appt.TripID)
	}
	if err := s.machine.Check(appt.ID, appt.Status, domain.AppointmentScheduledTrip); err != nil {
		return Appointment{}, err
	}
	trip, ok := tx.FindTrip(tripID)
	if !ok {
		return Appointment{}, domain.NotFound(domain.EntityTrip, tripID)
	}
	if trip.Status.Terminal() {
		return Appointment{}, domain.Errorf(domain.ErrLinkage, domain.EntityTrip, tripID, "trip %s is %s", tripID, trip.Status)
	}
	if trip.Date != appt.Date {
		return Appointment{}, domain.Errorf(domain.ErrLinkage, domain.EntityTrip, tripID, "trip %s runs on %s, appointment %s is on %s", tripID, trip.Date, appt.ID, appt.Date)
	}
	if err := s.checkNotRetroactive(domain.EntityAppointment, appt.ID, appt.Date); err != nil {
		return Appointment{}, err
	}
	if _, dup := trip.PatientRow(appt.PatientID); dup {
		return Appointment{}, domain.Errorf(domain.ErrDuplicateInManifest, domain.EntityTrip, tripID, "patient %s is already on trip %s", appt.PatientName, tripID)
	}
	patient, ok := tx.FindPatient(appt.PatientID)
	if !ok {
		return Appointment{}, domain.NotFound(domain.EntityPatient, appt.PatientID)
	}
	options := defaultOptions(appt, patient)
	if opts != nil {
		options = *opts
	}
	if err := checkEntitlements(patient, options); err != nil {
		return Appointment{}, err
	}
	if check := s.capacity.Validate(trip.TotalSeats, trip.Passengers, options.Seats()); !check.OK {
		return Appointment{}, domain.Errorf(domain.ErrCapacityExceeded, domain.EntityTrip, tripID, "trip %s would carry %d of %d seats", tripID, check.Projected, check.Capacity)
	}
	rows := seatingFor(appt, patient, trip.Origin, trip.Destination, options).rows()
	if _, err := tx.UpdateTrip(tripID, func(t *Trip) error {
		t.Passengers = append(t.Passengers, rows...)
		return nil
	}); err != nil {
		return Appointment{}, err
	}
	return tx.UpdateAppointment(appt.ID, func(a *Appointment) error {
		a.Status = domain.AppointmentScheduledTrip
		a.TripID = tripID
		return nil
	})
}

// detach removes appt's rows from its trip. Terminal trips keep their
// manifest as history.
func (s *Service) detach(tx Transaction, appt Appointment) error {
	trip, ok := tx.FindTrip(appt.TripID)
	if !ok || trip.Status.Terminal() {
		return nil
	}
	if _, ok := trip.PatientRow(appt.PatientID); !ok {
		return nil
	}
	_, err := tx.UpdateTrip(trip.ID, func(t *Trip) error {
		t.Passengers = withoutPatient(t.Passengers, appt.PatientID)
		return nil
	})
	return err
}

// checkRideHistory refuses to move an appointment away from the date of a
// completed trip that lists it.
func checkRideHistory(v domain.RuleView, appt Appointment, date string) error {
	for _, trip := range v.ListTrips() {
		if trip.Status != domain.TripCompleted || trip.Date == date {
			continue
		}
		if lo.ContainsBy(trip.Passengers, func(p TripPassenger) bool { return p.AppointmentID == appt.ID }) {
			return domain.Errorf(domain.ErrIllegalTransition, domain.EntityAppointment, appt.ID, "appointment %s rode completed trip %s on %s", appt.ID, trip.ID, trip.Date)
		}
	}
	return nil
}

func (s *Service) syncRowTime(tx Transaction, appt Appointment) error {
	trip, ok := tx.FindTrip(appt.TripID)
	if !ok || trip.Status.Terminal() {
		return nil
	}
	_, err := tx.UpdateTrip(trip.ID, func(t *Trip) error {
		for i := range t.Passengers {
			row := &t.Passengers[i]
			if row.PatientID == appt.PatientID || row.RelatedPatientID == appt.PatientID {
				row.AppointmentTime = appt.Time
			}
		}
		return nil
	})
	return err
}

// prepareAppointment validates required fields and copies referenced names.
func (s *Service) prepareAppointment(tx Transaction, appt *Appointment) error {
	if appt.PatientID == "" {
		return domain.Errorf(domain.ErrValidation, domain.EntityAppointment, appt.ID, "appointment requires patient")
	}
	if err := validDate(domain.EntityAppointment, appt.ID, appt.Date); err != nil {
		return err
	}
	if appt.TreatmentID == "" && appt.DestinationID == "" {
		return domain.Errorf(domain.ErrValidation, domain.EntityAppointment, appt.ID, "appointment requires treatment or destination")
	}
	patient, ok := tx.FindPatient(appt.PatientID)
	if !ok {
		return domain.NotFound(domain.EntityPatient, appt.PatientID)
	}
	appt.PatientName = patient.Name
	appt.DestinationName, appt.TreatmentName = "", ""
	if appt.DestinationID != "" {
		dest, ok := tx.FindDestination(appt.DestinationID)
		if !ok {
			return domain.NotFound(domain.EntityDestination, appt.DestinationID)
		}
		appt.DestinationName = dest.Name
	}
	if appt.TreatmentID != "" {
		treatment, ok := tx.FindTreatmentType(appt.TreatmentID)
		if !ok {
			return domain.NotFound(domain.EntityTreatmentType, appt.TreatmentID)
		}
		appt.TreatmentName = treatment.Name
	}
	return nil
}

// guardAppointment applies the date and duplicate policies to active appointments.
func (s *Service) guardAppointment(v domain.RuleView, appt Appointment) error {
	if !appt.Status.Active() {
		return nil
	}
	if err := s.checkNotRetroactive(domain.EntityAppointment, appt.ID, appt.Date); err != nil {
		return err
	}
	return s.checkDuplicate(v, appt)
}

func (s *Service) checkDuplicate(v domain.RuleView, appt Appointment) error {
	if !appt.Status.Active() {
		return nil
	}
	if other, ok := findDuplicate(v, appt); ok {
		return domain.Errorf(domain.ErrDuplicateAppointment, domain.EntityAppointment, appt.ID, "patient %s already has appointment %s on %s for the same treatment or destination", appt.PatientName, other.ID, appt.Date)
	}
	return nil
}

func findDuplicate(v domain.RuleView, appt Appointment) (Appointment, bool) {
	for _, other := range v.ListAppointments() {
		if other.ID == appt.ID || other.PatientID != appt.PatientID || other.Date != appt.Date {
			continue
		}
		if other.Status == domain.AppointmentCancelled || other.Status == domain.AppointmentMissed {
			continue
		}
		sameTreatment := appt.TreatmentID != "" && other.TreatmentID == appt.TreatmentID
		sameDestination := appt.DestinationID != "" && other.DestinationID == appt.DestinationID
		if sameTreatment || sameDestination {
			return other, true
		}
	}
	return Appointment{}, false
}
