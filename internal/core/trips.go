package core

import (
	"context"

	"tfdcore/pkg/domain"
)

// TripDetails carries the editable header fields of a trip.
type TripDetails struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	TreatmentID string `json:"treatment_id"`
	VehicleID   string `json:"vehicle_id"`
	DriverID    string `json:"driver_id"`
	Notes       string `json:"notes"`
	Version     int64  `json:"version"`
}

// tripPlan is a validated trip ready to be written.
type tripPlan struct {
	header       Trip
	rows         []TripPassenger
	appointments []string
}

// CreateTrip stores a trip with its manifest and schedules every linked appointment.
func (s *Service) CreateTrip(ctx context.Context, details TripDetails, rows []TripPassenger) (Trip, Receipt, error) {
	var created Trip
	receipt, err := s.run(ctx, "trip.create", func(tx Transaction) error {
		plan, err := s.planTrip(tx, "", details, rows)
		if err != nil {
			return err
		}
		trip := plan.header
		trip.Passengers = plan.rows
		created, err = tx.CreateTrip(trip)
		if err != nil {
			return err
		}
		for _, apptID := range plan.appointments {
			if err := s.scheduleOnTrip(tx, apptID, created.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return created, receipt, err
}

// UpdateTrip replaces a trip's header and manifest. Appointments dropped from
// the manifest revert to pending; new ones are scheduled.
func (s *Service) UpdateTrip(ctx context.Context, id string, details TripDetails, rows []TripPassenger) (Trip, Receipt, error) {
	var updated Trip
	receipt, err := s.run(ctx, "trip.update", func(tx Transaction) error {
		current, ok := tx.FindTrip(id)
		if !ok {
			return domain.NotFound(domain.EntityTrip, id)
		}
		if current.Status.Terminal() {
			return domain.Errorf(domain.ErrIllegalTransition, domain.EntityTrip, id, "trip %s is %s and cannot be edited", id, current.Status)
		}
		if details.Version != 0 && details.Version != current.Version {
			return domain.Errorf(domain.ErrVersionConflict, domain.EntityTrip, id, "trip %s is at version %d, not %d", id, current.Version, details.Version)
		}
		plan, err := s.planTrip(tx, id, details, rows)
		if err != nil {
			return err
		}
		kept := make(map[string]struct{}, len(plan.appointments))
		for _, apptID := range plan.appointments {
			kept[apptID] = struct{}{}
		}
		for _, row := range current.Passengers {
			if row.IsCompanion || row.AppointmentID == "" {
				continue
			}
			if _, ok := kept[row.AppointmentID]; ok {
				continue
			}
			if err := s.revertToPending(tx, row.AppointmentID, id); err != nil {
				return err
			}
		}
		updated, err = tx.UpdateTrip(id, func(t *Trip) error {
			status := t.Status
			*t = plan.header
			t.Status = status
			t.Passengers = plan.rows
			return nil
		})
		if err != nil {
			return err
		}
		for _, apptID := range plan.appointments {
			if err := s.scheduleOnTrip(tx, apptID, id); err != nil {
				return err
			}
		}
		return nil
	})
	return updated, receipt, err
}

// DeleteTrip removes a trip and reverts its appointments to pending.
func (s *Service) DeleteTrip(ctx context.Context, id string) (Receipt, error) {
	return s.run(ctx, "trip.delete", func(tx Transaction) error {
		if _, ok := tx.FindTrip(id); !ok {
			return domain.NotFound(domain.EntityTrip, id)
		}
		if err := s.releaseAppointments(tx, id); err != nil {
			return err
		}
		return tx.DeleteTrip(id)
	})
}

// UpdateTripStatus moves a trip forward. Cancelling reverts its appointments
// to pending and keeps the manifest as history.
func (s *Service) UpdateTripStatus(ctx context.Context, id string, status domain.TripStatus) (Trip, Receipt, error) {
	var updated Trip
	receipt, err := s.run(ctx, "trip.status", func(tx Transaction) error {
		current, ok := tx.FindTrip(id)
		if !ok {
			return domain.NotFound(domain.EntityTrip, id)
		}
		if !status.Valid() {
			return domain.Errorf(domain.ErrValidation, domain.EntityTrip, id, "unknown trip status %q", status)
		}
		if status == current.Status {
			updated = current
			return nil
		}
		if current.Status.Terminal() || (current.Status == domain.TripBoarding && status == domain.TripScheduled) {
			return domain.Errorf(domain.ErrIllegalTransition, domain.EntityTrip, id, "cannot move trip %s from %s to %s", id, current.Status, status)
		}
		if status == domain.TripCancelled {
			if err := s.releaseAppointments(tx, id); err != nil {
				return err
			}
		}
		var err error
		updated, err = tx.UpdateTrip(id, func(t *Trip) error {
			t.Status = status
			if status == domain.TripCancelled {
				for i := range t.Passengers {
					t.Passengers[i].AppointmentID = ""
				}
			}
			return nil
		})
		return err
	})
	return updated, receipt, err
}

// SetPassengerStatus records boarding for one manifest row.
func (s *Service) SetPassengerStatus(ctx context.Context, tripID, rowID string, status domain.PassengerStatus) (Trip, Receipt, error) {
	var updated Trip
	receipt, err := s.run(ctx, "trip.passenger_status", func(tx Transaction) error {
		current, ok := tx.FindTrip(tripID)
		if !ok {
			return domain.NotFound(domain.EntityTrip, tripID)
		}
		if current.Status.Terminal() {
			return domain.Errorf(domain.ErrIllegalTransition, domain.EntityTrip, tripID, "trip %s is %s", tripID, current.Status)
		}
		if !status.Valid() {
			return domain.Errorf(domain.ErrValidation, domain.EntityTripPassenger, rowID, "unknown passenger status %q", status)
		}
		found := false
		var err error
		updated, err = tx.UpdateTrip(tripID, func(t *Trip) error {
			for i := range t.Passengers {
				if t.Passengers[i].ID == rowID {
					t.Passengers[i].Status = status
					found = true
				}
			}
			if !found {
				return domain.NotFound(domain.EntityTripPassenger, rowID)
			}
			return nil
		})
		return err
	})
	return updated, receipt, err
}

// planTrip runs the save validations in order and resolves display names.
func (s *Service) planTrip(tx Transaction, id string, details TripDetails, rows []TripPassenger) (tripPlan, error) {
	if details.Date == "" || details.VehicleID == "" || details.DriverID == "" {
		return tripPlan{}, domain.Errorf(domain.ErrValidation, domain.EntityTrip, id, "trip requires date, vehicle and driver")
	}
	if err := validDate(domain.EntityTrip, id, details.Date); err != nil {
		return tripPlan{}, err
	}
	vehicle, ok := tx.FindVehicle(details.VehicleID)
	if !ok {
		return tripPlan{}, domain.NotFound(domain.EntityVehicle, details.VehicleID)
	}
	if vehicle.Status != domain.VehicleStatusActive {
		return tripPlan{}, domain.Errorf(domain.ErrValidation, domain.EntityVehicle, vehicle.ID, "vehicle %s is in %s", vehicle.Plate, vehicle.Status)
	}
	driver, ok := tx.FindDriver(details.DriverID)
	if !ok {
		return tripPlan{}, domain.NotFound(domain.EntityDriver, details.DriverID)
	}
	if !driver.Active {
		return tripPlan{}, domain.Errorf(domain.ErrValidation, domain.EntityDriver, driver.ID, "driver %s is inactive", driver.Name)
	}
	if err := s.checkNotRetroactive(domain.EntityTrip, id, details.Date); err != nil {
		return tripPlan{}, err
	}
	if len(rows) == 0 {
		return tripPlan{}, domain.Errorf(domain.ErrValidation, domain.EntityTrip, id, "trip requires at least one passenger")
	}

	plan := tripPlan{rows: append([]TripPassenger(nil), rows...)}
	for i := range plan.rows {
		row := &plan.rows[i]
		patientID := row.PatientID
		if row.IsCompanion {
			patientID = row.RelatedPatientID
		}
		patient, ok := tx.FindPatient(patientID)
		if !ok {
			return tripPlan{}, domain.Errorf(domain.ErrValidation, domain.EntityTripPassenger, row.ID, "passenger row references unknown patient %q", patientID)
		}
		if row.IsCompanion {
			row.RelatedPatientName = patient.Name
			continue
		}
		row.PatientName = patient.Name
		if row.AppointmentID == "" {
			continue
		}
		appt, ok := tx.FindAppointment(row.AppointmentID)
		switch {
		case !ok:
			return tripPlan{}, domain.Errorf(domain.ErrLinkage, domain.EntityTripPassenger, row.ID, "appointment %s does not exist", row.AppointmentID)
		case appt.PatientID != row.PatientID:
			return tripPlan{}, domain.Errorf(domain.ErrLinkage, domain.EntityAppointment, appt.ID, "appointment %s belongs to another patient", appt.ID)
		case appt.Date != details.Date:
			return tripPlan{}, domain.Errorf(domain.ErrLinkage, domain.EntityAppointment, appt.ID, "appointment %s is on %s, trip is on %s", appt.ID, appt.Date, details.Date)
		case !appt.Status.Active():
			return tripPlan{}, domain.Errorf(domain.ErrLinkage, domain.EntityAppointment, appt.ID, "appointment %s is %s", appt.ID, appt.Status)
		case appt.TripID != "" && appt.TripID != id:
			return tripPlan{}, domain.Errorf(domain.ErrLinkage, domain.EntityAppointment, appt.ID, "appointment %s is already on trip %s", appt.ID, appt.TripID)
		}
		plan.appointments = append(plan.appointments, appt.ID)
	}
	if problems := manifestProblems(plan.rows); len(problems) > 0 {
		return tripPlan{}, domain.Errorf(domain.ErrValidation, domain.EntityTrip, id, "invalid manifest: %s", problems[0])
	}
	if occupied := s.capacity.ComputeOccupancy(plan.rows); occupied > vehicle.Capacity {
		return tripPlan{}, domain.Errorf(domain.ErrCapacityExceeded, domain.EntityTrip, id, "trip needs %d seats, vehicle %s has %d", occupied, vehicle.Plate, vehicle.Capacity)
	}

	plan.header = Trip{
		Base:         domain.Base{ID: id},
		Date:         details.Date,
		Time:         details.Time,
		Origin:       details.Origin,
		Destination:  details.Destination,
		TreatmentID:  details.TreatmentID,
		DriverID:     driver.ID,
		DriverName:   driver.Name,
		VehicleID:    vehicle.ID,
		VehicleModel: vehicle.Model,
		VehiclePlate: vehicle.Plate,
		TotalSeats:   vehicle.Capacity,
		Notes:        details.Notes,
	}
	if details.TreatmentID != "" {
		treatment, ok := tx.FindTreatmentType(details.TreatmentID)
		if !ok {
			return tripPlan{}, domain.NotFound(domain.EntityTreatmentType, details.TreatmentID)
		}
		plan.header.TreatmentName = treatment.Name
	}
	return plan, nil
}

func (s *Service) scheduleOnTrip(tx Transaction, apptID, tripID string) error {
	appt, ok := tx.FindAppointment(apptID)
	if !ok {
		return domain.NotFound(domain.EntityAppointment, apptID)
	}
	if appt.Status == domain.AppointmentScheduledTrip && appt.TripID == tripID {
		return nil
	}
	if err := s.machine.Check(apptID, appt.Status, domain.AppointmentScheduledTrip); err != nil {
		return err
	}
	_, err := tx.UpdateAppointment(apptID, func(a *Appointment) error {
		a.Status = domain.AppointmentScheduledTrip
		a.TripID = tripID
		return nil
	})
	return err
}

func (s *Service) revertToPending(tx Transaction, apptID, tripID string) error {
	appt, ok := tx.FindAppointment(apptID)
	if !ok || appt.TripID != tripID {
		return nil
	}
	_, err := tx.UpdateAppointment(apptID, func(a *Appointment) error {
		a.Status = domain.AppointmentPending
		a.TripID = ""
		return nil
	})
	return err
}

// releaseAppointments reverts every appointment linked to tripID.
func (s *Service) releaseAppointments(tx Transaction, tripID string) error {
	for _, appt := range tx.ListAppointments() {
		if appt.TripID != tripID {
			continue
		}
		if err := s.revertToPending(tx, appt.ID, tripID); err != nil {
			return err
		}
	}
	return nil
}
