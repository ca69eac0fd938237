package core

import (
	"context"

	"github.com/samber/lo"

	"tfdcore/pkg/domain"
)

// SavePatient creates the patient when ID is empty and replaces it otherwise.
func (s *Service) SavePatient(ctx context.Context, p Patient) (Patient, Receipt, error) {
	var out Patient
	receipt, err := s.run(ctx, "patient.save", func(tx Transaction) error {
		if p.AllowsSecondCompanion && !p.AllowsCompanion {
			return domain.Errorf(domain.ErrValidation, domain.EntityPatient, p.ID, "a second companion requires the first")
		}
		var err error
		out, err = save(p.ID, p.Version, domain.EntityPatient, tx.FindPatient, tx.CreatePatient, tx.UpdatePatient, p)
		return err
	})
	return out, receipt, err
}

// DeletePatient removes a patient with no appointments or trip rows.
func (s *Service) DeletePatient(ctx context.Context, id string) (Receipt, error) {
	return s.run(ctx, "patient.delete", func(tx Transaction) error {
		if lo.ContainsBy(tx.ListAppointments(), func(a Appointment) bool { return a.PatientID == id }) {
			return inUse(domain.EntityPatient, id, "appointments")
		}
		for _, trip := range tx.ListTrips() {
			if lo.ContainsBy(trip.Passengers, func(p TripPassenger) bool { return p.PatientID == id || p.RelatedPatientID == id }) {
				return inUse(domain.EntityPatient, id, "trip "+trip.ID)
			}
		}
		if lo.ContainsBy(tx.ListPatientStays(), func(st PatientStay) bool { return st.PatientID == id }) {
			return inUse(domain.EntityPatient, id, "support house stays")
		}
		return tx.DeletePatient(id)
	})
}

// SaveVehicle creates or replaces a vehicle.
func (s *Service) SaveVehicle(ctx context.Context, v Vehicle) (Vehicle, Receipt, error) {
	var out Vehicle
	receipt, err := s.run(ctx, "vehicle.save", func(tx Transaction) error {
		var err error
		out, err = save(v.ID, v.Version, domain.EntityVehicle, tx.FindVehicle, tx.CreateVehicle, tx.UpdateVehicle, v)
		return err
	})
	return out, receipt, err
}

// DeleteVehicle removes a vehicle not assigned to an open trip.
func (s *Service) DeleteVehicle(ctx context.Context, id string) (Receipt, error) {
	return s.run(ctx, "vehicle.delete", func(tx Transaction) error {
		if lo.ContainsBy(tx.ListTrips(), func(t Trip) bool { return t.VehicleID == id && !t.Status.Terminal() }) {
			return inUse(domain.EntityVehicle, id, "open trips")
		}
		return tx.DeleteVehicle(id)
	})
}

// SaveDriver creates or replaces a driver.
func (s *Service) SaveDriver(ctx context.Context, d Driver) (Driver, Receipt, error) {
	var out Driver
	receipt, err := s.run(ctx, "driver.save", func(tx Transaction) error {
		var err error
		out, err = save(d.ID, d.Version, domain.EntityDriver, tx.FindDriver, tx.CreateDriver, tx.UpdateDriver, d)
		return err
	})
	return out, receipt, err
}

// DeleteDriver removes a driver not assigned to an open trip.
func (s *Service) DeleteDriver(ctx context.Context, id string) (Receipt, error) {
	return s.run(ctx, "driver.delete", func(tx Transaction) error {
		if lo.ContainsBy(tx.ListTrips(), func(t Trip) bool { return t.DriverID == id && !t.Status.Terminal() }) {
			return inUse(domain.EntityDriver, id, "open trips")
		}
		return tx.DeleteDriver(id)
	})
}

// SaveDestination creates or replaces a destination.
func (s *Service) SaveDestination(ctx context.Context, d Destination) (Destination, Receipt, error) {
	var out Destination
	receipt, err := s.run(ctx, "destination.save", func(tx Transaction) error {
		var err error
		out, err = save(d.ID, d.Version, domain.EntityDestination, tx.FindDestination, tx.CreateDestination, tx.UpdateDestination, d)
		return err
	})
	return out, receipt, err
}

// DeleteDestination removes an unreferenced destination.
func (s *Service) DeleteDestination(ctx context.Context, id string) (Receipt, error) {
	return s.run(ctx, "destination.delete", func(tx Transaction) error {
		if lo.ContainsBy(tx.ListAppointments(), func(a Appointment) bool { return a.DestinationID == id }) {
			return inUse(domain.EntityDestination, id, "appointments")
		}
		if lo.ContainsBy(tx.ListTreatmentTypes(), func(t TreatmentType) bool { return t.DefaultDestinationID == id }) {
			return inUse(domain.EntityDestination, id, "treatment defaults")
		}
		return tx.DeleteDestination(id)
	})
}

// SaveTreatmentType creates or replaces a treatment type.
func (s *Service) SaveTreatmentType(ctx context.Context, t TreatmentType) (TreatmentType, Receipt, error) {
	var out TreatmentType
	receipt, err := s.run(ctx, "treatment_type.save", func(tx Transaction) error {
		if t.DefaultDestinationID != "" {
			if _, ok := tx.FindDestination(t.DefaultDestinationID); !ok {
				return domain.NotFound(domain.EntityDestination, t.DefaultDestinationID)
			}
		}
		var err error
		out, err = save(t.ID, t.Version, domain.EntityTreatmentType, tx.FindTreatmentType, tx.CreateTreatmentType, tx.UpdateTreatmentType, t)
		return err
	})
	return out, receipt, err
}

// DeleteTreatmentType removes a treatment type no appointment uses.
func (s *Service) DeleteTreatmentType(ctx context.Context, id string) (Receipt, error) {
	return s.run(ctx, "treatment_type.delete", func(tx Transaction) error {
		if lo.ContainsBy(tx.ListAppointments(), func(a Appointment) bool { return a.TreatmentID == id }) {
			return inUse(domain.EntityTreatmentType, id, "appointments")
		}
		return tx.DeleteTreatmentType(id)
	})
}

// SaveSupportHouse creates or replaces a support house.
func (s *Service) SaveSupportHouse(ctx context.Context, h SupportHouse) (SupportHouse, Receipt, error) {
	var out SupportHouse
	receipt, err := s.run(ctx, "support_house.save", func(tx Transaction) error {
		if h.Capacity < 0 || h.DailyCost < 0 {
			return domain.Errorf(domain.ErrValidation, domain.EntitySupportHouse, h.ID, "capacity and daily cost cannot be negative")
		}
		var err error
		out, err = save(h.ID, h.Version, domain.EntitySupportHouse, tx.FindSupportHouse, tx.CreateSupportHouse, tx.UpdateSupportHouse, h)
		return err
	})
	return out, receipt, err
}

// DeleteSupportHouse removes a house no stay has ever used.
func (s *Service) DeleteSupportHouse(ctx context.Context, id string) (Receipt, error) {
	return s.run(ctx, "support_house.delete", func(tx Transaction) error {
		if lo.ContainsBy(tx.ListPatientStays(), func(st PatientStay) bool { return st.SupportHouseID == id }) {
			return inUse(domain.EntitySupportHouse, id, "patient stays")
		}
		return tx.DeleteSupportHouse(id)
	})
}

// ListPatients returns the patient registry.
func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	return list(ctx, s, TransactionView.ListPatients)
}

// ListVehicles returns the fleet.
func (s *Service) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	return list(ctx, s, TransactionView.ListVehicles)
}

// ListDrivers returns every driver.
func (s *Service) ListDrivers(ctx context.Context) ([]Driver, error) {
	return list(ctx, s, TransactionView.ListDrivers)
}

// ListDestinations returns every destination.
func (s *Service) ListDestinations(ctx context.Context) ([]Destination, error) {
	return list(ctx, s, TransactionView.ListDestinations)
}

// ListTreatmentTypes returns every treatment type.
func (s *Service) ListTreatmentTypes(ctx context.Context) ([]TreatmentType, error) {
	return list(ctx, s, TransactionView.ListTreatmentTypes)
}

// ListSupportHouses returns every support house.
func (s *Service) ListSupportHouses(ctx context.Context) ([]SupportHouse, error) {
	return list(ctx, s, TransactionView.ListSupportHouses)
}

// ListPatientStays returns every stay.
func (s *Service) ListPatientStays(ctx context.Context) ([]PatientStay, error) {
	return list(ctx, s, TransactionView.ListPatientStays)
}

func list[T any](ctx context.Context, s *Service, fn func(TransactionView) []T) ([]T, error) {
	var out []T
	err := s.view(ctx, func(v TransactionView) error {
		out = fn(v)
		return nil
	})
	return out, err
}

// save dispatches to create or a version-checked replace.
func save[T any](id string, version int64, entity EntityType, find func(string) (T, bool), create func(T) (T, error), update func(string, func(*T) error) (T, error), v T) (T, error) {
	if id == "" {
		return create(v)
	}
	current, ok := find(id)
	if !ok {
		return create(v)
	}
	if version != 0 && version != versionOf(current) {
		var zero T
		return zero, domain.Errorf(domain.ErrVersionConflict, entity, id, "%s %s is at version %d, not %d", entity, id, versionOf(current), version)
	}
	return update(id, func(dst *T) error {
		*dst = v
		return nil
	})
}

func versionOf(v any) int64 {
	switch r := v.(type) {
	case Patient:
		return r.Version
	case Vehicle:
		return r.Version
	case Driver:
		return r.Version
	case Destination:
		return r.Version
	case TreatmentType:
		return r.Version
	case SupportHouse:
		return r.Version
	}
	return 0
}

func inUse(entity EntityType, id, by string) error {
	return domain.Errorf(domain.ErrLinkage, entity, id, "%s %s is referenced by %s", entity, id, by)
}
