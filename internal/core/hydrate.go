package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"tfdcore/internal/infra/persistence/memory"
	"tfdcore/pkg/domain"
)

// LoadSnapshot reads every persisted kind and reassembles trips from their
// header and passenger rows.
func LoadSnapshot(ctx context.Context, p domain.Persister) (memory.Snapshot, error) {
	snap := memory.Snapshot{
		Patients:       map[string]Patient{},
		TreatmentTypes: map[string]TreatmentType{},
		Destinations:   map[string]Destination{},
		Vehicles:       map[string]Vehicle{},
		Drivers:        map[string]Driver{},
		Appointments:   map[string]Appointment{},
		Trips:          map[string]Trip{},
		SupportHouses:  map[string]SupportHouse{},
		PatientStays:   map[string]PatientStay{},
	}
	var rows []TripPassenger
	for _, kind := range domain.PersistedKinds {
		raw, err := p.FetchAll(ctx, kind)
		if err != nil {
			return memory.Snapshot{}, fmt.Errorf("%w: fetch %s: %w", domain.ErrPersistence, kind, err)
		}
		var derr error
		switch kind {
		case domain.EntityPatient:
			derr = decodeInto(raw, snap.Patients, func(v Patient) string { return v.ID })
		case domain.EntityTreatmentType:
			derr = decodeInto(raw, snap.TreatmentTypes, func(v TreatmentType) string { return v.ID })
		case domain.EntityDestination:
			derr = decodeInto(raw, snap.Destinations, func(v Destination) string { return v.ID })
		case domain.EntityVehicle:
			derr = decodeInto(raw, snap.Vehicles, func(v Vehicle) string { return v.ID })
		case domain.EntityDriver:
			derr = decodeInto(raw, snap.Drivers, func(v Driver) string { return v.ID })
		case domain.EntityAppointment:
			derr = decodeInto(raw, snap.Appointments, func(v Appointment) string { return v.ID })
		case domain.EntityTrip:
			derr = decodeInto(raw, snap.Trips, func(v Trip) string { return v.ID })
		case domain.EntitySupportHouse:
			derr = decodeInto(raw, snap.SupportHouses, func(v SupportHouse) string { return v.ID })
		case domain.EntityPatientStay:
			derr = decodeInto(raw, snap.PatientStays, func(v PatientStay) string { return v.ID })
		case domain.EntityTripPassenger:
			for _, r := range raw {
				var row TripPassenger
				if err := json.Unmarshal(r, &row); err != nil {
					derr = err
					break
				}
				rows = append(rows, row)
			}
		}
		if derr != nil {
			return memory.Snapshot{}, fmt.Errorf("decode %s: %w", kind, derr)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TripID != rows[j].TripID {
			return rows[i].TripID < rows[j].TripID
		}
		return rows[i].Seq < rows[j].Seq
	})
	for _, row := range rows {
		trip, ok := snap.Trips[row.TripID]
		if !ok {
			continue
		}
		trip.Passengers = append(trip.Passengers, row)
		snap.Trips[row.TripID] = trip
	}
	return snap, nil
}

func decodeInto[T any](raw []json.RawMessage, into map[string]T, id func(T) string) error {
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return err
		}
		into[id(v)] = v
	}
	return nil
}

// Hydrate loads the persisted state into store, replacing what it holds.
func Hydrate(ctx context.Context, p domain.Persister, store *memory.Store) (memory.Snapshot, error) {
	snap, err := LoadSnapshot(ctx, p)
	if err != nil {
		return memory.Snapshot{}, err
	}
	store.ImportState(snap)
	return snap, nil
}

// PushSnapshot writes every record of snap through p. Records p holds that
// snap lacks are left in place.
func PushSnapshot(ctx context.Context, p domain.Persister, snap memory.Snapshot) error {
	upsertAll := func(kind EntityType, ids []string, get func(string) any) error {
		for _, id := range ids {
			if err := p.Upsert(ctx, kind, id, get(id)); err != nil {
				return fmt.Errorf("%w: %s %s: %w", domain.ErrPersistence, kind, id, err)
			}
		}
		return nil
	}
	steps := []struct {
		kind EntityType
		ids  []string
		get  func(string) any
	}{
		{domain.EntityDestination, sortedKeys(snap.Destinations), func(id string) any { return snap.Destinations[id] }},
		{domain.EntityTreatmentType, sortedKeys(snap.TreatmentTypes), func(id string) any { return snap.TreatmentTypes[id] }},
		{domain.EntityPatient, sortedKeys(snap.Patients), func(id string) any { return snap.Patients[id] }},
		{domain.EntityVehicle, sortedKeys(snap.Vehicles), func(id string) any { return snap.Vehicles[id] }},
		{domain.EntityDriver, sortedKeys(snap.Drivers), func(id string) any { return snap.Drivers[id] }},
		{domain.EntitySupportHouse, sortedKeys(snap.SupportHouses), func(id string) any { return snap.SupportHouses[id] }},
		{domain.EntityPatientStay, sortedKeys(snap.PatientStays), func(id string) any { return snap.PatientStays[id] }},
		{domain.EntityTrip, sortedKeys(snap.Trips), func(id string) any { return snap.Trips[id].Header() }},
		{domain.EntityAppointment, sortedKeys(snap.Appointments), func(id string) any { return snap.Appointments[id] }},
	}
	for _, step := range steps {
		if err := upsertAll(step.kind, step.ids, step.get); err != nil {
			return err
		}
		if step.kind != domain.EntityTrip {
			continue
		}
		for _, id := range step.ids {
			if err := p.ReplaceTripPassengers(ctx, id, snap.Trips[id].Passengers); err != nil {
				return fmt.Errorf("%w: trip %s passengers: %w", domain.ErrPersistence, id, err)
			}
		}
	}
	return nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
