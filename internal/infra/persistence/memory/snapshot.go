package memory

// Snapshot captures a point-in-time clone of the store state. It is the
// document written by backups and read back on restore.
type Snapshot struct {
	Patients       map[string]Patient       `json:"patients"`
	TreatmentTypes map[string]TreatmentType `json:"treatment_types"`
	Destinations   map[string]Destination   `json:"destinations"`
	Vehicles       map[string]Vehicle       `json:"vehicles"`
	Drivers        map[string]Driver        `json:"drivers"`
	Appointments   map[string]Appointment   `json:"appointments"`
	Trips          map[string]Trip          `json:"trips"`
	SupportHouses  map[string]SupportHouse  `json:"support_houses"`
	PatientStays   map[string]PatientStay   `json:"patient_stays"`
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Patients:       c.patients,
		TreatmentTypes: c.treatments,
		Destinations:   c.destinations,
		Vehicles:       c.vehicles,
		Drivers:        c.drivers,
		Appointments:   c.appointments,
		Trips:          c.trips,
		SupportHouses:  c.houses,
		PatientStays:   c.stays,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		patients:     s.Patients,
		treatments:   s.TreatmentTypes,
		destinations: s.Destinations,
		vehicles:     s.Vehicles,
		drivers:      s.Drivers,
		appointments: s.Appointments,
		trips:        s.Trips,
		houses:       s.SupportHouses,
		stays:        s.PatientStays,
	}
	// clone tolerates nil maps and hands back fresh ones
	state = state.clone()
	for id, trip := range state.trips {
		occupied := 0
		for i := range trip.Passengers {
			trip.Passengers[i].TripID = id
			occupied += trip.Passengers[i].Seats()
		}
		trip.OccupiedSeats = occupied
		state.trips[id] = trip
	}
	return state
}

// ExportState clones the current store state for backups.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot. Rules are
// not evaluated; derived trip fields are recomputed.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// Counts reports the number of records per collection.
func (s Snapshot) Counts() map[string]int {
	return map[string]int{
		"patients":        len(s.Patients),
		"treatment_types": len(s.TreatmentTypes),
		"destinations":    len(s.Destinations),
		"vehicles":        len(s.Vehicles),
		"drivers":         len(s.Drivers),
		"appointments":    len(s.Appointments),
		"trips":           len(s.Trips),
		"support_houses":  len(s.SupportHouses),
		"patient_stays":   len(s.PatientStays),
	}
}
