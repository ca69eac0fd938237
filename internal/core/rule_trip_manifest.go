package core

import (
	"context"
	"fmt"
	"sort"

	"tfdcore/pkg/domain"
)

// NewTripManifestRule blocks manifests whose companion rows disagree with the
// flags on their patient rows.
func NewTripManifestRule() domain.Rule {
	return tripManifestRule{}
}

type tripManifestRule struct{}

func (tripManifestRule) Name() string { return "trip_manifest" }

func (r tripManifestRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, id := range changedIDs(changes, domain.EntityTrip, tripID) {
		trip, ok := view.FindTrip(id)
		if !ok {
			continue
		}
		for _, msg := range manifestProblems(trip.Passengers) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("trip %s: %s", trip.ID, msg),
				Entity:   domain.EntityTrip,
				EntityID: trip.ID,
			})
		}
	}
	return res, nil
}

type companionKey struct {
	patientID string
	slot      int
}

// manifestProblems reports structural defects in a passenger list.
func manifestProblems(rows []TripPassenger) []string {
	var problems []string
	patients := make(map[string]TripPassenger)
	companions := make(map[companionKey]int)
	for _, row := range rows {
		if !row.Leg.Valid() {
			problems = append(problems, fmt.Sprintf("row %s has invalid leg %q", row.ID, row.Leg))
		}
		if !row.Status.Valid() {
			problems = append(problems, fmt.Sprintf("row %s has invalid status %q", row.ID, row.Status))
		}
		if row.IsCompanion {
			if row.RelatedPatientID == "" || (row.CompanionSlot != 1 && row.CompanionSlot != 2) {
				problems = append(problems, fmt.Sprintf("companion row %s lacks patient or slot", row.ID))
				continue
			}
			companions[companionKey{row.RelatedPatientID, row.CompanionSlot}]++
			continue
		}
		if row.PatientID == "" {
			problems = append(problems, fmt.Sprintf("row %s has no patient", row.ID))
			continue
		}
		if _, dup := patients[row.PatientID]; dup {
			problems = append(problems, fmt.Sprintf("patient %s appears twice", row.PatientID))
			continue
		}
		patients[row.PatientID] = row
	}
	for key, n := range companions {
		patient, ok := patients[key.patientID]
		if !ok {
			problems = append(problems, fmt.Sprintf("companion of %s has no patient row", key.patientID))
			continue
		}
		flagged := (key.slot == 1 && patient.HasCompanion) || (key.slot == 2 && patient.HasSecondCompanion)
		if !flagged || n > 1 {
			problems = append(problems, fmt.Sprintf("companion slot %d of %s does not match patient row", key.slot, key.patientID))
		}
	}
	for id, patient := range patients {
		if patient.HasCompanion && companions[companionKey{id, 1}] == 0 {
			problems = append(problems, fmt.Sprintf("patient %s is flagged with a companion but has no companion row", id))
		}
		if patient.HasSecondCompanion && companions[companionKey{id, 2}] == 0 {
			problems = append(problems, fmt.Sprintf("patient %s is flagged with a second companion but has no companion row", id))
		}
	}
	sort.Strings(problems)
	return problems
}
