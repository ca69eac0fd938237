package core

import (
	"context"
	"fmt"

	"tfdcore/pkg/domain"
)

// NewSupportHouseCapacityRule warns when active stays exceed a house's bed count.
func NewSupportHouseCapacityRule() domain.Rule {
	return supportHouseCapacityRule{}
}

type supportHouseCapacityRule struct{}

func (supportHouseCapacityRule) Name() string { return "support_house_capacity" }

func (r supportHouseCapacityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := make(map[string]struct{})
	for _, c := range changes {
		if stay, ok := c.After.(PatientStay); ok && c.Entity == domain.EntityPatientStay {
			touched[stay.SupportHouseID] = struct{}{}
		}
	}
	res := domain.Result{}
	if len(touched) == 0 {
		return res, nil
	}
	occupancy := make(map[string]int)
	for _, stay := range view.ListPatientStays() {
		if stay.Status != domain.StayActive {
			continue
		}
		occupancy[stay.SupportHouseID]++
		if stay.HasCompanion {
			occupancy[stay.SupportHouseID]++
		}
	}
	for _, house := range view.ListSupportHouses() {
		if _, ok := touched[house.ID]; !ok || house.Capacity <= 0 {
			continue
		}
		if count := occupancy[house.ID]; count > house.Capacity {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("support house %s (%s) over capacity: %d/%d beds", house.Name, house.ID, count, house.Capacity),
				Entity:   domain.EntitySupportHouse,
				EntityID: house.ID,
			})
		}
	}
	return res, nil
}
