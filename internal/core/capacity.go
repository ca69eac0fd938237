package core

import (
	"fmt"

	"github.com/samber/lo"

	"tfdcore/pkg/domain"
)

// CapacityCheck is the outcome of projecting extra seats onto a manifest.
type CapacityCheck struct {
	OK        bool `json:"ok"`
	Projected int  `json:"projected"`
	Capacity  int  `json:"capacity"`
	Overflow  int  `json:"overflow"`
}

// Warning converts a failed check into a confirmable capacity warning.
func (c CapacityCheck) Warning() (Warning, bool) {
	if c.OK {
		return Warning{}, false
	}
	return Warning{
		Kind:      domain.WarningCapacity,
		Message:   fmt.Sprintf("vehicle capacity exceeded: %d/%d seats", c.Projected, c.Capacity),
		Projected: c.Projected,
		Capacity:  c.Capacity,
	}, true
}

// CapacityValidator counts seats on a manifest.
type CapacityValidator struct{}

// ComputeOccupancy sums the seats taken by patient rows and their companions.
func (CapacityValidator) ComputeOccupancy(rows []TripPassenger) int {
	return lo.SumBy(rows, func(p TripPassenger) int { return p.Seats() })
}

// Validate projects incoming seats onto rows. A capacity of zero means no
// vehicle is selected yet and always passes.
func (v CapacityValidator) Validate(capacity int, rows []TripPassenger, incoming int) CapacityCheck {
	projected := v.ComputeOccupancy(rows) + incoming
	check := CapacityCheck{OK: true, Projected: projected, Capacity: capacity}
	if capacity <= 0 {
		return check
	}
	if projected > capacity {
		check.OK = false
		check.Overflow = projected - capacity
	}
	return check
}
