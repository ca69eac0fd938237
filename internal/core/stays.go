package core

import (
	"context"

	"github.com/samber/lo"

	"tfdcore/pkg/domain"
)

// StayInput describes a support house check-in.
type StayInput struct {
	PatientID      string `json:"patient_id"`
	SupportHouseID string `json:"support_house_id"`
	HasCompanion   bool   `json:"has_companion"`
	CompanionName  string `json:"companion_name"`
	EntryDate      string `json:"entry_date"`
	EntryTime      string `json:"entry_time"`
	Notes          string `json:"notes"`
}

// CheckInStay lodges a patient at a support house.
func (s *Service) CheckInStay(ctx context.Context, in StayInput) (PatientStay, Receipt, error) {
	var out PatientStay
	receipt, err := s.run(ctx, "stay.check_in", func(tx Transaction) error {
		if err := validDate(domain.EntityPatientStay, "", in.EntryDate); err != nil {
			return err
		}
		patient, ok := tx.FindPatient(in.PatientID)
		if !ok {
			return domain.NotFound(domain.EntityPatient, in.PatientID)
		}
		if lo.ContainsBy(tx.ListPatientStays(), func(st PatientStay) bool {
			return st.PatientID == in.PatientID && st.Status == domain.StayActive
		}) {
			return domain.Errorf(domain.ErrValidation, domain.EntityPatientStay, "", "patient %s already has an active stay", patient.Name)
		}
		var err error
		out, err = tx.CreatePatientStay(PatientStay{
			PatientID:      patient.ID,
			PatientName:    patient.Name,
			SupportHouseID: in.SupportHouseID,
			HasCompanion:   in.HasCompanion,
			CompanionName:  lo.Ternary(in.HasCompanion, in.CompanionName, ""),
			EntryDate:      in.EntryDate,
			EntryTime:      in.EntryTime,
			Status:         domain.StayActive,
			Notes:          in.Notes,
		})
		return err
	})
	return out, receipt, err
}

// CheckOutStay closes an active stay. The exit date cannot precede entry.
func (s *Service) CheckOutStay(ctx context.Context, id, exitDate, exitTime string) (PatientStay, Receipt, error) {
	var out PatientStay
	receipt, err := s.run(ctx, "stay.check_out", func(tx Transaction) error {
		stay, ok := tx.FindPatientStay(id)
		if !ok {
			return domain.NotFound(domain.EntityPatientStay, id)
		}
		if stay.Status != domain.StayActive {
			return domain.Errorf(domain.ErrIllegalTransition, domain.EntityPatientStay, id, "stay %s is %s", id, stay.Status)
		}
		if err := validDate(domain.EntityPatientStay, id, exitDate); err != nil {
			return err
		}
		if exitDate < stay.EntryDate || (exitDate == stay.EntryDate && exitTime != "" && exitTime < stay.EntryTime) {
			return domain.Errorf(domain.ErrValidation, domain.EntityPatientStay, id, "exit %s %s precedes entry %s %s", exitDate, exitTime, stay.EntryDate, stay.EntryTime)
		}
		var err error
		out, err = tx.UpdatePatientStay(id, func(st *PatientStay) error {
			st.ExitDate = exitDate
			st.ExitTime = exitTime
			st.Status = domain.StayCompleted
			return nil
		})
		return err
	})
	return out, receipt, err
}

// CancelStay voids an active stay.
func (s *Service) CancelStay(ctx context.Context, id string) (PatientStay, Receipt, error) {
	var out PatientStay
	receipt, err := s.run(ctx, "stay.cancel", func(tx Transaction) error {
		stay, ok := tx.FindPatientStay(id)
		if !ok {
			return domain.NotFound(domain.EntityPatientStay, id)
		}
		if stay.Status != domain.StayActive {
			return domain.Errorf(domain.ErrIllegalTransition, domain.EntityPatientStay, id, "stay %s is %s", id, stay.Status)
		}
		var err error
		out, err = tx.UpdatePatientStay(id, func(st *PatientStay) error {
			st.Status = domain.StayCancelled
			return nil
		})
		return err
	})
	return out, receipt, err
}
