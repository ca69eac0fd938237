package core

import (
	"errors"
	"testing"

	"tfdcore/pkg/domain"
)

func TestStayLifecycle(t *testing.T) {
	f := newFixture(t)
	house, _, err := f.svc.SaveSupportHouse(f.ctx, SupportHouse{Name: "Casa de Apoio", Capacity: 2, DailyCost: 40})
	if err != nil {
		t.Fatalf("house: %v", err)
	}
	ana := f.patient(t, "Ana")

	if _, _, err := f.svc.CheckInStay(f.ctx, StayInput{PatientID: ana.ID, SupportHouseID: house.ID}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("entry date is required, got %v", err)
	}
	stay, _, err := f.svc.CheckInStay(f.ctx, StayInput{PatientID: ana.ID, SupportHouseID: house.ID, EntryDate: tripDate, EntryTime: "18:00", CompanionName: "ignored"})
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if stay.Status != domain.StayActive || stay.PatientName != "Ana" || stay.CompanionName != "" {
		t.Fatalf("unexpected stay %+v", stay)
	}
	if _, _, err := f.svc.CheckInStay(f.ctx, StayInput{PatientID: ana.ID, SupportHouseID: house.ID, EntryDate: tripDate}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("a second active stay must fail, got %v", err)
	}
	if _, _, err := f.svc.CheckOutStay(f.ctx, stay.ID, tripDate, "17:00"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("exit before entry must fail, got %v", err)
	}
	if _, err := f.svc.DeleteSupportHouse(f.ctx, house.ID); !errors.Is(err, domain.ErrLinkage) {
		t.Fatalf("house with stays must not be deleted, got %v", err)
	}
	done, _, err := f.svc.CheckOutStay(f.ctx, stay.ID, "2025-01-14", "")
	if err != nil {
		t.Fatalf("check out: %v", err)
	}
	if done.Status != domain.StayCompleted || done.ExitDate != "2025-01-14" {
		t.Fatalf("unexpected stay after check out %+v", done)
	}
	if _, _, err := f.svc.CancelStay(f.ctx, stay.ID); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("completed stays cannot be cancelled, got %v", err)
	}
	_, err = f.svc.Store().RunInTransaction(f.ctx, func(tx Transaction) error {
		_, err := tx.UpdatePatientStay(stay.ID, func(st *PatientStay) error {
			st.Status = domain.StayActive
			return nil
		})
		return err
	})
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("stay lifecycle must be enforced by rules, got %v", err)
	}

	again, _, err := f.svc.CheckInStay(f.ctx, StayInput{PatientID: ana.ID, SupportHouseID: house.ID, EntryDate: "2025-01-20"})
	if err != nil {
		t.Fatalf("new stay after check out: %v", err)
	}
	if cancelled, _, err := f.svc.CancelStay(f.ctx, again.ID); err != nil || cancelled.Status != domain.StayCancelled {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.DeleteSupportHouse(f.ctx, house.ID); !errors.Is(err, domain.ErrLinkage) {
		t.Fatalf("house with stay history must not be deleted, got %v", err)
	}
}

func TestSupportHouseOverCapacityWarns(t *testing.T) {
	f := newFixture(t)
	house, _, err := f.svc.SaveSupportHouse(f.ctx, SupportHouse{Name: "Casa", Capacity: 2})
	if err != nil {
		t.Fatalf("house: %v", err)
	}
	ana := f.patient(t, "Ana")
	bia := f.patient(t, "Bia")
	_, receipt, err := f.svc.CheckInStay(f.ctx, StayInput{PatientID: ana.ID, SupportHouseID: house.ID, EntryDate: tripDate, HasCompanion: true, CompanionName: "Maria"})
	if err != nil || len(receipt.Result.Warnings()) != 0 {
		t.Fatalf("first stay fits: %v %+v", err, receipt.Result)
	}
	_, receipt, err = f.svc.CheckInStay(f.ctx, StayInput{PatientID: bia.ID, SupportHouseID: house.ID, EntryDate: tripDate})
	if err != nil {
		t.Fatalf("over capacity stays are allowed: %v", err)
	}
	warnings := receipt.Result.Warnings()
	if len(warnings) != 1 || warnings[0].Rule != "support_house_capacity" || warnings[0].EntityID != house.ID {
		t.Fatalf("expected capacity warning, got %+v", warnings)
	}
}
