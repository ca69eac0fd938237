package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"tfdcore/testutil"
)

func TestDomainHasNoInfrastructureImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.InternalImportForbidden, testutil.TransportImportForbidden), "domain must stay free of adapters")
}

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	if len(result.Warnings()) != 1 {
		t.Fatalf("expected one warning, got %+v", result.Warnings())
	}
	result.Merge(Result{Violations: []Violation{{Rule: "trip_capacity", Severity: SeverityBlock, Message: "over"}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if err.Error() != "transaction blocked by rules: over" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected capacity kind")
	}
	if errors.Is(err, ErrLinkage) {
		t.Fatalf("did not expect linkage kind")
	}
}

func TestRuleViolationErrorIgnoresWarnings(t *testing.T) {
	err := RuleViolationError{Result: Result{Violations: []Violation{{Rule: "trip_capacity", Severity: SeverityWarn}}}}
	if errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("warnings must not map to error kinds")
	}
	if err.Error() != "transaction blocked by rules" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestErrorWrapsKind(t *testing.T) {
	err := fmt.Errorf("save: %w", Errorf(ErrRetroactiveDate, EntityTrip, "t1", "trip date %s is before %s", "2025-01-01", "2025-01-02"))
	if !errors.Is(err, ErrRetroactiveDate) {
		t.Fatalf("expected retroactive kind in %v", err)
	}
	var derr *Error
	if !errors.As(err, &derr) || derr.ID != "t1" || derr.Entity != EntityTrip {
		t.Fatalf("expected domain error details, got %+v", derr)
	}
	nf := NotFound(EntityPatient, "p1")
	if !errors.Is(nf, ErrNotFound) || nf.Error() != "not found: patient p1 not found" {
		t.Fatalf("unexpected not found error %q", nf.Error())
	}
}

func TestStatusEnumerations(t *testing.T) {
	for _, s := range []AppointmentStatus{AppointmentPending, AppointmentScheduledTrip, AppointmentRescheduled} {
		if !s.Valid() || !s.Active() {
			t.Fatalf("expected %s to be a valid active status", s)
		}
	}
	for _, s := range []AppointmentStatus{AppointmentCompleted, AppointmentCancelled, AppointmentMissed} {
		if !s.Valid() || s.Active() {
			t.Fatalf("expected %s to be a valid resolved status", s)
		}
	}
	if AppointmentStatus("lost").Valid() {
		t.Fatalf("unknown status must be invalid")
	}
	if !TripCancelled.Terminal() || !TripCompleted.Terminal() || TripBoarding.Terminal() {
		t.Fatalf("unexpected terminal classification")
	}
	if LegMode("").Valid() || !LegOneWay.Valid() {
		t.Fatalf("unexpected leg validity")
	}
}

func TestPassengerSeatsAndLegs(t *testing.T) {
	row := TripPassenger{PatientID: "p1", HasCompanion: true, HasSecondCompanion: true, Leg: LegRoundTrip}
	if row.Seats() != 3 {
		t.Fatalf("expected 3 seats, got %d", row.Seats())
	}
	if !row.IsRoundTrip() || row.IsReturn() {
		t.Fatalf("unexpected leg flags")
	}
	companion := TripPassenger{IsCompanion: true, RelatedPatientID: "p1", Leg: LegReturn}
	if companion.Seats() != 0 || !companion.IsReturn() {
		t.Fatalf("companion rows are counted through their patient row")
	}
	trip := Trip{Passengers: []TripPassenger{companion, row}}
	if got, ok := trip.PatientRow("p1"); !ok || got.IsCompanion {
		t.Fatalf("expected patient row lookup to skip companions")
	}
	if len(trip.Header().Passengers) != 0 {
		t.Fatalf("header must drop passengers")
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected violation")
	}
	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected evaluation error")
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{}, fmt.Errorf("boom")
}
