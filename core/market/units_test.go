package market

import (
	"errors"
	"math"
	"testing"
)

func bidReadySpot(t *testing.T, opts ...Option) *Spot {
	t.Helper()
	s := NewSpot(opts...)
	if err := s.SetUnitInfo(singleRegionUnits()); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{{Unit: "A", Bands: []float64{100}}}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSetUnitCapacityConstraints(t *testing.T) {
	s := bidReadySpot(t)
	if err := s.SetUnitCapacityConstraints([]CapacityLimit{{Unit: "A", Capacity: 80}}); err != nil {
		t.Fatal(err)
	}
	cons := s.Constraints("unit_capacity")
	if len(cons) != 1 {
		t.Fatalf("expected one constraint, got %d", len(cons))
	}
	if cons[0].Relation != LessOrEqual || cons[0].RHS.Constant() != 80 {
		t.Fatalf("unexpected constraint %+v", cons[0])
	}
}

func TestSetUnitCapacityConstraints_NegativeCapacity(t *testing.T) {
	s := bidReadySpot(t)
	err := s.SetUnitCapacityConstraints([]CapacityLimit{{Unit: "A", Capacity: -1}})
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
}

func TestSetUnitRampUpConstraints_IntervalScaling(t *testing.T) {
	s := bidReadySpot(t, WithDispatchInterval(30))
	if err := s.SetUnitRampUpConstraints([]RampUpLimit{
		{Unit: "A", InitialOutput: 20, RampUpRate: 60},
	}); err != nil {
		t.Fatal(err)
	}
	cons := s.Constraints("ramp_up")
	if got := cons[0].RHS.Constant(); math.Abs(got-50) > 1e-12 {
		t.Fatalf("expected rhs 20 + 60*0.5 = 50, got %v", got)
	}
}

func TestSetUnitRampDownConstraints_NegativeRHSNotClamped(t *testing.T) {
	s := bidReadySpot(t, WithDispatchInterval(60))
	if err := s.SetUnitRampDownConstraints([]RampDownLimit{
		{Unit: "A", InitialOutput: 10, RampDownRate: 50},
	}); err != nil {
		t.Fatal(err)
	}
	cons := s.Constraints("ramp_down")
	if got := cons[0].RHS.Constant(); got != -40 {
		t.Fatalf("expected rhs -40, got %v", got)
	}
	if cons[0].Relation != GreaterOrEqual {
		t.Fatalf("ramp down must be a floor, got %q", cons[0].Relation)
	}
}

func TestSetUnitCapacityConstraints_DuplicateUnit(t *testing.T) {
	s := bidReadySpot(t)
	err := s.SetUnitCapacityConstraints([]CapacityLimit{
		{Unit: "A", Capacity: 80},
		{Unit: "A", Capacity: 90},
	})
	var dke *DuplicateKeyError
	if !errors.As(err, &dke) {
		t.Fatalf("expected DuplicateKeyError, got %v", err)
	}
}
