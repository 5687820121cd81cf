package market

import (
	"errors"
	"math"
	"testing"
)

func TestTrapeziumSlopes(t *testing.T) {
	upper, lower := trapeziumSlopes(Trapezium{
		MaxAvailability: 10,
		EnablementMin:   20,
		LowBreakPoint:   40,
		HighBreakPoint:  80,
		EnablementMax:   100,
	})
	if math.Abs(upper-2.0) > 1e-12 {
		t.Fatalf("expected slope_upper (100-80)/10 = 2, got %v", upper)
	}
	if math.Abs(lower-2.0) > 1e-12 {
		t.Fatalf("expected slope_lower (40-20)/10 = 2, got %v", lower)
	}
}

func TestSetFCASMaxAvailability(t *testing.T) {
	s := NewSpot()
	if err := s.SetFCASMaxAvailability([]FCASAvailability{
		{Unit: "A", Service: "raise_6sec", MaxAvailability: 15},
	}); err != nil {
		t.Fatal(err)
	}
	cons := s.Constraints("fcas_max_availability")
	if len(cons) != 1 || cons[0].Relation != LessOrEqual || cons[0].RHS.Constant() != 15 {
		t.Fatalf("unexpected constraints %+v", cons)
	}
}

func TestSetJointRampingConstraints(t *testing.T) {
	s := NewSpot(WithDispatchInterval(60))
	offers := []RegulationOffer{
		{Unit: "A", Service: ServiceRaiseReg},
		{Unit: "A", Service: ServiceLowerReg},
	}
	limits := []RampLimits{{Unit: "A", InitialOutput: 50, RampUpRate: 20, RampDownRate: 30}}
	if err := s.SetJointRampingConstraints(offers, limits); err != nil {
		t.Fatal(err)
	}
	cons := s.Constraints("joint_ramping")
	if len(cons) != 2 {
		t.Fatalf("expected one constraint per regulation offer, got %d", len(cons))
	}
	byService := map[string]Constraint{}
	for _, c := range cons {
		byService[c.Service] = c
	}
	raise := byService[ServiceRaiseReg]
	if raise.Relation != LessOrEqual || raise.RHS.Constant() != 70 {
		t.Fatalf("unexpected raise constraint %+v", raise)
	}
	lower := byService[ServiceLowerReg]
	if lower.Relation != GreaterOrEqual || lower.RHS.Constant() != 20 {
		t.Fatalf("unexpected lower constraint %+v", lower)
	}
}

func TestSetJointRampingConstraints_RejectsContingencyService(t *testing.T) {
	s := NewSpot()
	err := s.SetJointRampingConstraints(
		[]RegulationOffer{{Unit: "A", Service: "raise_6sec"}},
		[]RampLimits{{Unit: "A"}},
	)
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
}

func TestSetJointRampingConstraints_MissingLimits(t *testing.T) {
	s := NewSpot()
	err := s.SetJointRampingConstraints(
		[]RegulationOffer{{Unit: "A", Service: ServiceRaiseReg}}, nil)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func trapeziumFixture() []Trapezium {
	return []Trapezium{{
		Unit:            "A",
		Service:         "raise_6sec",
		MaxAvailability: 10,
		EnablementMin:   20,
		LowBreakPoint:   40,
		HighBreakPoint:  80,
		EnablementMax:   100,
	}}
}

func countService(occ []ConstraintOccurrence[UnitKey], service string) int {
	n := 0
	for _, o := range occ {
		if o.Key.Service == service {
			n++
		}
	}
	return n
}

func TestSetJointCapacityConstraints_RegulationCrossTerms(t *testing.T) {
	s := NewSpot()
	if err := s.SetJointCapacityConstraints(trapeziumFixture()); err != nil {
		t.Fatal(err)
	}
	occ := s.unitConstraintMap["joint_capacity"]
	if got := countService(occ, ServiceRaiseReg); got != 1 {
		t.Fatalf("expected raise_reg cross-term on the upper bound, got %d", got)
	}
	if got := countService(occ, ServiceLowerReg); got != 1 {
		t.Fatalf("expected lower_reg cross-term on the lower bound, got %d", got)
	}
	if got := countService(occ, ServiceEnergy); got != 2 {
		t.Fatalf("expected energy on both bounds, got %d", got)
	}
}

func TestSetEnergyAndRegulationCapacityConstraints_NoCrossTerms(t *testing.T) {
	s := NewSpot()
	trapeziums := trapeziumFixture()
	trapeziums[0].Service = ServiceRaiseReg
	if err := s.SetEnergyAndRegulationCapacityConstraints(trapeziums); err != nil {
		t.Fatal(err)
	}
	occ := s.unitConstraintMap["energy_and_regulation_capacity"]
	// The trapezium's own service appears with its slope; no extra regulation
	// cross-terms are added.
	if got := countService(occ, ServiceRaiseReg); got != 2 {
		t.Fatalf("expected only the trapezium service terms, got %d", got)
	}
	if got := countService(occ, ServiceLowerReg); got != 0 {
		t.Fatalf("unexpected lower_reg cross-term")
	}
}

func TestSetJointCapacityConstraints_SlopeCoefficients(t *testing.T) {
	s := NewSpot()
	if err := s.SetJointCapacityConstraints(trapeziumFixture()); err != nil {
		t.Fatal(err)
	}
	cons := s.Constraints("joint_capacity")
	occ := s.unitConstraintMap["joint_capacity"]
	var upperID, lowerID ConstraintID
	for _, c := range cons {
		if c.Relation == LessOrEqual {
			upperID = c.ID
		} else {
			lowerID = c.ID
		}
	}
	for _, o := range occ {
		if o.Key.Service != "raise_6sec" {
			continue
		}
		switch o.Constraint {
		case upperID:
			if math.Abs(o.Coefficient-2.0) > 1e-12 {
				t.Fatalf("expected slope_upper 2 on the upper bound, got %v", o.Coefficient)
			}
		case lowerID:
			if math.Abs(o.Coefficient+2.0) > 1e-12 {
				t.Fatalf("expected -slope_lower on the lower bound, got %v", o.Coefficient)
			}
		}
	}
}

func TestSetJointCapacityConstraints_ZeroMaxAvailability(t *testing.T) {
	s := NewSpot()
	trapeziums := trapeziumFixture()
	trapeziums[0].MaxAvailability = 0
	err := s.SetJointCapacityConstraints(trapeziums)
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError for zero max_availability, got %v", err)
	}
}
