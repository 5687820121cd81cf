package market

import (
	"errors"
	"testing"
)

func TestSetFCASRequirementsConstraints_SharedSetConstraint(t *testing.T) {
	s := NewSpot()
	if err := s.SetFCASRequirementsConstraints([]FCASRequirement{
		{Set: "mainland", Service: "raise_6sec", Region: "NSW", Volume: 30},
		{Set: "mainland", Service: "raise_6sec", Region: "VIC", Volume: 30},
	}); err != nil {
		t.Fatal(err)
	}
	cons := s.marketConstraints[familyFCAS]
	if len(cons) != 1 {
		t.Fatalf("regions of one set share a constraint, got %d", len(cons))
	}
	if cons[0].RHS.Constant() != 30 {
		t.Fatalf("expected volume 30, got %v", cons[0].RHS.Constant())
	}
	if len(s.regionConstraintMap[familyFCAS]) != 2 {
		t.Fatalf("expected one occurrence per region row")
	}
}

func TestSetFCASRequirementsConstraints_ConflictingRelations(t *testing.T) {
	s := NewSpot()
	err := s.SetFCASRequirementsConstraints([]FCASRequirement{
		{Set: "mainland", Service: "raise_6sec", Region: "NSW", Volume: 30, Relation: GreaterOrEqual},
		{Set: "mainland", Service: "raise_6sec", Region: "VIC", Volume: 30, Relation: LessOrEqual},
	})
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
}

func TestSetFCASRequirementsConstraints_ConflictingVolumes(t *testing.T) {
	s := NewSpot()
	err := s.SetFCASRequirementsConstraints([]FCASRequirement{
		{Set: "mainland", Service: "raise_6sec", Region: "NSW", Volume: 30},
		{Set: "mainland", Service: "raise_6sec", Region: "VIC", Volume: 45},
	})
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
}
