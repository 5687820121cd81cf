package market

import (
	"errors"
	"math"
	"testing"
)

func singleRegionUnits() []UnitInfo {
	return []UnitInfo{
		{Unit: "A", Region: "NSW"},
		{Unit: "B", Region: "NSW"},
	}
}

func TestSetUnitVolumeBids_RequiresUnitInfo(t *testing.T) {
	s := NewSpot()
	err := s.SetUnitVolumeBids([]Bid{{Unit: "A", Bands: []float64{10}}})
	var boe *BuildOrderError
	if !errors.As(err, &boe) {
		t.Fatalf("expected BuildOrderError, got %v", err)
	}
}

func TestSetUnitVolumeBids_ZeroBandConsumesNoID(t *testing.T) {
	s := NewSpot()
	if err := s.SetUnitInfo(singleRegionUnits()); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{{Unit: "A", Bands: []float64{20, 0, 5}}}); err != nil {
		t.Fatal(err)
	}
	vars := s.Variables("bids")
	if len(vars) != 2 {
		t.Fatalf("expected 2 variables for 2 non-zero bands, got %d", len(vars))
	}
	if vars[0].ID != 0 || vars[1].ID != 1 {
		t.Fatalf("zero band must not consume an id: %+v", vars)
	}
	if vars[1].CapacityBand != 3 {
		t.Fatalf("expected third band to keep its band number, got %d", vars[1].CapacityBand)
	}
	if vars[1].UpperBound != 5 {
		t.Fatalf("expected band volume as upper bound, got %v", vars[1].UpperBound)
	}
}

func TestSetUnitPriceBids_NonMonotonicLeavesModelUntouched(t *testing.T) {
	s := NewSpot()
	if err := s.SetUnitInfo(singleRegionUnits()); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{{Unit: "A", Bands: []float64{10, 10}}}); err != nil {
		t.Fatal(err)
	}
	err := s.SetUnitPriceBids([]Bid{{Unit: "A", Bands: []float64{50, 40}}})
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError for decreasing prices, got %v", err)
	}
	if terms := s.ObjectiveTerms("bids"); len(terms) != 0 {
		t.Fatalf("failed call must not touch the objective, got %d terms", len(terms))
	}
}

func TestSetUnitPriceBids_UncostedVolumeBidsRejected(t *testing.T) {
	s := NewSpot()
	if err := s.SetUnitInfo(singleRegionUnits()); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{
		{Unit: "A", Bands: []float64{10, 10}},
		{Unit: "B", Bands: []float64{20}},
	}); err != nil {
		t.Fatal(err)
	}
	// B's volume bids have no price row; they must not dispatch at zero cost.
	err := s.SetUnitPriceBids([]Bid{{Unit: "A", Bands: []float64{40, 50}}})
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError for uncosted unit, got %v", err)
	}
	if terms := s.ObjectiveTerms("bids"); len(terms) != 0 {
		t.Fatalf("failed call must not touch the objective, got %d terms", len(terms))
	}

	// A short price row leaves the higher volume bands uncosted too.
	err = s.SetUnitPriceBids([]Bid{
		{Unit: "A", Bands: []float64{40}},
		{Unit: "B", Bands: []float64{60}},
	})
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError for missing band, got %v", err)
	}
}

func TestSetUnitPriceBids_LossFactorRefersCosts(t *testing.T) {
	s := NewSpot()
	if err := s.SetUnitInfo([]UnitInfo{{Unit: "A", Region: "NSW", LossFactor: 0.9}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{{Unit: "A", Bands: []float64{10}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitPriceBids([]Bid{{Unit: "A", Bands: []float64{50}}}); err != nil {
		t.Fatal(err)
	}
	terms := s.ObjectiveTerms("bids")
	if len(terms) != 1 {
		t.Fatalf("expected one objective term, got %d", len(terms))
	}
	if math.Abs(terms[0].Cost-50.0/0.9) > 1e-12 {
		t.Fatalf("expected cost 50/0.9, got %v", terms[0].Cost)
	}
}

func TestSetUnitVolumeBids_DeterministicNumbering(t *testing.T) {
	build := func() []DecisionVariable {
		s := NewSpot()
		if err := s.SetUnitInfo(singleRegionUnits()); err != nil {
			t.Fatal(err)
		}
		// Input order deliberately differs from the natural key order.
		if err := s.SetUnitVolumeBids([]Bid{
			{Unit: "B", Bands: []float64{50, 30}},
			{Unit: "A", Bands: []float64{20, 20}},
		}); err != nil {
			t.Fatal(err)
		}
		return s.Variables("bids")
	}
	first, second := build(), build()
	if len(first) != len(second) {
		t.Fatalf("builds differ in size: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Unit != second[i].Unit {
			t.Fatalf("non-deterministic numbering at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
	if first[0].Unit != "A" {
		t.Fatalf("expected unit A numbered first, got %q", first[0].Unit)
	}
}

func TestSetUnitVolumeBids_TooManyBands(t *testing.T) {
	s := NewSpot()
	if err := s.SetUnitInfo(singleRegionUnits()); err != nil {
		t.Fatal(err)
	}
	bands := make([]float64, MaxBidBands+1)
	for i := range bands {
		bands[i] = 1
	}
	err := s.SetUnitVolumeBids([]Bid{{Unit: "A", Bands: bands}})
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}
