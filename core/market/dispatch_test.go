package market

import (
	"errors"
	"math"
	"testing"

	"github.com/kilianp07/spotmarket/core/solver"
)

func almost(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func dispatchRow(t *testing.T, rows []UnitDispatchRow, unit, service string) UnitDispatchRow {
	t.Helper()
	for _, r := range rows {
		if r.Unit == unit && r.Service == service {
			return r
		}
	}
	t.Fatalf("no dispatch row for %s/%s in %+v", unit, service, rows)
	return UnitDispatchRow{}
}

func TestDispatch_TwoUnitBidStack(t *testing.T) {
	s := NewSpot()
	if err := s.SetUnitInfo(singleRegionUnits()); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{
		{Unit: "A", Bands: []float64{20, 20, 5}},
		{Unit: "B", Bands: []float64{50, 30, 10}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitPriceBids([]Bid{
		{Unit: "A", Bands: []float64{50, 100, 100}},
		{Unit: "B", Bands: []float64{100, 130, 150}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDemandConstraints([]RegionDemand{{Region: "NSW", Demand: 100}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Dispatch(solver.NewSimplex()); err != nil {
		t.Fatal(err)
	}

	dispatch, err := s.UnitDispatch()
	if err != nil {
		t.Fatal(err)
	}
	a := dispatchRow(t, dispatch, "A", ServiceEnergy)
	b := dispatchRow(t, dispatch, "B", ServiceEnergy)
	if !almost(a.Dispatch, 45, 1e-4) || !almost(b.Dispatch, 55, 1e-4) {
		t.Fatalf("expected A=45 B=55, got A=%v B=%v", a.Dispatch, b.Dispatch)
	}

	prices, err := s.EnergyPrices()
	if err != nil {
		t.Fatal(err)
	}
	if len(prices) != 1 || !almost(prices[0].Price, 130, 1e-2) {
		t.Fatalf("expected clearing price 130, got %+v", prices)
	}
}

func TestDispatch_InequalityOnlyModel(t *testing.T) {
	// A model with no demand row carries only <= / >= constraints; it must
	// still dispatch instead of tripping on the solver's standard-form padding.
	s := NewSpot()
	if err := s.SetUnitInfo([]UnitInfo{{Unit: "A", Region: "NSW"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{{Unit: "A", Bands: []float64{100}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitPriceBids([]Bid{{Unit: "A", Bands: []float64{10}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitCapacityConstraints([]CapacityLimit{{Unit: "A", Capacity: 60}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Dispatch(solver.NewSimplex()); err != nil {
		t.Fatal(err)
	}
	dispatch, err := s.UnitDispatch()
	if err != nil {
		t.Fatal(err)
	}
	if a := dispatchRow(t, dispatch, "A", ServiceEnergy); !almost(a.Dispatch, 0, 1e-6) {
		t.Fatalf("nothing forces dispatch, expected 0, got %v", a.Dispatch)
	}
}

func TestDispatch_LosslessInterconnector(t *testing.T) {
	s := NewSpot()
	if err := s.SetUnitInfo([]UnitInfo{{Unit: "A", Region: "NSW"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{{Unit: "A", Bands: []float64{100}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitPriceBids([]Bid{{Unit: "A", Bands: []float64{80}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDemandConstraints([]RegionDemand{
		{Region: "NSW", Demand: 0},
		{Region: "VIC", Demand: 90},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetInterconnectors([]Interconnector{{
		Interconnector: "NSW-VIC", FromRegion: "NSW", ToRegion: "VIC", Min: -100, Max: 100,
	}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Dispatch(solver.NewSimplex()); err != nil {
		t.Fatal(err)
	}

	dispatch, err := s.UnitDispatch()
	if err != nil {
		t.Fatal(err)
	}
	if a := dispatchRow(t, dispatch, "A", ServiceEnergy); !almost(a.Dispatch, 90, 1e-4) {
		t.Fatalf("expected dispatch 90, got %v", a.Dispatch)
	}
	flows, err := s.InterconnectorFlows()
	if err != nil {
		t.Fatal(err)
	}
	if len(flows) != 1 || !almost(flows[0].Flow, 90, 1e-4) {
		t.Fatalf("expected flow 90 into VIC, got %+v", flows)
	}
}

func TestDispatch_LossInterpolation(t *testing.T) {
	s := NewSpot()
	if err := s.SetUnitInfo([]UnitInfo{{Unit: "A", Region: "NSW"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{{Unit: "A", Bands: []float64{200}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitPriceBids([]Bid{{Unit: "A", Bands: []float64{50}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDemandConstraints([]RegionDemand{
		{Region: "NSW", Demand: 0},
		{Region: "VIC", Demand: 30},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetInterconnectors([]Interconnector{{
		Interconnector: "NSW-VIC", FromRegion: "NSW", ToRegion: "VIC", Min: 0, Max: 120,
	}}); err != nil {
		t.Fatal(err)
	}
	lossFn := func(f float64) float64 { return f * f / 1000 }
	if err := s.SetInterconnectorLosses(
		[]LossModel{{Interconnector: "NSW-VIC", FromRegionLossShare: 0.5, LossFunction: lossFn}},
		[]BreakPoint{
			{Interconnector: "NSW-VIC", LossSegment: 1, BreakPoint: 0},
			{Interconnector: "NSW-VIC", LossSegment: 2, BreakPoint: 60},
			{Interconnector: "NSW-VIC", LossSegment: 3, BreakPoint: 120},
		},
	); err != nil {
		t.Fatal(err)
	}
	if err := s.Dispatch(solver.NewSimplex()); err != nil {
		t.Fatal(err)
	}

	flows, err := s.InterconnectorFlows()
	if err != nil {
		t.Fatal(err)
	}
	// The flow sits strictly between the first two break points, so losses are
	// the chord of the loss function over [0, 60]: 0.06 per MW of flow.
	// VIC balance: flow - 0.5*losses = 30.
	wantFlow := 30.0 / (1.0 - 0.5*0.06)
	if !almost(flows[0].Flow, wantFlow, 1e-3) {
		t.Fatalf("expected flow %v, got %v", wantFlow, flows[0].Flow)
	}
	if !almost(flows[0].Losses, 0.06*wantFlow, 1e-3) {
		t.Fatalf("expected interpolated losses %v, got %v", 0.06*wantFlow, flows[0].Losses)
	}
	for _, w := range s.Variables("interpolation_weights") {
		if w.LossSegment == 3 && math.Abs(w.Value) > 1e-6 {
			t.Fatalf("weight beyond the active segment must be zero, got %v", w.Value)
		}
	}
}

func TestDispatch_JointEnergyAndFCAS(t *testing.T) {
	s := NewSpot()
	if err := s.SetUnitInfo([]UnitInfo{{Unit: "A", Region: "NSW"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{
		{Unit: "A", Bands: []float64{100}},
		{Unit: "A", Service: "raise_6sec", Bands: []float64{20}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitPriceBids([]Bid{
		{Unit: "A", Bands: []float64{50}},
		{Unit: "A", Service: "raise_6sec", Bands: []float64{10}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDemandConstraints([]RegionDemand{{Region: "NSW", Demand: 60}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetFCASRequirementsConstraints([]FCASRequirement{
		{Set: "nsw_raise", Service: "raise_6sec", Region: "NSW", Volume: 20},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetFCASMaxAvailability([]FCASAvailability{
		{Unit: "A", Service: "raise_6sec", MaxAvailability: 20},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetJointCapacityConstraints([]Trapezium{{
		Unit: "A", Service: "raise_6sec",
		MaxAvailability: 20, EnablementMin: 0, LowBreakPoint: 0, HighBreakPoint: 80, EnablementMax: 100,
	}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Dispatch(solver.NewSimplex()); err != nil {
		t.Fatal(err)
	}

	dispatch, err := s.UnitDispatch()
	if err != nil {
		t.Fatal(err)
	}
	energy := dispatchRow(t, dispatch, "A", ServiceEnergy)
	raise := dispatchRow(t, dispatch, "A", "raise_6sec")
	if !almost(energy.Dispatch, 60, 1e-4) || !almost(raise.Dispatch, 20, 1e-4) {
		t.Fatalf("expected energy 60 raise 20, got %v/%v", energy.Dispatch, raise.Dispatch)
	}

	fcasPrices, err := s.FCASPrices()
	if err != nil {
		t.Fatal(err)
	}
	if len(fcasPrices) != 1 || !almost(fcasPrices[0].Price, 10, 1e-2) {
		t.Fatalf("expected raise price 10, got %+v", fcasPrices)
	}

	availability, err := s.FCASAvailability()
	if err != nil {
		t.Fatal(err)
	}
	if len(availability) != 1 || !almost(availability[0].Availability, 20, 1e-4) {
		t.Fatalf("max availability binds, expected availability 20, got %+v", availability)
	}
}

func TestDispatch_ElasticGenericConstraintViolation(t *testing.T) {
	s := NewSpot()
	if err := s.SetUnitInfo([]UnitInfo{{Unit: "A", Region: "NSW"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{{Unit: "A", Bands: []float64{100}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitPriceBids([]Bid{{Unit: "A", Bands: []float64{10}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDemandConstraints([]RegionDemand{{Region: "NSW", Demand: 80}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetGenericConstraints([]GenericConstraint{{Set: "cap", Relation: LessOrEqual, RHS: 50}}); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkUnitsToGenericConstraints([]UnitCoefficient{
		{Set: "cap", Unit: "A", Service: ServiceEnergy, Coefficient: 1.0},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.MakeConstraintsElastic("generic", FixedViolationCost(500)); err != nil {
		t.Fatal(err)
	}
	if err := s.Dispatch(solver.NewSimplex()); err != nil {
		t.Fatal(err)
	}

	deficits := s.Variables("generic_deficit")
	if len(deficits) != 1 || !almost(deficits[0].Value, 30, 1e-4) {
		t.Fatalf("expected deficit 30 above the cap, got %+v", deficits)
	}
	prices, err := s.EnergyPrices()
	if err != nil {
		t.Fatal(err)
	}
	// The marginal MW costs its bid price plus the violation cost.
	if !almost(prices[0].Price, 510, 1e-2) {
		t.Fatalf("expected price 510, got %+v", prices)
	}
}

func TestDispatch_Infeasible(t *testing.T) {
	s := NewSpot()
	if err := s.SetUnitInfo([]UnitInfo{{Unit: "A", Region: "NSW"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{{Unit: "A", Bands: []float64{100}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitPriceBids([]Bid{{Unit: "A", Bands: []float64{10}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitCapacityConstraints([]CapacityLimit{{Unit: "A", Capacity: 50}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDemandConstraints([]RegionDemand{{Region: "NSW", Demand: 80}}); err != nil {
		t.Fatal(err)
	}
	err := s.Dispatch(solver.NewSimplex())
	var ime *InfeasibleModelError
	if !errors.As(err, &ime) {
		t.Fatalf("expected InfeasibleModelError, got %v", err)
	}
}

type dualCountingBackend struct {
	*solver.Simplex
	dualCalls int
}

func (b *dualCountingBackend) Dual(row int) (float64, error) {
	b.dualCalls++
	return b.Simplex.Dual(row)
}

func TestDispatch_PricesHarvestedOnRequest(t *testing.T) {
	s := NewSpot()
	if err := s.SetUnitInfo([]UnitInfo{{Unit: "A", Region: "NSW"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitVolumeBids([]Bid{{Unit: "A", Bands: []float64{100}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnitPriceBids([]Bid{{Unit: "A", Bands: []float64{40}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDemandConstraints([]RegionDemand{{Region: "NSW", Demand: 60}}); err != nil {
		t.Fatal(err)
	}
	backend := &dualCountingBackend{Simplex: solver.NewSimplex()}
	if err := s.Dispatch(backend); err != nil {
		t.Fatal(err)
	}
	if backend.dualCalls != 0 {
		t.Fatalf("dispatch must not pay for duals up front, got %d calls", backend.dualCalls)
	}

	prices, err := s.EnergyPrices()
	if err != nil {
		t.Fatal(err)
	}
	if len(prices) != 1 || !almost(prices[0].Price, 40, 1e-2) {
		t.Fatalf("expected price 40, got %+v", prices)
	}
	if backend.dualCalls != 1 {
		t.Fatalf("expected one dual per demand row, got %d", backend.dualCalls)
	}
	if _, err := s.EnergyPrices(); err != nil {
		t.Fatal(err)
	}
	if backend.dualCalls != 1 {
		t.Fatalf("repeat calls must reuse the harvested price, got %d", backend.dualCalls)
	}
}

func TestDispatch_RequiresBids(t *testing.T) {
	s := NewSpot()
	err := s.Dispatch(solver.NewSimplex())
	var boe *BuildOrderError
	if !errors.As(err, &boe) {
		t.Fatalf("expected BuildOrderError, got %v", err)
	}
}
