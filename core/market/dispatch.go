package market

import (
	"errors"
	"sort"

	"github.com/kilianp07/spotmarket/core/solver"
)

// Dispatch assembles every builder table into one linear program, drives the
// solver backend and back-fills solved values and slacks into the tables.
// Market prices are harvested lazily by the price getters. Constraint lhs terms are resolved here, against the variables
// that exist now: joins run over the complete tables, so builder call order
// within the declared prerequisites does not affect the model.
func (s *Spot) Dispatch(backend solver.Backend) error {
	if err := s.requireEnergyBids("dispatch"); err != nil {
		return err
	}

	variables := s.collectVariables()
	column := make(map[VariableID]int, len(variables))
	bounds := make([]solver.Bounds, len(variables))
	for i, v := range variables {
		column[v.ID] = i
		bounds[i] = solver.Bounds{Lower: v.LowerBound, Upper: v.UpperBound}
	}

	costs := make([]float64, len(variables))
	for _, terms := range s.objective {
		for _, t := range terms {
			costs[column[t.Variable]] += t.Cost
		}
	}

	constraints := s.collectConstraints()
	rowOf := make(map[ConstraintID]int, len(constraints))
	for i, c := range constraints {
		rowOf[c.ID] = i
	}

	coefficients := s.assembleCoefficients()
	entries := make([][]solver.Entry, len(constraints))
	for _, co := range coefficients {
		row, ok := rowOf[co.Constraint]
		if !ok {
			continue
		}
		entries[row] = append(entries[row], solver.Entry{Column: column[co.Variable], Value: co.Value})
	}

	rows := make([]solver.Row, len(constraints))
	for i, c := range constraints {
		row := solver.Row{Relation: solver.Relation(c.Relation), Entries: entries[i]}
		if ref, dynamic := c.RHS.Variable(); dynamic {
			// Move the referenced variable onto the lhs: lhs - ref = 0.
			row.Entries = append(row.Entries, solver.Entry{Column: column[ref], Value: -1.0})
		} else {
			row.RHS = c.RHS.Constant()
		}
		rows[i] = row
	}

	groups := make([]solver.SOS2, 0, len(s.sos2))
	for _, g := range s.sos2 {
		cols := make([]int, len(g.Variables))
		for i, id := range g.Variables {
			cols[i] = column[id]
		}
		groups = append(groups, solver.SOS2{Columns: cols})
	}

	s.log.Debugw("dispatching market", map[string]any{
		"variables":   len(variables),
		"constraints": len(constraints),
		"sos2_groups": len(groups),
	})

	backend.AddVariables(bounds)
	backend.SetObjective(costs)
	backend.AddConstraints(rows)
	backend.AddSOS2(groups)
	if err := backend.Optimize(); err != nil {
		if errors.Is(err, solver.ErrInfeasible) || errors.Is(err, solver.ErrUnbounded) {
			return &InfeasibleModelError{Err: err}
		}
		return err
	}

	for _, v := range variables {
		v.Value = backend.Value(column[v.ID])
	}
	for i, c := range constraints {
		c.Slack = s.slack(c, entries[i], backend)
	}
	// Duals cost re-solves; the backend and row map are kept so the price
	// getters can harvest them on request.
	s.solveBackend = backend
	s.solveRows = rowOf
	s.priced = make(map[string]bool)
	s.dispatched = true
	s.variableCount = len(variables)
	s.constraintCount = len(constraints)
	s.objectiveValue = backend.Objective()
	s.log.Infof("market dispatched: objective %.2f", s.objectiveValue)
	return nil
}

// ModelSize returns the variable and constraint counts of the last dispatch.
func (s *Spot) ModelSize() (variables, constraints int) {
	return s.variableCount, s.constraintCount
}

// ObjectiveValue returns the objective of the last dispatch.
func (s *Spot) ObjectiveValue() (float64, error) {
	if err := s.requireDispatch("objective value"); err != nil {
		return 0, err
	}
	return s.objectiveValue, nil
}

// priceFamily back-fills the shadow prices of one market constraint family on
// first request.
func (s *Spot) priceFamily(family string) error {
	if s.priced[family] || s.solveBackend == nil {
		return nil
	}
	table := s.marketConstraints[family]
	for i := range table {
		price, err := s.solveBackend.Dual(s.solveRows[table[i].ID])
		if err != nil {
			return err
		}
		table[i].Price = price
	}
	s.priced[family] = true
	return nil
}

// slack is the distance of a row from binding. Equality rows, dynamic rhs rows
// included, have no slack.
func (s *Spot) slack(c *Constraint, entries []solver.Entry, backend solver.Backend) float64 {
	if c.Relation == Equal {
		return 0
	}
	var activity float64
	for _, e := range entries {
		activity += e.Value * backend.Value(e.Column)
	}
	if c.Relation == LessOrEqual {
		return c.RHS.Constant() - activity
	}
	return activity - c.RHS.Constant()
}

// collectVariables gathers pointers to every decision variable across all
// families, ordered by id.
func (s *Spot) collectVariables() []*DecisionVariable {
	var out []*DecisionVariable
	for _, table := range s.variables {
		for i := range table {
			out = append(out, &table[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// collectConstraints gathers pointers to every constraint row, market-facing
// families included, ordered by id.
func (s *Spot) collectConstraints() []*Constraint {
	var out []*Constraint
	for _, table := range s.constraints {
		for i := range table {
			out = append(out, &table[i])
		}
	}
	for _, table := range s.marketConstraints {
		for i := range table {
			out = append(out, &table[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// assembleCoefficients resolves every lhs term: the unit and regional
// occurrence joins, the late-bound generic links and the fully specified
// blocks written by the loss and elastic builders.
func (s *Spot) assembleCoefficients() []Coefficient {
	var unitVars []VariableOccurrence[UnitKey]
	for _, table := range s.unitVariableMap {
		unitVars = append(unitVars, table...)
	}
	var regionVars []VariableOccurrence[RegionKey]
	for _, table := range s.regionVariableMap {
		regionVars = append(regionVars, table...)
	}

	var out []Coefficient
	for _, cons := range s.unitConstraintMap {
		out = append(out, joinOccurrences(cons, unitVars)...)
	}
	for _, cons := range s.regionConstraintMap {
		out = append(out, joinOccurrences(cons, regionVars)...)
	}
	out = append(out, s.genericCoefficients(unitVars, regionVars)...)
	for _, block := range s.lhs {
		out = append(out, block...)
	}
	return out
}

// genericCoefficients resolves the generic constraint links by set name.
// Sets name either a generic constraint or an FCAS requirement constraint;
// links against sets that never materialised are dropped.
func (s *Spot) genericCoefficients(unitVars []VariableOccurrence[UnitKey], regionVars []VariableOccurrence[RegionKey]) []Coefficient {
	setIDs := make(map[string]ConstraintID)
	for _, c := range s.constraints[familyGeneric] {
		setIDs[c.Set] = c.ID
	}
	for _, c := range s.marketConstraints[familyFCAS] {
		if c.Set != "" {
			setIDs[c.Set] = c.ID
		}
	}

	var unitCons []ConstraintOccurrence[UnitKey]
	for _, l := range s.genericUnitLinks {
		id, ok := setIDs[l.Set]
		if !ok {
			continue
		}
		unitCons = append(unitCons, ConstraintOccurrence[UnitKey]{
			Constraint: id, Key: UnitKey{Unit: l.Unit, Service: l.Service}, Coefficient: l.Coefficient,
		})
	}
	var regionCons []ConstraintOccurrence[RegionKey]
	for _, l := range s.genericRegionLinks {
		id, ok := setIDs[l.Set]
		if !ok {
			continue
		}
		regionCons = append(regionCons, ConstraintOccurrence[RegionKey]{
			Constraint: id, Key: RegionKey{Region: l.Region, Service: l.Service}, Coefficient: l.Coefficient,
		})
	}

	out := joinOccurrences(unitCons, unitVars)
	out = append(out, joinOccurrences(regionCons, regionVars)...)

	flows := make(map[string]VariableID)
	for _, v := range s.variables[familyInterconnectors] {
		flows[v.Interconnector] = v.ID
	}
	for _, l := range s.genericInterLinks {
		id, ok := setIDs[l.Set]
		if !ok {
			continue
		}
		flow, ok := flows[l.Interconnector]
		if !ok {
			continue
		}
		out = append(out, Coefficient{Variable: flow, Constraint: id, Value: l.Coefficient})
	}
	return out
}
