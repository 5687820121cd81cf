package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Simplex is a Backend on gonum's dense simplex. SOS2 groups are not native
// to an LP, so Optimize first solves the plain relaxation and, only when a
// group comes back with weight spread across non-adjacent columns, re-solves
// with the weights restricted to each adjacent pair of columns in turn and
// keeps the cheapest feasible restriction. Duals are recovered by re-solving
// with a perturbed rhs, holding the chosen SOS2 restriction fixed so the
// perturbed model stays comparable.
type Simplex struct {
	tol  float64
	step float64

	bounds []Bounds
	costs  []float64
	rows   []Row
	groups []SOS2

	values    []float64
	objective float64
	windows   []int
	solved    bool
}

// NewSimplex returns a Simplex backend with default tolerances.
func NewSimplex() *Simplex {
	return &Simplex{tol: 1e-7, step: 1e-4, windows: nil}
}

// NewSimplexWithOptions returns a Simplex backend with the given feasibility
// tolerance and dual perturbation step. Non-positive values fall back to the
// defaults.
func NewSimplexWithOptions(tol, step float64) *Simplex {
	s := NewSimplex()
	if tol > 0 {
		s.tol = tol
	}
	if step > 0 {
		s.step = step
	}
	return s
}

func (s *Simplex) AddVariables(bounds []Bounds) { s.bounds = append(s.bounds, bounds...) }

func (s *Simplex) SetObjective(costs []float64) { s.costs = costs }

func (s *Simplex) AddConstraints(rows []Row) { s.rows = append(s.rows, rows...) }

func (s *Simplex) AddSOS2(groups []SOS2) { s.groups = append(s.groups, groups...) }

// lpSolve points to the function used to solve the standard form LP. It can be
// overridden in tests to simulate solver failures.
var lpSolve = lp.Simplex

// Optimize solves the model. It returns ErrInfeasible or ErrUnbounded when the
// model has no usable optimum.
func (s *Simplex) Optimize() error {
	if len(s.costs) != len(s.bounds) {
		return fmt.Errorf("solver: %d costs for %d variables", len(s.costs), len(s.bounds))
	}
	values, obj, err := s.solve(-1, 0, nil)
	if err != nil {
		return err
	}
	windows := make([]int, len(s.groups))
	for i := range windows {
		windows[i] = -1
	}
	if !s.satisfiesSOS2(values) {
		values, obj, windows, err = s.enumerateWindows()
		if err != nil {
			return err
		}
	}
	s.values, s.objective, s.windows = values, obj, windows
	s.solved = true
	return nil
}

// Objective returns the solved objective value.
func (s *Simplex) Objective() float64 { return s.objective }

// Value returns the solved value of one column.
func (s *Simplex) Value(column int) float64 { return s.values[column] }

// Dual returns the shadow price of one row: the objective change per unit of
// rhs. Degenerate rows where the perturbed model turns infeasible are priced
// from the opposite perturbation.
func (s *Simplex) Dual(row int) (float64, error) {
	if !s.solved {
		return 0, errors.New("solver: model not optimised")
	}
	if _, obj, err := s.solve(row, s.step, s.windows); err == nil {
		return (obj - s.objective) / s.step, nil
	}
	_, obj, err := s.solve(row, -s.step, s.windows)
	if err != nil {
		return 0, err
	}
	return (s.objective - obj) / s.step, nil
}

// solve builds and solves the LP in gonum's general form, with the rhs of one
// row optionally shifted and SOS2 groups optionally restricted to an adjacent
// window of columns. It returns the recovered primal values and objective.
func (s *Simplex) solve(shiftRow int, shift float64, windows []int) ([]float64, float64, error) {
	n := len(s.bounds)
	// lp.Convert needs at least one equality row, and lp.Simplex rejects an
	// all-zero row. Models without = rows get one artificial column pinned to
	// zero by a padding equality; it never enters the objective and is dropped
	// during value recovery.
	pad := true
	for _, r := range s.rows {
		if r.Relation == Equal {
			pad = false
			break
		}
	}
	m := n
	if pad {
		m = n + 1
	}
	upper := make([]float64, n)
	lower := make([]float64, n)
	for i, b := range s.bounds {
		lower[i], upper[i] = b.Lower, b.Upper
	}
	for g, w := range windows {
		if w < 0 {
			continue
		}
		for i, col := range s.groups[g].Columns {
			if i != w && i != w+1 {
				lower[col], upper[col] = 0, 0
			}
		}
	}

	var (
		ineq   [][]float64
		h      []float64
		eq     [][]float64
		b      []float64
		rowIdx int
	)
	dense := func(entries []Entry, scale float64) []float64 {
		out := make([]float64, m)
		for _, e := range entries {
			out[e.Column] += scale * e.Value
		}
		return out
	}
	for _, r := range s.rows {
		rhs := r.RHS
		if rowIdx == shiftRow {
			rhs += shift
		}
		switch r.Relation {
		case LessOrEqual:
			ineq = append(ineq, dense(r.Entries, 1))
			h = append(h, rhs)
		case GreaterOrEqual:
			ineq = append(ineq, dense(r.Entries, -1))
			h = append(h, -rhs)
		case Equal:
			eq = append(eq, dense(r.Entries, 1))
			b = append(b, rhs)
		default:
			return nil, 0, fmt.Errorf("solver: unknown relation %q", r.Relation)
		}
		rowIdx++
	}
	for i := 0; i < n; i++ {
		if !math.IsInf(upper[i], 1) {
			row := make([]float64, m)
			row[i] = 1
			ineq = append(ineq, row)
			h = append(h, upper[i])
		}
		if !math.IsInf(lower[i], -1) {
			row := make([]float64, m)
			row[i] = -1
			ineq = append(ineq, row)
			h = append(h, -lower[i])
		}
	}
	costs := s.costs
	if pad {
		row := make([]float64, m)
		row[n] = 1
		eq = append(eq, row)
		b = append(b, 0)
		costs = append(append(make([]float64, 0, m), s.costs...), 0)
	}

	g := mat.NewDense(len(ineq), m, nil)
	for i, row := range ineq {
		g.SetRow(i, row)
	}
	a := mat.NewDense(len(eq), m, nil)
	for i, row := range eq {
		a.SetRow(i, row)
	}

	cStd, aStd, bStd := lp.Convert(costs, g, h, a, b)
	obj, xStd, err := lpSolve(cStd, aStd, bStd, s.tol, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return nil, 0, ErrInfeasible
		case errors.Is(err, lp.ErrUnbounded):
			return nil, 0, ErrUnbounded
		default:
			return nil, 0, err
		}
	}
	// Convert splits each free variable into positive and negative parts. The
	// artificial padding column, when present, sits past index n-1 and is
	// simply not copied out.
	values := make([]float64, n)
	for i := range values {
		values[i] = xStd[i] - xStd[m+i]
	}
	return values, obj, nil
}

// satisfiesSOS2 reports whether every group's non-zero columns already form an
// adjacent pair or a single column.
func (s *Simplex) satisfiesSOS2(values []float64) bool {
	for _, g := range s.groups {
		first, last, count := -1, -1, 0
		for i, col := range g.Columns {
			if math.Abs(values[col]) > s.tol {
				if first < 0 {
					first = i
				}
				last = i
				count++
			}
		}
		if count > 2 || (count == 2 && last != first+1) {
			return false
		}
	}
	return true
}

// enumerateWindows searches the cross product of adjacent column pairs across
// all groups for the cheapest feasible restriction. Loss models carry a
// handful of break points per interconnector, so the search stays small.
func (s *Simplex) enumerateWindows() ([]float64, float64, []int, error) {
	var (
		bestValues  []float64
		bestObj     float64
		bestWindows []int
		found       bool
	)
	windows := make([]int, len(s.groups))
	var walk func(g int) error
	walk = func(g int) error {
		if g == len(s.groups) {
			values, obj, err := s.solve(-1, 0, windows)
			if errors.Is(err, ErrInfeasible) {
				return nil
			}
			if err != nil {
				return err
			}
			if !found || obj < bestObj {
				bestValues, bestObj = values, obj
				bestWindows = append([]int(nil), windows...)
				found = true
			}
			return nil
		}
		for w := 0; w < len(s.groups[g].Columns)-1; w++ {
			windows[g] = w
			if err := walk(g + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return nil, 0, nil, err
	}
	if !found {
		return nil, 0, nil, ErrInfeasible
	}
	return bestValues, bestObj, bestWindows, nil
}
