package solver

import "errors"

// Relation is the sense of a constraint row.
type Relation string

const (
	LessOrEqual    Relation = "<="
	Equal          Relation = "="
	GreaterOrEqual Relation = ">="
)

// Bounds is the closed interval of one decision variable. Use math.Inf for
// unbounded sides.
type Bounds struct {
	Lower float64
	Upper float64
}

// Entry is one sparse coefficient of a constraint row.
type Entry struct {
	Column int
	Value  float64
}

// Row is one constraint of the model.
type Row struct {
	Relation Relation
	RHS      float64
	Entries  []Entry
}

// SOS2 declares an ordered group of columns of which at most two may be
// non-zero, and if two, they must be adjacent.
type SOS2 struct {
	Columns []int
}

// Backend is the linear programming interface the market model drives. The
// model is populated column and row wise, optimised once, then queried for
// primal values and, per row on demand, dual prices.
type Backend interface {
	AddVariables(bounds []Bounds)
	SetObjective(costs []float64)
	AddConstraints(rows []Row)
	AddSOS2(groups []SOS2)
	Optimize() error
	Objective() float64
	Value(column int) float64
	Dual(row int) (float64, error)
}

// ErrInfeasible indicates the model has no feasible solution.
var ErrInfeasible = errors.New("solver: model infeasible")

// ErrUnbounded indicates the objective can decrease without limit.
var ErrUnbounded = errors.New("solver: model unbounded")
