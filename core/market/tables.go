package market

import "math"

// Relation is the sense of a constraint row.
type Relation string

const (
	LessOrEqual    Relation = "<="
	Equal          Relation = "="
	GreaterOrEqual Relation = ">="
)

// RHS is the right hand side of a constraint: either a fixed constant or a
// reference to another decision variable's solved value. Dynamic references are
// resolved once, at submission, by moving the referenced variable onto the lhs.
type RHS struct {
	constant float64
	variable VariableID
	dynamic  bool
}

// ConstantRHS builds a fixed right hand side.
func ConstantRHS(v float64) RHS { return RHS{constant: v} }

// VariableRHS builds a right hand side equal to the solved value of id.
func VariableRHS(id VariableID) RHS { return RHS{variable: id, dynamic: true} }

// Constant returns the fixed rhs value; zero for dynamic rhs.
func (r RHS) Constant() float64 { return r.constant }

// Variable returns the referenced variable id and whether the rhs is dynamic.
func (r RHS) Variable() (VariableID, bool) { return r.variable, r.dynamic }

// DecisionVariable is one column of the model. The semantic tags are only used
// for mapping variables into constraints and results; they never reach the
// solver. Value is populated after a successful solve.
type DecisionVariable struct {
	ID         VariableID
	LowerBound float64
	UpperBound float64

	Unit           string
	Service        string
	CapacityBand   int
	Interconnector string
	LossSegment    int

	Value float64
}

// Unbounded is the upper bound of a variable with no ceiling.
var Unbounded = math.Inf(1)

// Constraint is one row of the model. Slack is populated after a successful
// solve; Price only for market-facing families, on request.
type Constraint struct {
	ID       ConstraintID
	Relation Relation
	RHS      RHS

	Unit           string
	Service        string
	Region         string
	Set            string
	Interconnector string

	Slack float64
	Price float64
}

// ObjectiveTerm is one cost contribution to a variable. Multiple terms on the
// same variable sum at submission.
type ObjectiveTerm struct {
	Variable     VariableID
	Unit         string
	Service      string
	CapacityBand int
	Cost         float64
}

// Coefficient is a fully resolved sparse lhs entry.
type Coefficient struct {
	Variable   VariableID
	Constraint ConstraintID
	Value      float64
}

// UnitKey joins unit-level variable and constraint occurrences.
type UnitKey struct {
	Unit    string
	Service string
}

// RegionKey joins region-level variable and constraint occurrences.
type RegionKey struct {
	Region  string
	Service string
}

// VariableOccurrence records that a variable participates, with a coefficient,
// in any constraint carrying the same key.
type VariableOccurrence[K comparable] struct {
	Variable    VariableID
	Key         K
	Coefficient float64
}

// ConstraintOccurrence records that a constraint collects, with a coefficient,
// every variable carrying the same key.
type ConstraintOccurrence[K comparable] struct {
	Constraint  ConstraintID
	Key         K
	Coefficient float64
}

// joinOccurrences equality-joins constraint occurrences against variable
// occurrences on their shared key, emitting one sparse entry per match with
// the product of the two coefficients. The join is many-to-many: a regional
// demand constraint matches every energy variable in the region, and duplicate
// keys legitimately emit multiple rows.
func joinOccurrences[K comparable](cons []ConstraintOccurrence[K], vars []VariableOccurrence[K]) []Coefficient {
	index := make(map[K][]VariableOccurrence[K], len(vars))
	for _, v := range vars {
		index[v.Key] = append(index[v.Key], v)
	}
	var out []Coefficient
	for _, c := range cons {
		for _, v := range index[c.Key] {
			out = append(out, Coefficient{
				Variable:   v.Variable,
				Constraint: c.Constraint,
				Value:      c.Coefficient * v.Coefficient,
			})
		}
	}
	return out
}
