package market

// ViolationCost selects the objective penalty applied to deficit variables
// when a constraint family is made elastic. The zero value means the market
// ceiling price.
type ViolationCost struct {
	mode   int
	fixed  float64
	perSet map[string]float64
}

const (
	costCeiling = iota
	costFixed
	costPerSet
)

// CeilingViolationCost penalises violations at the market ceiling price.
func CeilingViolationCost() ViolationCost { return ViolationCost{mode: costCeiling} }

// FixedViolationCost penalises every violation at the same price.
func FixedViolationCost(v float64) ViolationCost { return ViolationCost{mode: costFixed, fixed: v} }

// PerSetViolationCost penalises each constraint set at its own price. Sets
// absent from the table are left hard.
func PerSetViolationCost(costs map[string]float64) ViolationCost {
	return ViolationCost{mode: costPerSet, perSet: costs}
}

// MakeConstraintsElastic softens a constraint family: each row gains a deficit
// variable, bounded [0, inf), that relaxes the row at the chosen violation
// cost. Deficits enter with +1 on ">=" rows and -1 on "<=" rows; "=" rows
// cannot be relaxed in one direction and are rejected. Calling again for the
// same family replaces the previous deficit block rather than stacking a
// second one.
func (s *Spot) MakeConstraintsElastic(family string, cost ViolationCost) error {
	rows, ok := s.constraints[family]
	if !ok {
		rows, ok = s.marketConstraints[family]
	}
	if !ok || len(rows) == 0 {
		return &BuildOrderError{Op: "elastic constraints", Missing: family + " constraints"}
	}
	for _, c := range rows {
		if c.Relation == Equal {
			return &UnsupportedElasticityError{Family: family}
		}
	}

	deficitFamily := family + deficitSuffix
	variables := make([]DecisionVariable, 0, len(rows))
	lhs := make([]Coefficient, 0, len(rows))
	terms := make([]ObjectiveTerm, 0, len(rows))
	for _, c := range rows {
		if cost.mode == costPerSet {
			if _, ok := cost.perSet[c.Set]; !ok {
				continue
			}
		}
		id := s.ids.TakeVariableIDs(1)
		variables = append(variables, DecisionVariable{
			ID: id, LowerBound: 0, UpperBound: Unbounded,
			Unit: c.Unit, Service: c.Service, Interconnector: c.Interconnector,
		})
		coeff := 1.0
		if c.Relation == LessOrEqual {
			coeff = -1.0
		}
		lhs = append(lhs, Coefficient{Variable: id, Constraint: c.ID, Value: coeff})

		price := s.ceilingPrice
		switch cost.mode {
		case costFixed:
			price = cost.fixed
		case costPerSet:
			price = cost.perSet[c.Set]
		}
		terms = append(terms, ObjectiveTerm{Variable: id, Unit: c.Unit, Service: c.Service, Cost: price})
	}

	s.variables[deficitFamily] = variables
	s.lhs[deficitFamily] = lhs
	s.objective[deficitFamily] = terms
	return nil
}
