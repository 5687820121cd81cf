package market

import (
	"fmt"
	"sort"
)

// SetFCASMaxAvailability creates the constraints that cap each FCAS service at
// the max availability declared in its trapezium: service <= max_availability.
func (s *Spot) SetFCASMaxAvailability(availability []FCASAvailability) error {
	seen := make(map[UnitKey]bool, len(availability))
	for _, a := range availability {
		if err := uniqueUnitService("fcas_max_availability", seen, a.Unit, a.Service); err != nil {
			return err
		}
		if err := nonNegative("fcas_max_availability", a.Unit+"/"+a.Service, "max_availability", a.MaxAvailability); err != nil {
			return err
		}
	}

	rows := make([]FCASAvailability, len(availability))
	copy(rows, availability)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Unit != rows[j].Unit {
			return rows[i].Unit < rows[j].Unit
		}
		return rows[i].Service < rows[j].Service
	})

	constraints := make([]Constraint, 0, len(rows))
	occurrences := make([]ConstraintOccurrence[UnitKey], 0, len(rows))
	for _, a := range rows {
		id := s.ids.TakeConstraintIDs(1)
		constraints = append(constraints, Constraint{
			ID: id, Relation: LessOrEqual, RHS: ConstantRHS(a.MaxAvailability), Unit: a.Unit, Service: a.Service,
		})
		occurrences = append(occurrences, ConstraintOccurrence[UnitKey]{
			Constraint: id, Key: UnitKey{Unit: a.Unit, Service: a.Service}, Coefficient: 1.0,
		})
	}

	s.constraints[familyFCASMaxAvailability] = constraints
	s.unitConstraintMap[familyFCASMaxAvailability] = occurrences
	return nil
}

// SetJointRampingConstraints keeps the joint provision of energy and
// regulation within each unit's ramping capability. Only units actually
// offering a regulation service are constrained:
//
//	energy + raise_reg <= initial_output + ramp_up_rate * interval/60
//	energy - lower_reg >= initial_output - ramp_down_rate * interval/60
func (s *Spot) SetJointRampingConstraints(offers []RegulationOffer, limits []RampLimits) error {
	seenOffers := make(map[UnitKey]bool, len(offers))
	for _, o := range offers {
		if err := uniqueUnitService("regulation_units", seenOffers, o.Unit, o.Service); err != nil {
			return err
		}
		if o.Service != ServiceRaiseReg && o.Service != ServiceLowerReg {
			return &DomainError{Table: "regulation_units", Key: o.Unit,
				Msg: fmt.Sprintf("service must be %q or %q, got %q", ServiceRaiseReg, ServiceLowerReg, o.Service)}
		}
	}
	ramp := make(map[string]RampLimits, len(limits))
	seenLimits := make(map[string]bool, len(limits))
	for _, l := range limits {
		if err := uniqueUnits("unit_limits", seenLimits, l.Unit); err != nil {
			return err
		}
		if err := realValue("unit_limits", l.Unit, "initial_output", l.InitialOutput); err != nil {
			return err
		}
		if err := nonNegative("unit_limits", l.Unit, "ramp_up_rate", l.RampUpRate); err != nil {
			return err
		}
		if err := nonNegative("unit_limits", l.Unit, "ramp_down_rate", l.RampDownRate); err != nil {
			return err
		}
		ramp[l.Unit] = l
	}
	for _, o := range offers {
		if _, ok := ramp[o.Unit]; !ok {
			return &SchemaError{Table: "unit_limits", Msg: "no ramp limits for regulation unit " + o.Unit}
		}
	}

	rows := make([]RegulationOffer, len(offers))
	copy(rows, offers)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Unit != rows[j].Unit {
			return rows[i].Unit < rows[j].Unit
		}
		return rows[i].Service < rows[j].Service
	})

	var (
		constraints []Constraint
		occurrences []ConstraintOccurrence[UnitKey]
	)
	for _, o := range rows {
		l := ramp[o.Unit]
		id := s.ids.TakeConstraintIDs(1)
		if o.Service == ServiceRaiseReg {
			constraints = append(constraints, Constraint{
				ID: id, Relation: LessOrEqual,
				RHS:  ConstantRHS(l.InitialOutput + l.RampUpRate*s.hoursPerInterval()),
				Unit: o.Unit, Service: o.Service,
			})
			occurrences = append(occurrences,
				ConstraintOccurrence[UnitKey]{Constraint: id, Key: UnitKey{Unit: o.Unit, Service: ServiceRaiseReg}, Coefficient: 1.0},
				ConstraintOccurrence[UnitKey]{Constraint: id, Key: UnitKey{Unit: o.Unit, Service: ServiceEnergy}, Coefficient: 1.0},
			)
		} else {
			constraints = append(constraints, Constraint{
				ID: id, Relation: GreaterOrEqual,
				RHS:  ConstantRHS(l.InitialOutput - l.RampDownRate*s.hoursPerInterval()),
				Unit: o.Unit, Service: o.Service,
			})
			occurrences = append(occurrences,
				ConstraintOccurrence[UnitKey]{Constraint: id, Key: UnitKey{Unit: o.Unit, Service: ServiceLowerReg}, Coefficient: -1.0},
				ConstraintOccurrence[UnitKey]{Constraint: id, Key: UnitKey{Unit: o.Unit, Service: ServiceEnergy}, Coefficient: 1.0},
			)
		}
	}

	s.constraints[familyJointRamping] = constraints
	s.unitConstraintMap[familyJointRamping] = occurrences
	return nil
}

// trapeziumSlopes derives the upper and lower slope coefficients of a
// trapezium. The scaling keeps the co-dispatch of energy, contingency and
// regulation services inside the participant-declared envelope; an error here
// would silently permit technically infeasible joint dispatch.
func trapeziumSlopes(t Trapezium) (upper, lower float64) {
	upper = (t.EnablementMax - t.HighBreakPoint) / t.MaxAvailability
	lower = (t.LowBreakPoint - t.EnablementMin) / t.MaxAvailability
	return upper, lower
}

// SetJointCapacityConstraints keeps energy, contingency and regulation
// dispatch on the feasible slopes of each contingency trapezium. Two
// constraints per (unit, service):
//
//	energy + slope_upper*service + raise_reg <= enablement_max
//	energy - slope_lower*service - lower_reg >= enablement_min
//
// The regulation cross-terms only bind for units that offer regulation; for
// the rest the occurrence matches no variable.
func (s *Spot) SetJointCapacityConstraints(trapeziums []Trapezium) error {
	if err := validateTrapeziums("contingency_trapeziums", trapeziums); err != nil {
		return err
	}
	constraints, occurrences := s.trapeziumConstraints(trapeziums, true)
	s.constraints[familyJointCapacity] = constraints
	s.unitConstraintMap[familyJointCapacity] = occurrences
	return nil
}

// SetEnergyAndRegulationCapacityConstraints keeps energy and regulation
// dispatch on the feasible slopes of each regulation trapezium. Same geometry
// as the joint capacity constraints but without regulation cross-terms.
func (s *Spot) SetEnergyAndRegulationCapacityConstraints(trapeziums []Trapezium) error {
	if err := validateTrapeziums("regulation_trapeziums", trapeziums); err != nil {
		return err
	}
	constraints, occurrences := s.trapeziumConstraints(trapeziums, false)
	s.constraints[familyEnergyRegCapacity] = constraints
	s.unitConstraintMap[familyEnergyRegCapacity] = occurrences
	return nil
}

func (s *Spot) trapeziumConstraints(trapeziums []Trapezium, regulationCrossTerms bool) ([]Constraint, []ConstraintOccurrence[UnitKey]) {
	rows := make([]Trapezium, len(trapeziums))
	copy(rows, trapeziums)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Unit != rows[j].Unit {
			return rows[i].Unit < rows[j].Unit
		}
		return rows[i].Service < rows[j].Service
	})

	var (
		constraints []Constraint
		occurrences []ConstraintOccurrence[UnitKey]
	)
	for _, t := range rows {
		upper, lower := trapeziumSlopes(t)

		upperID := s.ids.TakeConstraintIDs(1)
		constraints = append(constraints, Constraint{
			ID: upperID, Relation: LessOrEqual, RHS: ConstantRHS(t.EnablementMax), Unit: t.Unit, Service: t.Service,
		})
		occurrences = append(occurrences,
			ConstraintOccurrence[UnitKey]{Constraint: upperID, Key: UnitKey{Unit: t.Unit, Service: ServiceEnergy}, Coefficient: 1.0},
			ConstraintOccurrence[UnitKey]{Constraint: upperID, Key: UnitKey{Unit: t.Unit, Service: t.Service}, Coefficient: upper},
		)
		if regulationCrossTerms {
			occurrences = append(occurrences, ConstraintOccurrence[UnitKey]{
				Constraint: upperID, Key: UnitKey{Unit: t.Unit, Service: ServiceRaiseReg}, Coefficient: 1.0,
			})
		}

		lowerID := s.ids.TakeConstraintIDs(1)
		constraints = append(constraints, Constraint{
			ID: lowerID, Relation: GreaterOrEqual, RHS: ConstantRHS(t.EnablementMin), Unit: t.Unit, Service: t.Service,
		})
		occurrences = append(occurrences,
			ConstraintOccurrence[UnitKey]{Constraint: lowerID, Key: UnitKey{Unit: t.Unit, Service: ServiceEnergy}, Coefficient: 1.0},
			ConstraintOccurrence[UnitKey]{Constraint: lowerID, Key: UnitKey{Unit: t.Unit, Service: t.Service}, Coefficient: -lower},
		)
		if regulationCrossTerms {
			occurrences = append(occurrences, ConstraintOccurrence[UnitKey]{
				Constraint: lowerID, Key: UnitKey{Unit: t.Unit, Service: ServiceLowerReg}, Coefficient: -1.0,
			})
		}
	}
	return constraints, occurrences
}
