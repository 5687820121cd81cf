package market

import "sort"

// SetUnitCapacityConstraints limits each unit's energy dispatch to its
// capacity: energy <= capacity.
func (s *Spot) SetUnitCapacityConstraints(limits []CapacityLimit) error {
	if err := s.requireEnergyBids("unit capacity constraints"); err != nil {
		return err
	}
	seen := make(map[string]bool, len(limits))
	for _, l := range limits {
		if err := uniqueUnits("unit_limits", seen, l.Unit); err != nil {
			return err
		}
		if err := nonNegative("unit_limits", l.Unit, "capacity", l.Capacity); err != nil {
			return err
		}
	}

	rows := make([]CapacityLimit, len(limits))
	copy(rows, limits)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Unit < rows[j].Unit })

	constraints := make([]Constraint, 0, len(rows))
	occurrences := make([]ConstraintOccurrence[UnitKey], 0, len(rows))
	for _, l := range rows {
		id := s.ids.TakeConstraintIDs(1)
		constraints = append(constraints, Constraint{
			ID: id, Relation: LessOrEqual, RHS: ConstantRHS(l.Capacity), Unit: l.Unit, Service: ServiceEnergy,
		})
		occurrences = append(occurrences, ConstraintOccurrence[UnitKey]{
			Constraint: id, Key: UnitKey{Unit: l.Unit, Service: ServiceEnergy}, Coefficient: 1.0,
		})
	}

	s.constraints[familyUnitCapacity] = constraints
	s.unitConstraintMap[familyUnitCapacity] = occurrences
	return nil
}

// SetUnitRampUpConstraints limits each unit's energy dispatch to what its ramp
// up rate allows over the dispatch interval:
// energy <= initial_output + ramp_up_rate * interval/60.
func (s *Spot) SetUnitRampUpConstraints(limits []RampUpLimit) error {
	if err := s.requireEnergyBids("ramp up constraints"); err != nil {
		return err
	}
	seen := make(map[string]bool, len(limits))
	for _, l := range limits {
		if err := uniqueUnits("unit_limits", seen, l.Unit); err != nil {
			return err
		}
		if err := realValue("unit_limits", l.Unit, "initial_output", l.InitialOutput); err != nil {
			return err
		}
		if err := nonNegative("unit_limits", l.Unit, "ramp_up_rate", l.RampUpRate); err != nil {
			return err
		}
	}

	rows := make([]RampUpLimit, len(limits))
	copy(rows, limits)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Unit < rows[j].Unit })

	constraints := make([]Constraint, 0, len(rows))
	occurrences := make([]ConstraintOccurrence[UnitKey], 0, len(rows))
	for _, l := range rows {
		id := s.ids.TakeConstraintIDs(1)
		rhs := l.InitialOutput + l.RampUpRate*s.hoursPerInterval()
		constraints = append(constraints, Constraint{
			ID: id, Relation: LessOrEqual, RHS: ConstantRHS(rhs), Unit: l.Unit, Service: ServiceEnergy,
		})
		occurrences = append(occurrences, ConstraintOccurrence[UnitKey]{
			Constraint: id, Key: UnitKey{Unit: l.Unit, Service: ServiceEnergy}, Coefficient: 1.0,
		})
	}

	s.constraints[familyRampUp] = constraints
	s.unitConstraintMap[familyRampUp] = occurrences
	return nil
}

// SetUnitRampDownConstraints limits each unit's energy dispatch to what its
// ramp down rate allows over the dispatch interval:
// energy >= initial_output - ramp_down_rate * interval/60. The rhs may
// legitimately be negative and is not clamped.
func (s *Spot) SetUnitRampDownConstraints(limits []RampDownLimit) error {
	if err := s.requireEnergyBids("ramp down constraints"); err != nil {
		return err
	}
	seen := make(map[string]bool, len(limits))
	for _, l := range limits {
		if err := uniqueUnits("unit_limits", seen, l.Unit); err != nil {
			return err
		}
		if err := realValue("unit_limits", l.Unit, "initial_output", l.InitialOutput); err != nil {
			return err
		}
		if err := nonNegative("unit_limits", l.Unit, "ramp_down_rate", l.RampDownRate); err != nil {
			return err
		}
	}

	rows := make([]RampDownLimit, len(limits))
	copy(rows, limits)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Unit < rows[j].Unit })

	constraints := make([]Constraint, 0, len(rows))
	occurrences := make([]ConstraintOccurrence[UnitKey], 0, len(rows))
	for _, l := range rows {
		id := s.ids.TakeConstraintIDs(1)
		rhs := l.InitialOutput - l.RampDownRate*s.hoursPerInterval()
		constraints = append(constraints, Constraint{
			ID: id, Relation: GreaterOrEqual, RHS: ConstantRHS(rhs), Unit: l.Unit, Service: ServiceEnergy,
		})
		occurrences = append(occurrences, ConstraintOccurrence[UnitKey]{
			Constraint: id, Key: UnitKey{Unit: l.Unit, Service: ServiceEnergy}, Coefficient: 1.0,
		})
	}

	s.constraints[familyRampDown] = constraints
	s.unitConstraintMap[familyRampDown] = occurrences
	return nil
}
