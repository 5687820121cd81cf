package market

import "sort"

// SetGenericConstraints declares arbitrary named constraint sets, rhs and
// relation only. Their lhs terms arrive later through the Link* operations and
// are resolved against whatever variables exist at dispatch time, so links may
// legitimately reference services or units with no matching variables.
func (s *Spot) SetGenericConstraints(constraints []GenericConstraint) error {
	seen := make(map[string]bool, len(constraints))
	for _, c := range constraints {
		if c.Set == "" {
			return &SchemaError{Table: "generic_constraints", Msg: "set name is required"}
		}
		if seen[c.Set] {
			return &DuplicateKeyError{Table: "generic_constraints", Key: c.Set}
		}
		seen[c.Set] = true
		if err := validateRelation("generic_constraints", c.Set, c.Relation); err != nil {
			return err
		}
		if err := realValue("generic_constraints", c.Set, "rhs", c.RHS); err != nil {
			return err
		}
	}

	rows := make([]GenericConstraint, len(constraints))
	copy(rows, constraints)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Set < rows[j].Set })

	out := make([]Constraint, 0, len(rows))
	for _, c := range rows {
		id := s.ids.TakeConstraintIDs(1)
		out = append(out, Constraint{ID: id, Relation: c.Relation, RHS: ConstantRHS(c.RHS), Set: c.Set})
	}
	s.constraints[familyGeneric] = out
	return nil
}

// LinkUnitsToGenericConstraints attaches (unit, service) variables to generic
// constraint sets. A set may be named before SetGenericConstraints declares it;
// links against sets that never materialise are dropped at dispatch time.
func (s *Spot) LinkUnitsToGenericConstraints(links []UnitCoefficient) error {
	for _, l := range links {
		if l.Set == "" || l.Unit == "" || l.Service == "" {
			return &SchemaError{Table: "unit_generic_links", Msg: "set, unit and service are required"}
		}
		if err := realValue("unit_generic_links", l.Set+"/"+l.Unit, "coefficient", l.Coefficient); err != nil {
			return err
		}
	}
	rows := make([]UnitCoefficient, len(links))
	copy(rows, links)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Set != rows[j].Set {
			return rows[i].Set < rows[j].Set
		}
		if rows[i].Unit != rows[j].Unit {
			return rows[i].Unit < rows[j].Unit
		}
		return rows[i].Service < rows[j].Service
	})
	s.genericUnitLinks = rows
	return nil
}

// LinkRegionsToGenericConstraints attaches (region, service) variables to
// generic constraint sets.
func (s *Spot) LinkRegionsToGenericConstraints(links []RegionCoefficient) error {
	for _, l := range links {
		if l.Set == "" || l.Region == "" || l.Service == "" {
			return &SchemaError{Table: "region_generic_links", Msg: "set, region and service are required"}
		}
		if err := realValue("region_generic_links", l.Set+"/"+l.Region, "coefficient", l.Coefficient); err != nil {
			return err
		}
	}
	rows := make([]RegionCoefficient, len(links))
	copy(rows, links)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Set != rows[j].Set {
			return rows[i].Set < rows[j].Set
		}
		if rows[i].Region != rows[j].Region {
			return rows[i].Region < rows[j].Region
		}
		return rows[i].Service < rows[j].Service
	})
	s.genericRegionLinks = rows
	return nil
}

// LinkInterconnectorsToGenericConstraints attaches interconnector flow
// variables to generic constraint sets.
func (s *Spot) LinkInterconnectorsToGenericConstraints(links []InterconnectorCoefficient) error {
	for _, l := range links {
		if l.Set == "" || l.Interconnector == "" {
			return &SchemaError{Table: "interconnector_generic_links", Msg: "set and interconnector are required"}
		}
		if err := realValue("interconnector_generic_links", l.Set+"/"+l.Interconnector, "coefficient", l.Coefficient); err != nil {
			return err
		}
	}
	rows := make([]InterconnectorCoefficient, len(links))
	copy(rows, links)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Set != rows[j].Set {
			return rows[i].Set < rows[j].Set
		}
		return rows[i].Interconnector < rows[j].Interconnector
	})
	s.genericInterLinks = rows
	return nil
}
