package market

import "sort"

// SetDemandConstraints creates the regional energy balance constraints that
// force supply to equal demand. These are market-facing constraints; their
// shadow prices are the regional energy clearing prices.
func (s *Spot) SetDemandConstraints(demand []RegionDemand) error {
	seen := make(map[string]bool, len(demand))
	for _, d := range demand {
		if d.Region == "" {
			return &SchemaError{Table: "demand", Msg: "region identifier is required"}
		}
		if seen[d.Region] {
			return &DuplicateKeyError{Table: "demand", Key: d.Region}
		}
		seen[d.Region] = true
		if err := nonNegative("demand", d.Region, "demand", d.Demand); err != nil {
			return err
		}
	}

	rows := make([]RegionDemand, len(demand))
	copy(rows, demand)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Region < rows[j].Region })

	constraints := make([]Constraint, 0, len(rows))
	occurrences := make([]ConstraintOccurrence[RegionKey], 0, len(rows))
	for _, d := range rows {
		id := s.ids.TakeConstraintIDs(1)
		constraints = append(constraints, Constraint{
			ID: id, Relation: Equal, RHS: ConstantRHS(d.Demand), Region: d.Region, Service: ServiceEnergy,
		})
		occurrences = append(occurrences, ConstraintOccurrence[RegionKey]{
			Constraint: id, Key: RegionKey{Region: d.Region, Service: ServiceEnergy}, Coefficient: 1.0,
		})
	}

	s.marketConstraints[familyDemand] = constraints
	s.regionConstraintMap[familyDemand] = occurrences
	return nil
}

// SetFCASRequirementsConstraints creates the FCAS requirement constraints.
// A requirement set spans one or more regions; every region row of a set
// shares the set's single constraint. Relation defaults to "=". These are
// market-facing constraints whose shadow prices are the FCAS clearing prices.
func (s *Spot) SetFCASRequirementsConstraints(requirements []FCASRequirement) error {
	type setKey struct{ set, service, region string }
	seen := make(map[setKey]bool, len(requirements))
	volumes := make(map[string]float64)
	relations := make(map[string]Relation)
	for _, r := range requirements {
		if r.Set == "" || r.Service == "" || r.Region == "" {
			return &SchemaError{Table: "fcas_requirements", Msg: "set, service and region are required"}
		}
		k := setKey{set: r.Set, service: r.Service, region: r.Region}
		if seen[k] {
			return &DuplicateKeyError{Table: "fcas_requirements", Key: r.Set + "/" + r.Service + "/" + r.Region}
		}
		seen[k] = true
		if err := nonNegative("fcas_requirements", r.Set, "volume", r.Volume); err != nil {
			return err
		}
		rel := r.Relation
		if rel == "" {
			rel = Equal
		}
		if err := validateRelation("fcas_requirements", r.Set, rel); err != nil {
			return err
		}
		if prev, ok := relations[r.Set]; ok && prev != rel {
			return &DomainError{Table: "fcas_requirements", Key: r.Set, Msg: "conflicting constraint types within one set"}
		}
		if prev, ok := volumes[r.Set]; ok && prev != r.Volume {
			return &DomainError{Table: "fcas_requirements", Key: r.Set, Msg: "conflicting volumes within one set"}
		}
		relations[r.Set] = rel
		volumes[r.Set] = r.Volume
	}

	sets := make([]string, 0, len(volumes))
	for set := range volumes {
		sets = append(sets, set)
	}
	sort.Strings(sets)

	ids := make(map[string]ConstraintID, len(sets))
	constraints := make([]Constraint, 0, len(sets))
	for _, set := range sets {
		id := s.ids.TakeConstraintIDs(1)
		ids[set] = id
		constraints = append(constraints, Constraint{
			ID: id, Relation: relations[set], RHS: ConstantRHS(volumes[set]), Set: set,
		})
	}

	rows := make([]FCASRequirement, len(requirements))
	copy(rows, requirements)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Set != rows[j].Set {
			return rows[i].Set < rows[j].Set
		}
		return rows[i].Region < rows[j].Region
	})
	occurrences := make([]ConstraintOccurrence[RegionKey], 0, len(rows))
	for _, r := range rows {
		occurrences = append(occurrences, ConstraintOccurrence[RegionKey]{
			Constraint:  ids[r.Set],
			Key:         RegionKey{Region: r.Region, Service: r.Service},
			Coefficient: 1.0,
		})
	}

	s.marketConstraints[familyFCAS] = constraints
	s.regionConstraintMap[familyFCAS] = occurrences
	return nil
}
