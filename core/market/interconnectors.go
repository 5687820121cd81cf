package market

import (
	"fmt"
	"math"
	"sort"
)

// SetInterconnectors creates a flow variable for each interconnector, bounded
// [min, max], contributing +1 to the to_region energy balance and -1 to the
// from_region balance. End loss factors default to 1.0.
func (s *Spot) SetInterconnectors(interconnectors []Interconnector) error {
	seen := make(map[string]bool, len(interconnectors))
	for _, ic := range interconnectors {
		if ic.Interconnector == "" {
			return &SchemaError{Table: "interconnectors", Msg: "interconnector identifier is required"}
		}
		if seen[ic.Interconnector] {
			return &DuplicateKeyError{Table: "interconnectors", Key: ic.Interconnector}
		}
		seen[ic.Interconnector] = true
		if ic.ToRegion == "" || ic.FromRegion == "" {
			return &SchemaError{Table: "interconnectors", Msg: fmt.Sprintf("interconnector %q needs both regions", ic.Interconnector)}
		}
		if err := realValue("interconnectors", ic.Interconnector, "min", ic.Min); err != nil {
			return err
		}
		if err := realValue("interconnectors", ic.Interconnector, "max", ic.Max); err != nil {
			return err
		}
		if ic.Min > ic.Max {
			return &DomainError{Table: "interconnectors", Key: ic.Interconnector, Msg: "min exceeds max"}
		}
	}

	rows := make([]Interconnector, len(interconnectors))
	copy(rows, interconnectors)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Interconnector < rows[j].Interconnector })

	variables := make([]DecisionVariable, 0, len(rows))
	regionMap := make([]VariableOccurrence[RegionKey], 0, 2*len(rows))
	for i := range rows {
		if rows[i].FromRegionLossFactor == 0 {
			rows[i].FromRegionLossFactor = 1.0
		}
		if rows[i].ToRegionLossFactor == 0 {
			rows[i].ToRegionLossFactor = 1.0
		}
		ic := rows[i]
		id := s.ids.TakeVariableIDs(1)
		variables = append(variables, DecisionVariable{
			ID: id, LowerBound: ic.Min, UpperBound: ic.Max, Interconnector: ic.Interconnector, Service: ServiceEnergy,
		})
		regionMap = append(regionMap,
			VariableOccurrence[RegionKey]{Variable: id, Key: RegionKey{Region: ic.ToRegion, Service: ServiceEnergy}, Coefficient: 1.0},
			VariableOccurrence[RegionKey]{Variable: id, Key: RegionKey{Region: ic.FromRegion, Service: ServiceEnergy}, Coefficient: -1.0},
		)
	}

	s.interconnectors = rows
	s.variables[familyInterconnectors] = variables
	s.regionVariableMap[familyInterconnectors] = regionMap
	return nil
}

// SetInterconnectorLosses creates the piecewise-linear loss model. For each
// interconnector it adds a loss variable proportioned to the connected regions
// by the from-region loss share, one [0,1] interpolation weight variable per
// break point declared as a single SOS2 group, and three constraint rows:
//
//	weights sum to one
//	weighted break points equal the flow variable (dynamic rhs)
//	weighted losses at the break points equal the loss variable (dynamic rhs)
//
// The SOS2 adjacency restriction is what makes the interpolation valid for a
// non-convex loss curve; a plain LP could otherwise spread weight across
// non-adjacent break points.
func (s *Spot) SetInterconnectorLosses(models []LossModel, breakPoints []BreakPoint) error {
	if err := s.requireInterconnectors("interconnector losses"); err != nil {
		return err
	}
	known := make(map[string]bool, len(s.interconnectors))
	for _, ic := range s.interconnectors {
		known[ic.Interconnector] = true
	}
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		if !known[m.Interconnector] {
			return &BuildOrderError{Op: "interconnector losses", Missing: "interconnector " + m.Interconnector}
		}
		if seen[m.Interconnector] {
			return &DuplicateKeyError{Table: "loss_functions", Key: m.Interconnector}
		}
		seen[m.Interconnector] = true
		if m.LossFunction == nil {
			return &SchemaError{Table: "loss_functions", Msg: "loss function is required for " + m.Interconnector}
		}
		if m.FromRegionLossShare < 0 || m.FromRegionLossShare > 1 {
			return &DomainError{Table: "loss_functions", Key: m.Interconnector,
				Msg: fmt.Sprintf("from_region_loss_share must be within [0, 1], got %v", m.FromRegionLossShare)}
		}
	}
	points := make(map[string][]BreakPoint, len(models))
	seenPoints := make(map[string]map[float64]bool)
	for _, bp := range breakPoints {
		if !seen[bp.Interconnector] {
			return &SchemaError{Table: "interpolation_break_points", Msg: "no loss function for " + bp.Interconnector}
		}
		if err := realValue("interpolation_break_points", bp.Interconnector, "break_point", bp.BreakPoint); err != nil {
			return err
		}
		if seenPoints[bp.Interconnector] == nil {
			seenPoints[bp.Interconnector] = make(map[float64]bool)
		}
		if seenPoints[bp.Interconnector][bp.BreakPoint] {
			return &DuplicateKeyError{Table: "interpolation_break_points",
				Key: fmt.Sprintf("%s@%v", bp.Interconnector, bp.BreakPoint)}
		}
		seenPoints[bp.Interconnector][bp.BreakPoint] = true
		points[bp.Interconnector] = append(points[bp.Interconnector], bp)
	}
	for _, m := range models {
		if len(points[m.Interconnector]) < 2 {
			return &SchemaError{Table: "interpolation_break_points",
				Msg: "at least two break points are required for " + m.Interconnector}
		}
	}

	rows := make([]LossModel, len(models))
	copy(rows, models)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Interconnector < rows[j].Interconnector })

	flowVars := make(map[string]VariableID, len(s.variables[familyInterconnectors]))
	bounds := make(map[string][2]float64, len(s.interconnectors))
	ends := make(map[string]Interconnector, len(s.interconnectors))
	for _, v := range s.variables[familyInterconnectors] {
		flowVars[v.Interconnector] = v.ID
		bounds[v.Interconnector] = [2]float64{v.LowerBound, v.UpperBound}
	}
	for _, ic := range s.interconnectors {
		ends[ic.Interconnector] = ic
	}

	var (
		lossVariables   []DecisionVariable
		weightVariables []DecisionVariable
		lossRegionMap   []VariableOccurrence[RegionKey]
		weightSumRows   []Constraint
		dynamicRows     []Constraint
		lhs             []Coefficient
		groups          []SOS2Group
	)
	for _, m := range rows {
		ic := ends[m.Interconnector]
		b := bounds[m.Interconnector]
		cap := math.Max(math.Abs(b[0]), math.Abs(b[1]))

		lossID := s.ids.TakeVariableIDs(1)
		lossVariables = append(lossVariables, DecisionVariable{
			ID: lossID, LowerBound: -cap, UpperBound: cap, Interconnector: m.Interconnector, Service: ServiceEnergy,
		})
		// Losses appear as extra demand in both regions.
		lossRegionMap = append(lossRegionMap,
			VariableOccurrence[RegionKey]{Variable: lossID, Key: RegionKey{Region: ic.FromRegion, Service: ServiceEnergy}, Coefficient: -m.FromRegionLossShare},
			VariableOccurrence[RegionKey]{Variable: lossID, Key: RegionKey{Region: ic.ToRegion, Service: ServiceEnergy}, Coefficient: -(1.0 - m.FromRegionLossShare)},
		)

		segs := points[m.Interconnector]
		sort.Slice(segs, func(i, j int) bool { return segs[i].BreakPoint < segs[j].BreakPoint })

		group := SOS2Group{Interconnector: m.Interconnector}
		first := s.ids.TakeVariableIDs(len(segs))
		weightIDs := make([]VariableID, len(segs))
		for i, seg := range segs {
			id := first + VariableID(i)
			weightIDs[i] = id
			weightVariables = append(weightVariables, DecisionVariable{
				ID: id, LowerBound: 0, UpperBound: 1,
				Interconnector: m.Interconnector, LossSegment: seg.LossSegment,
			})
			group.Variables = append(group.Variables, id)
		}
		groups = append(groups, group)

		sumID := s.ids.TakeConstraintIDs(1)
		weightSumRows = append(weightSumRows, Constraint{
			ID: sumID, Relation: Equal, RHS: ConstantRHS(1.0), Interconnector: m.Interconnector,
		})
		flowID := s.ids.TakeConstraintIDs(1)
		dynamicRows = append(dynamicRows, Constraint{
			ID: flowID, Relation: Equal, RHS: VariableRHS(flowVars[m.Interconnector]), Interconnector: m.Interconnector,
		})
		lossLinkID := s.ids.TakeConstraintIDs(1)
		dynamicRows = append(dynamicRows, Constraint{
			ID: lossLinkID, Relation: Equal, RHS: VariableRHS(lossID), Interconnector: m.Interconnector,
		})
		for i, seg := range segs {
			lhs = append(lhs,
				Coefficient{Variable: weightIDs[i], Constraint: sumID, Value: 1.0},
				Coefficient{Variable: weightIDs[i], Constraint: flowID, Value: seg.BreakPoint},
				Coefficient{Variable: weightIDs[i], Constraint: lossLinkID, Value: m.LossFunction(seg.BreakPoint)},
			)
		}
	}

	for _, m := range rows {
		s.lossShares[m.Interconnector] = m.FromRegionLossShare
	}
	s.variables[familyInterLosses] = lossVariables
	s.regionVariableMap[familyInterLosses] = lossRegionMap
	s.variables[familyInterpolationWeight] = weightVariables
	s.lhs[familyInterLosses] = lhs
	s.constraints[familyInterpolationWeight] = weightSumRows
	s.constraints[familyLinkLossToFlow] = dynamicRows
	s.sos2 = groups
	return nil
}
