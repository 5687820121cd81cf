package market

import (
	"sort"
)

// SetUnitVolumeBids creates the decision variables corresponding to unit
// bids. One continuous variable is created per non-zero bid band, bounded
// [0, band volume]; zero-volume bands consume neither a variable nor an id.
// The variables are mapped to unit-level constraints on (unit, service) and to
// regional constraints on (region of unit, service).
func (s *Spot) SetUnitVolumeBids(bids []Bid) error {
	if err := s.requireUnits("volume bids"); err != nil {
		return err
	}
	if err := validateBids("volume_bids", bids, false); err != nil {
		return err
	}
	for _, b := range bids {
		if !s.knownUnit(b.Unit) {
			return &SchemaError{Table: "volume_bids", Msg: "unit " + b.Unit + " has no unit info"}
		}
	}

	rows := make([]Bid, len(bids))
	copy(rows, bids)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Unit != rows[j].Unit {
			return rows[i].Unit < rows[j].Unit
		}
		return bidService(rows[i]) < bidService(rows[j])
	})

	var (
		variables []DecisionVariable
		unitMap   []VariableOccurrence[UnitKey]
		regionMap []VariableOccurrence[RegionKey]
	)
	for _, b := range rows {
		service := bidService(b)
		info := s.units[b.Unit]
		// A load's energy consumption draws from the regional balance.
		regionCoefficient := 1.0
		if service == ServiceEnergy && info.DispatchType == DispatchLoad {
			regionCoefficient = -1.0
		}
		for band, volume := range b.Bands {
			if volume == 0 {
				continue
			}
			id := s.ids.TakeVariableIDs(1)
			variables = append(variables, DecisionVariable{
				ID:           id,
				LowerBound:   0,
				UpperBound:   volume,
				Unit:         b.Unit,
				Service:      service,
				CapacityBand: band + 1,
			})
			unitMap = append(unitMap, VariableOccurrence[UnitKey]{
				Variable: id, Key: UnitKey{Unit: b.Unit, Service: service}, Coefficient: 1.0,
			})
			regionMap = append(regionMap, VariableOccurrence[RegionKey]{
				Variable: id, Key: RegionKey{Region: info.Region, Service: service}, Coefficient: regionCoefficient,
			})
		}
	}

	s.variables[familyBids] = variables
	s.unitVariableMap[familyBids] = unitMap
	s.regionVariableMap[familyBids] = regionMap
	return nil
}

// SetUnitPriceBids creates the objective costs corresponding to the bid
// variables. Price bands per unit and service must be non-decreasing. When a
// unit declares a loss factor its costs are referred to the regional reference
// node by dividing by the loss factor.
func (s *Spot) SetUnitPriceBids(bids []Bid) error {
	if err := s.requireEnergyBids("price bids"); err != nil {
		return err
	}
	if err := validateBids("price_bids", bids, true); err != nil {
		return err
	}

	prices := make(map[UnitKey][]float64, len(bids))
	for _, b := range bids {
		prices[UnitKey{Unit: b.Unit, Service: bidService(b)}] = b.Bands
	}

	var terms []ObjectiveTerm
	for _, v := range s.variables[familyBids] {
		bands, ok := prices[UnitKey{Unit: v.Unit, Service: v.Service}]
		if !ok || v.CapacityBand > len(bands) {
			// An uncosted variable would dispatch for free.
			return &SchemaError{Table: "price_bids",
				Msg: "no price band for " + v.Unit + "/" + v.Service + " volume bids"}
		}
		cost := bands[v.CapacityBand-1]
		if lf := s.units[v.Unit].LossFactor; lf > 0 {
			cost /= lf
		}
		terms = append(terms, ObjectiveTerm{
			Variable:     v.ID,
			Unit:         v.Unit,
			Service:      v.Service,
			CapacityBand: v.CapacityBand,
			Cost:         cost,
		})
	}

	s.objective[familyBids] = terms
	return nil
}
