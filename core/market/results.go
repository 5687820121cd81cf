package market

import (
	"math"
	"sort"
)

// UnitDispatchRow is the cleared volume of one unit and service.
type UnitDispatchRow struct {
	Unit     string
	Service  string
	Dispatch float64
}

// RegionPrice is the energy clearing price of one region.
type RegionPrice struct {
	Region string
	Price  float64
}

// FCASPrice is the clearing price of one FCAS service in one region.
type FCASPrice struct {
	Region  string
	Service string
	Price   float64
}

// InterconnectorFlow is the cleared flow and losses of one interconnector.
type InterconnectorFlow struct {
	Interconnector string
	Flow           float64
	Losses         float64
}

// FCASAvailabilityRow is the availability of one unit's FCAS service: the
// cleared dispatch plus the headroom left by the tightest governing
// constraint.
type FCASAvailabilityRow struct {
	Unit         string
	Service      string
	Dispatch     float64
	Availability float64
}

// RegionSummary aggregates one region's energy balance. Dispatch counts
// generators positive and loads negative; Inflow is the net interconnector
// flow into the region; InterconnectorLosses is the loss share allocated to
// the region; TransmissionLosses is the output lost referring units and
// interconnector ends to the regional reference node.
type RegionSummary struct {
	Region               string
	Dispatch             float64
	Inflow               float64
	InterconnectorLosses float64
	TransmissionLosses   float64
}

func (s *Spot) requireDispatch(op string) error {
	if !s.dispatched {
		return &BuildOrderError{Op: op, Missing: "dispatch"}
	}
	return nil
}

// UnitDispatch returns the cleared volume per unit and service, bid bands
// summed.
func (s *Spot) UnitDispatch() ([]UnitDispatchRow, error) {
	if err := s.requireDispatch("unit dispatch"); err != nil {
		return nil, err
	}
	totals := make(map[UnitKey]float64)
	for _, v := range s.variables[familyBids] {
		totals[UnitKey{Unit: v.Unit, Service: v.Service}] += v.Value
	}
	out := make([]UnitDispatchRow, 0, len(totals))
	for k, dispatch := range totals {
		out = append(out, UnitDispatchRow{Unit: k.Unit, Service: k.Service, Dispatch: dispatch})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Unit != out[j].Unit {
			return out[i].Unit < out[j].Unit
		}
		return out[i].Service < out[j].Service
	})
	return out, nil
}

// EnergyPrices returns the regional energy clearing prices, the shadow prices
// of the demand constraints.
func (s *Spot) EnergyPrices() ([]RegionPrice, error) {
	if err := s.requireDispatch("energy prices"); err != nil {
		return nil, err
	}
	if err := s.priceFamily(familyDemand); err != nil {
		return nil, err
	}
	rows := s.marketConstraints[familyDemand]
	out := make([]RegionPrice, 0, len(rows))
	for _, c := range rows {
		out = append(out, RegionPrice{Region: c.Region, Price: c.Price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out, nil
}

// FCASPrices returns the FCAS clearing prices per region and service. A
// region covered by several requirement sets for the same service pays the
// most expensive one.
func (s *Spot) FCASPrices() ([]FCASPrice, error) {
	if err := s.requireDispatch("fcas prices"); err != nil {
		return nil, err
	}
	if err := s.priceFamily(familyFCAS); err != nil {
		return nil, err
	}
	setPrices := make(map[string]float64)
	for _, c := range s.marketConstraints[familyFCAS] {
		setPrices[c.Set] = c.Price
	}
	best := make(map[RegionKey]float64)
	for _, occ := range s.regionConstraintMap[familyFCAS] {
		price := s.setPriceOf(occ.Constraint)
		if cur, ok := best[occ.Key]; !ok || price > cur {
			best[occ.Key] = price
		}
	}
	out := make([]FCASPrice, 0, len(best))
	for k, price := range best {
		out = append(out, FCASPrice{Region: k.Region, Service: k.Service, Price: price})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].Service < out[j].Service
	})
	return out, nil
}

func (s *Spot) setPriceOf(id ConstraintID) float64 {
	for _, c := range s.marketConstraints[familyFCAS] {
		if c.ID == id {
			return c.Price
		}
	}
	return 0
}

// InterconnectorFlows returns the cleared flow and losses per interconnector.
func (s *Spot) InterconnectorFlows() ([]InterconnectorFlow, error) {
	if err := s.requireDispatch("interconnector flows"); err != nil {
		return nil, err
	}
	losses := make(map[string]float64)
	for _, v := range s.variables[familyInterLosses] {
		losses[v.Interconnector] = v.Value
	}
	out := make([]InterconnectorFlow, 0, len(s.variables[familyInterconnectors]))
	for _, v := range s.variables[familyInterconnectors] {
		out = append(out, InterconnectorFlow{
			Interconnector: v.Interconnector,
			Flow:           v.Value,
			Losses:         losses[v.Interconnector],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Interconnector < out[j].Interconnector })
	return out, nil
}

// FCASAvailability returns, per unit FCAS service, the volume that could have
// been dispatched: the cleared dispatch plus the smallest scaled slack across
// the governing constraint families.
func (s *Spot) FCASAvailability() ([]FCASAvailabilityRow, error) {
	if err := s.requireDispatch("fcas availability"); err != nil {
		return nil, err
	}
	dispatch := make(map[UnitKey]float64)
	for _, v := range s.variables[familyBids] {
		if v.Service == ServiceEnergy {
			continue
		}
		dispatch[UnitKey{Unit: v.Unit, Service: v.Service}] += v.Value
	}

	slackByID := make(map[ConstraintID]float64)
	headroom := make(map[UnitKey]float64)
	for _, family := range fcasGoverningFamilies {
		for _, c := range s.constraints[family] {
			slackByID[c.ID] = c.Slack
		}
		for _, occ := range s.unitConstraintMap[family] {
			if occ.Key.Service == ServiceEnergy || occ.Coefficient == 0 {
				continue
			}
			if _, offered := dispatch[occ.Key]; !offered {
				continue
			}
			slack, ok := slackByID[occ.Constraint]
			if !ok {
				continue
			}
			room := slack / math.Abs(occ.Coefficient)
			if cur, seen := headroom[occ.Key]; !seen || room < cur {
				headroom[occ.Key] = room
			}
		}
	}

	out := make([]FCASAvailabilityRow, 0, len(dispatch))
	for k, d := range dispatch {
		availability := d
		if room, ok := headroom[k]; ok {
			availability += room
		}
		out = append(out, FCASAvailabilityRow{Unit: k.Unit, Service: k.Service, Dispatch: d, Availability: availability})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Unit != out[j].Unit {
			return out[i].Unit < out[j].Unit
		}
		return out[i].Service < out[j].Service
	})
	return out, nil
}

// RegionDispatchSummary aggregates the energy balance per region.
func (s *Spot) RegionDispatchSummary() ([]RegionSummary, error) {
	if err := s.requireDispatch("region dispatch summary"); err != nil {
		return nil, err
	}
	summaries := make(map[string]*RegionSummary)
	region := func(name string) *RegionSummary {
		if r, ok := summaries[name]; ok {
			return r
		}
		r := &RegionSummary{Region: name}
		summaries[name] = r
		return r
	}

	for _, v := range s.variables[familyBids] {
		if v.Service != ServiceEnergy {
			continue
		}
		info := s.units[v.Unit]
		r := region(info.Region)
		value := v.Value
		if info.DispatchType == DispatchLoad {
			value = -value
		}
		r.Dispatch += value
		if info.LossFactor > 0 {
			r.TransmissionLosses += value * (1 - info.LossFactor)
		}
	}

	flows := make(map[string]float64)
	for _, v := range s.variables[familyInterconnectors] {
		flows[v.Interconnector] = v.Value
	}
	// An end loss factor refers the interconnector end to the regional
	// reference node. The end receiving the flow loses flow*(1-factor); the
	// end sending it loses |flow|-|flow|/factor.
	endLoss := func(flow, factor float64, receiving bool) float64 {
		if (receiving && flow >= 0) || (!receiving && flow <= 0) {
			return flow * (1 - factor)
		}
		return math.Abs(flow) - math.Abs(flow)/factor
	}
	for _, ic := range s.interconnectors {
		flow := flows[ic.Interconnector]
		to := region(ic.ToRegion)
		to.Inflow += flow
		to.TransmissionLosses += endLoss(flow, ic.ToRegionLossFactor, true)
		from := region(ic.FromRegion)
		from.Inflow -= flow
		from.TransmissionLosses += endLoss(flow, ic.FromRegionLossFactor, false)
	}
	for _, v := range s.variables[familyInterLosses] {
		share := s.lossShares[v.Interconnector]
		for _, ic := range s.interconnectors {
			if ic.Interconnector != v.Interconnector {
				continue
			}
			region(ic.FromRegion).InterconnectorLosses += v.Value * share
			region(ic.ToRegion).InterconnectorLosses += v.Value * (1 - share)
		}
	}

	out := make([]RegionSummary, 0, len(summaries))
	for _, r := range summaries {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out, nil
}
