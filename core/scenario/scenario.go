// Package scenario loads a dispatch interval description from a YAML or JSON
// file and replays it onto a market builder in dependency order.
package scenario

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/spotmarket/core/market"
)

// Scenario is the declarative form of one dispatch interval. Sections map one
// to one onto the market builder operations; empty sections are skipped.
type Scenario struct {
	IntervalMinutes float64 `json:"interval_minutes"`
	CeilingPrice    float64 `json:"ceiling_price"`
	FloorPrice      float64 `json:"floor_price"`

	Units      []UnitSpec `json:"units"`
	VolumeBids []BidSpec  `json:"volume_bids"`
	PriceBids  []BidSpec  `json:"price_bids"`

	CapacityLimits []CapacitySpec `json:"capacity_limits"`
	RampLimits     []RampSpec     `json:"ramp_limits"`

	Demand []DemandSpec `json:"demand"`

	FCASRequirements    []RequirementSpec  `json:"fcas_requirements"`
	FCASMaxAvailability []AvailabilitySpec `json:"fcas_max_availability"`
	RegulationOffers    []OfferSpec        `json:"regulation_offers"`
	JointCapacity       []TrapeziumSpec    `json:"joint_capacity"`
	EnergyRegCapacity   []TrapeziumSpec    `json:"energy_regulation_capacity"`

	Interconnectors []InterconnectorSpec `json:"interconnectors"`
	LossModels      []LossModelSpec      `json:"loss_models"`

	GenericConstraints []GenericSpec    `json:"generic_constraints"`
	UnitLinks          []UnitLinkSpec   `json:"unit_links"`
	RegionLinks        []RegionLinkSpec `json:"region_links"`
	InterLinks         []InterLinkSpec  `json:"interconnector_links"`

	Elastic []ElasticSpec `json:"elastic"`
}

type UnitSpec struct {
	Unit         string  `json:"unit"`
	Region       string  `json:"region"`
	LossFactor   float64 `json:"loss_factor"`
	DispatchType string  `json:"dispatch_type"`
}

type BidSpec struct {
	Unit    string    `json:"unit"`
	Service string    `json:"service"`
	Bands   []float64 `json:"bands"`
}

type CapacitySpec struct {
	Unit     string  `json:"unit"`
	Capacity float64 `json:"capacity"`
}

// RampSpec carries both directions; a zero rate skips that direction.
type RampSpec struct {
	Unit          string  `json:"unit"`
	InitialOutput float64 `json:"initial_output"`
	RampUpRate    float64 `json:"ramp_up_rate"`
	RampDownRate  float64 `json:"ramp_down_rate"`
}

type DemandSpec struct {
	Region string  `json:"region"`
	Demand float64 `json:"demand"`
}

type RequirementSpec struct {
	Set      string  `json:"set"`
	Service  string  `json:"service"`
	Region   string  `json:"region"`
	Volume   float64 `json:"volume"`
	Relation string  `json:"relation"`
}

type AvailabilitySpec struct {
	Unit            string  `json:"unit"`
	Service         string  `json:"service"`
	MaxAvailability float64 `json:"max_availability"`
}

type OfferSpec struct {
	Unit    string `json:"unit"`
	Service string `json:"service"`
}

type TrapeziumSpec struct {
	Unit            string  `json:"unit"`
	Service         string  `json:"service"`
	MaxAvailability float64 `json:"max_availability"`
	EnablementMin   float64 `json:"enablement_min"`
	LowBreakPoint   float64 `json:"low_break_point"`
	HighBreakPoint  float64 `json:"high_break_point"`
	EnablementMax   float64 `json:"enablement_max"`
}

type InterconnectorSpec struct {
	Interconnector       string  `json:"interconnector"`
	ToRegion             string  `json:"to_region"`
	FromRegion           string  `json:"from_region"`
	Min                  float64 `json:"min"`
	Max                  float64 `json:"max"`
	FromRegionLossFactor float64 `json:"from_region_loss_factor"`
	ToRegionLossFactor   float64 `json:"to_region_loss_factor"`
}

// LossModelSpec describes an interconnector loss model. Function selects the
// loss curve shape and BreakPoints lists the interpolation flows in MW.
type LossModelSpec struct {
	Interconnector      string           `json:"interconnector"`
	FromRegionLossShare float64          `json:"from_region_loss_share"`
	Function            LossFunctionSpec `json:"function"`
	BreakPoints         []float64        `json:"break_points"`
}

// LossFunctionSpec declares a loss curve: "linear" gives coefficient*flow,
// "quadratic" gives coefficient*flow^2.
type LossFunctionSpec struct {
	Type        string  `json:"type"`
	Coefficient float64 `json:"coefficient"`
}

type GenericSpec struct {
	Set      string  `json:"set"`
	Relation string  `json:"relation"`
	RHS      float64 `json:"rhs"`
}

type UnitLinkSpec struct {
	Set         string  `json:"set"`
	Unit        string  `json:"unit"`
	Service     string  `json:"service"`
	Coefficient float64 `json:"coefficient"`
}

type RegionLinkSpec struct {
	Set         string  `json:"set"`
	Region      string  `json:"region"`
	Service     string  `json:"service"`
	Coefficient float64 `json:"coefficient"`
}

type InterLinkSpec struct {
	Set            string  `json:"set"`
	Interconnector string  `json:"interconnector"`
	Coefficient    float64 `json:"coefficient"`
}

// ElasticSpec softens one constraint family. Cost selects the violation price:
// "ceiling" uses the market ceiling, "fixed" uses Value, "per_set" uses Values
// keyed by set name.
type ElasticSpec struct {
	Family string             `json:"family"`
	Cost   string             `json:"cost"`
	Value  float64            `json:"value"`
	Values map[string]float64 `json:"values"`
}

// Load reads a scenario file. The format is chosen from the extension.
func Load(path string) (*Scenario, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported scenario format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	var sc Scenario
	if err := k.UnmarshalWithConf("", &sc, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Options returns the market construction options a scenario declares.
func (sc *Scenario) Options() []market.Option {
	var opts []market.Option
	if sc.IntervalMinutes > 0 {
		opts = append(opts, market.WithDispatchInterval(sc.IntervalMinutes))
	}
	if sc.CeilingPrice != 0 || sc.FloorPrice != 0 {
		opts = append(opts, market.WithMarketPriceBounds(sc.CeilingPrice, sc.FloorPrice))
	}
	return opts
}

// Apply replays the scenario onto the market builder in dependency order.
func (sc *Scenario) Apply(s *market.Spot) error {
	if err := s.SetUnitInfo(unitInfo(sc.Units)); err != nil {
		return fmt.Errorf("units: %w", err)
	}
	if err := s.SetUnitVolumeBids(bids(sc.VolumeBids)); err != nil {
		return fmt.Errorf("volume bids: %w", err)
	}
	if err := s.SetUnitPriceBids(bids(sc.PriceBids)); err != nil {
		return fmt.Errorf("price bids: %w", err)
	}
	if len(sc.CapacityLimits) > 0 {
		if err := s.SetUnitCapacityConstraints(capacities(sc.CapacityLimits)); err != nil {
			return fmt.Errorf("capacity limits: %w", err)
		}
	}
	if up := rampUps(sc.RampLimits); len(up) > 0 {
		if err := s.SetUnitRampUpConstraints(up); err != nil {
			return fmt.Errorf("ramp up limits: %w", err)
		}
	}
	if down := rampDowns(sc.RampLimits); len(down) > 0 {
		if err := s.SetUnitRampDownConstraints(down); err != nil {
			return fmt.Errorf("ramp down limits: %w", err)
		}
	}
	if len(sc.Interconnectors) > 0 {
		if err := s.SetInterconnectors(interconnectors(sc.Interconnectors)); err != nil {
			return fmt.Errorf("interconnectors: %w", err)
		}
	}
	if len(sc.LossModels) > 0 {
		models, points, err := lossModels(sc.LossModels)
		if err != nil {
			return err
		}
		if err := s.SetInterconnectorLosses(models, points); err != nil {
			return fmt.Errorf("interconnector losses: %w", err)
		}
	}
	if err := s.SetDemandConstraints(demand(sc.Demand)); err != nil {
		return fmt.Errorf("demand: %w", err)
	}
	if len(sc.FCASRequirements) > 0 {
		if err := s.SetFCASRequirementsConstraints(requirements(sc.FCASRequirements)); err != nil {
			return fmt.Errorf("fcas requirements: %w", err)
		}
	}
	if len(sc.FCASMaxAvailability) > 0 {
		if err := s.SetFCASMaxAvailability(availabilities(sc.FCASMaxAvailability)); err != nil {
			return fmt.Errorf("fcas max availability: %w", err)
		}
	}
	if len(sc.RegulationOffers) > 0 {
		if err := s.SetJointRampingConstraints(offers(sc.RegulationOffers), rampLimits(sc.RampLimits)); err != nil {
			return fmt.Errorf("joint ramping: %w", err)
		}
	}
	if len(sc.JointCapacity) > 0 {
		if err := s.SetJointCapacityConstraints(trapeziums(sc.JointCapacity)); err != nil {
			return fmt.Errorf("joint capacity: %w", err)
		}
	}
	if len(sc.EnergyRegCapacity) > 0 {
		if err := s.SetEnergyAndRegulationCapacityConstraints(trapeziums(sc.EnergyRegCapacity)); err != nil {
			return fmt.Errorf("energy and regulation capacity: %w", err)
		}
	}
	if len(sc.GenericConstraints) > 0 {
		if err := s.SetGenericConstraints(generics(sc.GenericConstraints)); err != nil {
			return fmt.Errorf("generic constraints: %w", err)
		}
	}
	if len(sc.UnitLinks) > 0 {
		if err := s.LinkUnitsToGenericConstraints(unitLinks(sc.UnitLinks)); err != nil {
			return fmt.Errorf("unit links: %w", err)
		}
	}
	if len(sc.RegionLinks) > 0 {
		if err := s.LinkRegionsToGenericConstraints(regionLinks(sc.RegionLinks)); err != nil {
			return fmt.Errorf("region links: %w", err)
		}
	}
	if len(sc.InterLinks) > 0 {
		if err := s.LinkInterconnectorsToGenericConstraints(interLinks(sc.InterLinks)); err != nil {
			return fmt.Errorf("interconnector links: %w", err)
		}
	}
	for _, e := range sc.Elastic {
		cost, err := violationCost(e)
		if err != nil {
			return err
		}
		if err := s.MakeConstraintsElastic(e.Family, cost); err != nil {
			return fmt.Errorf("elastic %s: %w", e.Family, err)
		}
	}
	return nil
}

func unitInfo(specs []UnitSpec) []market.UnitInfo {
	rows := make([]market.UnitInfo, len(specs))
	for i, u := range specs {
		rows[i] = market.UnitInfo{Unit: u.Unit, Region: u.Region, LossFactor: u.LossFactor, DispatchType: u.DispatchType}
	}
	return rows
}

func bids(specs []BidSpec) []market.Bid {
	rows := make([]market.Bid, len(specs))
	for i, b := range specs {
		rows[i] = market.Bid{Unit: b.Unit, Service: b.Service, Bands: b.Bands}
	}
	return rows
}

func capacities(specs []CapacitySpec) []market.CapacityLimit {
	rows := make([]market.CapacityLimit, len(specs))
	for i, c := range specs {
		rows[i] = market.CapacityLimit{Unit: c.Unit, Capacity: c.Capacity}
	}
	return rows
}

func rampUps(specs []RampSpec) []market.RampUpLimit {
	var rows []market.RampUpLimit
	for _, r := range specs {
		if r.RampUpRate > 0 {
			rows = append(rows, market.RampUpLimit{Unit: r.Unit, InitialOutput: r.InitialOutput, RampUpRate: r.RampUpRate})
		}
	}
	return rows
}

func rampDowns(specs []RampSpec) []market.RampDownLimit {
	var rows []market.RampDownLimit
	for _, r := range specs {
		if r.RampDownRate > 0 {
			rows = append(rows, market.RampDownLimit{Unit: r.Unit, InitialOutput: r.InitialOutput, RampDownRate: r.RampDownRate})
		}
	}
	return rows
}

func rampLimits(specs []RampSpec) []market.RampLimits {
	rows := make([]market.RampLimits, len(specs))
	for i, r := range specs {
		rows[i] = market.RampLimits{Unit: r.Unit, InitialOutput: r.InitialOutput, RampUpRate: r.RampUpRate, RampDownRate: r.RampDownRate}
	}
	return rows
}

func demand(specs []DemandSpec) []market.RegionDemand {
	rows := make([]market.RegionDemand, len(specs))
	for i, d := range specs {
		rows[i] = market.RegionDemand{Region: d.Region, Demand: d.Demand}
	}
	return rows
}

func requirements(specs []RequirementSpec) []market.FCASRequirement {
	rows := make([]market.FCASRequirement, len(specs))
	for i, r := range specs {
		rows[i] = market.FCASRequirement{Set: r.Set, Service: r.Service, Region: r.Region, Volume: r.Volume, Relation: market.Relation(r.Relation)}
	}
	return rows
}

func availabilities(specs []AvailabilitySpec) []market.FCASAvailability {
	rows := make([]market.FCASAvailability, len(specs))
	for i, a := range specs {
		rows[i] = market.FCASAvailability{Unit: a.Unit, Service: a.Service, MaxAvailability: a.MaxAvailability}
	}
	return rows
}

func offers(specs []OfferSpec) []market.RegulationOffer {
	rows := make([]market.RegulationOffer, len(specs))
	for i, o := range specs {
		rows[i] = market.RegulationOffer{Unit: o.Unit, Service: o.Service}
	}
	return rows
}

func trapeziums(specs []TrapeziumSpec) []market.Trapezium {
	rows := make([]market.Trapezium, len(specs))
	for i, tr := range specs {
		rows[i] = market.Trapezium{
			Unit:            tr.Unit,
			Service:         tr.Service,
			MaxAvailability: tr.MaxAvailability,
			EnablementMin:   tr.EnablementMin,
			LowBreakPoint:   tr.LowBreakPoint,
			HighBreakPoint:  tr.HighBreakPoint,
			EnablementMax:   tr.EnablementMax,
		}
	}
	return rows
}

func interconnectors(specs []InterconnectorSpec) []market.Interconnector {
	rows := make([]market.Interconnector, len(specs))
	for i, ic := range specs {
		rows[i] = market.Interconnector{
			Interconnector:       ic.Interconnector,
			ToRegion:             ic.ToRegion,
			FromRegion:           ic.FromRegion,
			Min:                  ic.Min,
			Max:                  ic.Max,
			FromRegionLossFactor: ic.FromRegionLossFactor,
			ToRegionLossFactor:   ic.ToRegionLossFactor,
		}
	}
	return rows
}

func lossModels(specs []LossModelSpec) ([]market.LossModel, []market.BreakPoint, error) {
	models := make([]market.LossModel, len(specs))
	var points []market.BreakPoint
	for i, m := range specs {
		fn, err := lossFunction(m.Function)
		if err != nil {
			return nil, nil, fmt.Errorf("loss model %s: %w", m.Interconnector, err)
		}
		models[i] = market.LossModel{
			Interconnector:      m.Interconnector,
			FromRegionLossShare: m.FromRegionLossShare,
			LossFunction:        fn,
		}
		for j, bp := range m.BreakPoints {
			points = append(points, market.BreakPoint{
				Interconnector: m.Interconnector,
				LossSegment:    j + 1,
				BreakPoint:     bp,
			})
		}
	}
	return models, points, nil
}

func lossFunction(spec LossFunctionSpec) (func(float64) float64, error) {
	c := spec.Coefficient
	switch spec.Type {
	case "linear":
		return func(flow float64) float64 { return c * flow }, nil
	case "quadratic":
		return func(flow float64) float64 { return c * flow * flow }, nil
	default:
		return nil, fmt.Errorf("unknown loss function type %q", spec.Type)
	}
}

func generics(specs []GenericSpec) []market.GenericConstraint {
	rows := make([]market.GenericConstraint, len(specs))
	for i, g := range specs {
		rows[i] = market.GenericConstraint{Set: g.Set, Relation: market.Relation(g.Relation), RHS: g.RHS}
	}
	return rows
}

func unitLinks(specs []UnitLinkSpec) []market.UnitCoefficient {
	rows := make([]market.UnitCoefficient, len(specs))
	for i, l := range specs {
		rows[i] = market.UnitCoefficient{Set: l.Set, Unit: l.Unit, Service: l.Service, Coefficient: l.Coefficient}
	}
	return rows
}

func regionLinks(specs []RegionLinkSpec) []market.RegionCoefficient {
	rows := make([]market.RegionCoefficient, len(specs))
	for i, l := range specs {
		rows[i] = market.RegionCoefficient{Set: l.Set, Region: l.Region, Service: l.Service, Coefficient: l.Coefficient}
	}
	return rows
}

func interLinks(specs []InterLinkSpec) []market.InterconnectorCoefficient {
	rows := make([]market.InterconnectorCoefficient, len(specs))
	for i, l := range specs {
		rows[i] = market.InterconnectorCoefficient{Set: l.Set, Interconnector: l.Interconnector, Coefficient: l.Coefficient}
	}
	return rows
}

func violationCost(spec ElasticSpec) (market.ViolationCost, error) {
	switch spec.Cost {
	case "", "ceiling":
		return market.CeilingViolationCost(), nil
	case "fixed":
		return market.FixedViolationCost(spec.Value), nil
	case "per_set":
		return market.PerSetViolationCost(spec.Values), nil
	default:
		return market.ViolationCost{}, fmt.Errorf("unknown violation cost %q", spec.Cost)
	}
}
