package market

// Input row types for the builder operations. They mirror the fixed column
// schemas supplied by the upstream data collaborator; the engine never parses
// raw market-operator files.

// ServiceEnergy is assumed whenever a bid row leaves Service empty.
const ServiceEnergy = "energy"

// Regulation service identifiers used by the joint ramping and joint capacity
// constraints.
const (
	ServiceRaiseReg = "raise_reg"
	ServiceLowerReg = "lower_reg"
)

// Dispatch types for units.
const (
	DispatchGenerator = "generator"
	DispatchLoad      = "load"
)

// UnitInfo describes a dispatch unit. LossFactor refers bid costs to the
// regional reference node; zero means no loss factor was supplied.
// DispatchType defaults to generator.
type UnitInfo struct {
	Unit         string
	Region       string
	LossFactor   float64
	DispatchType string
}

// Bid is a multi-band volume or price bid for one unit and service. Band i of
// Bands is bid band i+1; up to MaxBidBands bands are accepted.
type Bid struct {
	Unit    string
	Service string
	Bands   []float64
}

// MaxBidBands is the number of bid bands a unit may submit per service.
const MaxBidBands = 10

// CapacityLimit bounds a unit's energy dispatch by nameplate capacity.
type CapacityLimit struct {
	Unit     string
	Capacity float64
}

// RampUpLimit bounds a unit's energy dispatch by its ramp up capability over
// the dispatch interval. Rates are in MW/h.
type RampUpLimit struct {
	Unit          string
	InitialOutput float64
	RampUpRate    float64
}

// RampDownLimit bounds a unit's energy dispatch by its ramp down capability
// over the dispatch interval. Rates are in MW/h.
type RampDownLimit struct {
	Unit          string
	InitialOutput float64
	RampDownRate  float64
}

// RampLimits carries both directions for the joint ramping constraints.
type RampLimits struct {
	Unit          string
	InitialOutput float64
	RampUpRate    float64
	RampDownRate  float64
}

// RegionDemand is the non-dispatchable demand of one region.
type RegionDemand struct {
	Region string
	Demand float64
}

// FCASRequirement is one region's contribution to an FCAS requirement set.
// Relation defaults to "=" when empty.
type FCASRequirement struct {
	Set      string
	Service  string
	Region   string
	Volume   float64
	Relation Relation
}

// FCASAvailability caps the dispatch of one FCAS service of one unit.
type FCASAvailability struct {
	Unit            string
	Service         string
	MaxAvailability float64
}

// RegulationOffer marks a unit as offering a regulation service, enrolling it
// in the joint ramping constraints.
type RegulationOffer struct {
	Unit    string
	Service string
}

// Trapezium is the participant-declared feasible (energy, FCAS) co-dispatch
// envelope for one unit and service.
type Trapezium struct {
	Unit            string
	Service         string
	MaxAvailability float64
	EnablementMin   float64
	LowBreakPoint   float64
	HighBreakPoint  float64
	EnablementMax   float64
}

// Interconnector links two regions. Positive flow moves power from FromRegion
// to ToRegion; Min is the largest reverse flow (negative). The end loss
// factors refer each end to the regional reference node and default to 1.0.
type Interconnector struct {
	Interconnector       string
	ToRegion             string
	FromRegion           string
	Min                  float64
	Max                  float64
	FromRegionLossFactor float64
	ToRegionLossFactor   float64
}

// LossModel describes an interconnector's losses: a flow (MW) to losses (MW)
// function and the share of losses attributed to the from region.
type LossModel struct {
	Interconnector      string
	FromRegionLossShare float64
	LossFunction        func(flow float64) float64
}

// BreakPoint is one interpolation point of an interconnector loss function.
// Segments order the points; flows are in MW.
type BreakPoint struct {
	Interconnector string
	LossSegment    int
	BreakPoint     float64
}

// GenericConstraint is an arbitrary constraint declared by set name. Its lhs
// is attached separately through the Link* operations.
type GenericConstraint struct {
	Set      string
	Relation Relation
	RHS      float64
}

// UnitCoefficient attaches every variable of (Unit, Service) to the lhs of a
// generic constraint set.
type UnitCoefficient struct {
	Set         string
	Unit        string
	Service     string
	Coefficient float64
}

// RegionCoefficient attaches every variable of (Region, Service) to the lhs of
// a generic constraint set.
type RegionCoefficient struct {
	Set         string
	Region      string
	Service     string
	Coefficient float64
}

// InterconnectorCoefficient attaches an interconnector's flow variable to the
// lhs of a generic constraint set.
type InterconnectorCoefficient struct {
	Set            string
	Interconnector string
	Coefficient    float64
}
