package market

import (
	"sort"

	"github.com/kilianp07/spotmarket/core/logger"
	"github.com/kilianp07/spotmarket/core/solver"
)

// Constraint family names. Builders append to these tables; Dispatch consumes
// them once, at solve time.
const (
	familyBids                = "bids"
	familyUnitCapacity        = "unit_capacity"
	familyRampUp              = "ramp_up"
	familyRampDown            = "ramp_down"
	familyDemand              = "demand"
	familyFCAS                = "fcas"
	familyFCASMaxAvailability = "fcas_max_availability"
	familyJointRamping        = "joint_ramping"
	familyJointCapacity       = "joint_capacity"
	familyEnergyRegCapacity   = "energy_and_regulation_capacity"
	familyInterconnectors     = "interconnectors"
	familyInterLosses         = "interconnector_losses"
	familyInterpolationWeight = "interpolation_weights"
	familyLinkLossToFlow      = "link_loss_to_flow"
	familyGeneric             = "generic"

	deficitSuffix = "_deficit"
)

// governing FCAS constraint families, in harvest order.
var fcasGoverningFamilies = []string{
	familyFCASMaxAvailability,
	familyJointRamping,
	familyJointCapacity,
	familyEnergyRegCapacity,
}

// SOS2Group declares the ordered interpolation weight variables of one
// interconnector. At most two may be non-zero, and if two, they must be
// adjacent in the declared order.
type SOS2Group struct {
	Interconnector string
	Variables      []VariableID
}

// Spot builds and dispatches a spot market for a single interval. Builder
// methods translate market inputs into decision variables, sparse constraint
// coefficients and objective terms in shared append-only tables; Dispatch
// assembles the tables into one linear program, drives the solver backend and
// back-fills solved values and slacks; the price getters harvest shadow
// prices on request.
//
// A Spot instance is stateful and single-threaded; concurrent dispatch
// computations each need their own instance.
type Spot struct {
	intervalMinutes float64
	ceilingPrice    float64
	floorPrice      float64

	units     map[string]UnitInfo
	unitOrder []string

	ids IDAllocator

	variables         map[string][]DecisionVariable
	constraints       map[string][]Constraint
	marketConstraints map[string][]Constraint
	objective         map[string][]ObjectiveTerm

	// fully specified lhs blocks, keyed by family
	lhs map[string][]Coefficient

	// occurrence tables joined at dispatch time
	unitVariableMap     map[string][]VariableOccurrence[UnitKey]
	regionVariableMap   map[string][]VariableOccurrence[RegionKey]
	unitConstraintMap   map[string][]ConstraintOccurrence[UnitKey]
	regionConstraintMap map[string][]ConstraintOccurrence[RegionKey]

	// late-bound generic constraint lhs links
	genericUnitLinks   []UnitCoefficient
	genericRegionLinks []RegionCoefficient
	genericInterLinks  []InterconnectorCoefficient

	interconnectors []Interconnector
	lossShares      map[string]float64
	sos2            []SOS2Group

	dispatched      bool
	variableCount   int
	constraintCount int
	objectiveValue  float64

	// solver state retained for on-request dual pricing
	solveBackend solver.Backend
	solveRows    map[ConstraintID]int
	priced       map[string]bool

	log logger.Logger
}

// Option configures a Spot instance at construction.
type Option func(*Spot)

// WithDispatchInterval sets the dispatch interval in minutes. Default 5.
func WithDispatchInterval(minutes float64) Option {
	return func(s *Spot) { s.intervalMinutes = minutes }
}

// WithMarketPriceBounds sets the market ceiling and floor prices. The ceiling
// is the default violation cost for elastic constraints. Defaults 14000, -1000.
func WithMarketPriceBounds(ceiling, floor float64) Option {
	return func(s *Spot) {
		s.ceilingPrice = ceiling
		s.floorPrice = floor
	}
}

// WithLogger attaches a logger. Default is silent.
func WithLogger(log logger.Logger) Option {
	return func(s *Spot) { s.log = log }
}

// NewSpot creates an empty spot market model.
func NewSpot(opts ...Option) *Spot {
	s := &Spot{
		intervalMinutes:     5,
		ceilingPrice:        14000.0,
		floorPrice:          -1000.0,
		variables:           make(map[string][]DecisionVariable),
		constraints:         make(map[string][]Constraint),
		marketConstraints:   make(map[string][]Constraint),
		objective:           make(map[string][]ObjectiveTerm),
		lhs:                 make(map[string][]Coefficient),
		unitVariableMap:     make(map[string][]VariableOccurrence[UnitKey]),
		regionVariableMap:   make(map[string][]VariableOccurrence[RegionKey]),
		unitConstraintMap:   make(map[string][]ConstraintOccurrence[UnitKey]),
		regionConstraintMap: make(map[string][]ConstraintOccurrence[RegionKey]),
		lossShares:          make(map[string]float64),
		log:                 nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

// SetUnitInfo registers the dispatch units. It must be called before any bid
// or unit constraint operation. DispatchType defaults to generator and a zero
// LossFactor means costs are not referred to the regional reference node.
func (s *Spot) SetUnitInfo(units []UnitInfo) error {
	if err := validateUnitInfo(units); err != nil {
		return err
	}
	s.units = make(map[string]UnitInfo, len(units))
	s.unitOrder = s.unitOrder[:0]
	for _, u := range units {
		if u.DispatchType == "" {
			u.DispatchType = DispatchGenerator
		}
		s.units[u.Unit] = u
		s.unitOrder = append(s.unitOrder, u.Unit)
	}
	sort.Strings(s.unitOrder)
	return nil
}

// DispatchInterval returns the dispatch interval in minutes.
func (s *Spot) DispatchInterval() float64 { return s.intervalMinutes }

// CeilingPrice returns the market ceiling price.
func (s *Spot) CeilingPrice() float64 { return s.ceilingPrice }

// FloorPrice returns the market floor price.
func (s *Spot) FloorPrice() float64 { return s.floorPrice }

// Variables returns the decision variable table of one family. The returned
// slice is the live table; callers must treat it as read-only.
func (s *Spot) Variables(family string) []DecisionVariable { return s.variables[family] }

// Constraints returns the constraint table of one family, market-facing
// families included.
func (s *Spot) Constraints(family string) []Constraint {
	if rows, ok := s.constraints[family]; ok {
		return rows
	}
	return s.marketConstraints[family]
}

// ObjectiveTerms returns the objective contributions of one family.
func (s *Spot) ObjectiveTerms(family string) []ObjectiveTerm { return s.objective[family] }

// hoursPerInterval converts MW/h ramp rates into MW headroom per interval.
func (s *Spot) hoursPerInterval() float64 { return s.intervalMinutes / 60.0 }

func (s *Spot) requireUnits(op string) error {
	if len(s.units) == 0 {
		return &BuildOrderError{Op: op, Missing: "unit info"}
	}
	return nil
}

func (s *Spot) requireEnergyBids(op string) error {
	if len(s.variables[familyBids]) == 0 {
		return &BuildOrderError{Op: op, Missing: "unit volume bids"}
	}
	return nil
}

func (s *Spot) requireInterconnectors(op string) error {
	if len(s.variables[familyInterconnectors]) == 0 {
		return &BuildOrderError{Op: op, Missing: "interconnectors"}
	}
	return nil
}

// knownUnits reports whether every referenced unit has registered info.
func (s *Spot) knownUnit(unit string) bool {
	_, ok := s.units[unit]
	return ok
}
