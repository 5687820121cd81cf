package metrics

import "time"

// SolveEvent captures one dispatch solve for observability purposes.
type SolveEvent struct {
	RunID       string
	Objective   float64
	Variables   int
	Constraints int
	Infeasible  bool
	Duration    time.Duration
	Time        time.Time
}

// MetricsSink records solve events.
type MetricsSink interface {
	RecordSolve(ev SolveEvent) error
}

// RegionPriceEvent is one cleared regional price.
type RegionPriceEvent struct {
	RunID   string
	Region  string
	Service string
	Price   float64
	Time    time.Time
}

// RegionPriceRecorder records cleared regional prices.
type RegionPriceRecorder interface {
	RecordRegionPrices(events []RegionPriceEvent) error
}

// UnitDispatchEvent is one unit's cleared volume for one service.
type UnitDispatchEvent struct {
	RunID      string
	Unit       string
	Service    string
	DispatchMW float64
	Time       time.Time
}

// UnitDispatchRecorder records cleared unit volumes.
type UnitDispatchRecorder interface {
	RecordUnitDispatch(events []UnitDispatchEvent) error
}

// InterconnectorFlowEvent is one interconnector's cleared flow and losses.
type InterconnectorFlowEvent struct {
	RunID          string
	Interconnector string
	FlowMW         float64
	LossesMW       float64
	Time           time.Time
}

// InterconnectorFlowRecorder records cleared interconnector flows.
type InterconnectorFlowRecorder interface {
	RecordInterconnectorFlows(events []InterconnectorFlowEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveEvent) error                              { return nil }
func (NopSink) RecordRegionPrices([]RegionPriceEvent) error               { return nil }
func (NopSink) RecordUnitDispatch([]UnitDispatchEvent) error              { return nil }
func (NopSink) RecordInterconnectorFlows([]InterconnectorFlowEvent) error { return nil }
