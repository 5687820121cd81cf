package mqtt

import "time"

// RegionPrice is a cleared regional price as published to downstream consumers.
type RegionPrice struct {
	Region  string  `json:"region"`
	Service string  `json:"service"`
	Price   float64 `json:"price"`
}

// UnitDispatch is a cleared unit volume per service.
type UnitDispatch struct {
	Unit    string  `json:"unit"`
	Service string  `json:"service"`
	MW      float64 `json:"mw"`
}

// InterconnectorFlow is a cleared interconnector flow and its losses.
type InterconnectorFlow struct {
	Interconnector string  `json:"interconnector"`
	FlowMW         float64 `json:"flow_mw"`
	LossesMW       float64 `json:"losses_mw"`
}

// ResultSet bundles the outcome of one dispatch run.
type ResultSet struct {
	Objective float64              `json:"objective"`
	Prices    []RegionPrice        `json:"prices"`
	Dispatch  []UnitDispatch       `json:"dispatch"`
	Flows     []InterconnectorFlow `json:"flows,omitempty"`
}

// Publisher represents an MQTT client capable of publishing dispatch results
// and waiting for acknowledgments from downstream consumers.
type Publisher interface {
	// PublishResults publishes the result set and returns the run identifier
	// used to track the acknowledgment.
	PublishResults(rs ResultSet) (runID string, err error)

	// WaitForAck waits for an acknowledgment for the provided run identifier
	// or until the timeout expires.
	WaitForAck(runID string, timeout time.Duration) (bool, error)
}
