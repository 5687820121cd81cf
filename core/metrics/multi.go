package metrics

// MultiSink fanouts solve events to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolve forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordSolve(ev SolveEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordSolve(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordRegionPrices forwards price events when supported by the sink.
func (m *MultiSink) RecordRegionPrices(events []RegionPriceEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RegionPriceRecorder); ok {
			if err := rec.RecordRegionPrices(events); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordUnitDispatch forwards dispatch events when supported by the sink.
func (m *MultiSink) RecordUnitDispatch(events []UnitDispatchEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(UnitDispatchRecorder); ok {
			if err := rec.RecordUnitDispatch(events); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordInterconnectorFlows forwards flow events when supported by the sink.
func (m *MultiSink) RecordInterconnectorFlows(events []InterconnectorFlowEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(InterconnectorFlowRecorder); ok {
			if err := rec.RecordInterconnectorFlows(events); err != nil {
				return err
			}
		}
	}
	return nil
}
