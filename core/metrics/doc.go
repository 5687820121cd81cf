// Package metrics defines interfaces and implementations for collecting
// solve metrics. Sinks like PromSink and InfluxSink record events such as
// solve outcomes or cleared regional prices and can be combined with
// NewMultiSink. The factory helpers return a MultiSink automatically when
// multiple sinks are configured.
package metrics
