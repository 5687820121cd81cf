package metrics

import "github.com/kilianp07/spotmarket/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort exposes the /metrics endpoint when non-empty, e.g. ":9090".
	PrometheusPort string `json:"prometheus_port"`
}
