package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/spotmarket/core/metrics"
	"github.com/kilianp07/spotmarket/infra/mqtt"
)

type Config struct {
	MQTT    mqtt.Config    `json:"mqtt"`
	Solver  SolverConfig   `json:"solver"`
	Metrics metrics.Config `json:"metrics"`
	Logging LoggingConfig  `json:"logging"`
}

// SolverConfig tunes the LP backend and the result publication step.
type SolverConfig struct {
	// Tolerance is the feasibility tolerance passed to the simplex backend.
	Tolerance float64 `json:"tolerance"`
	// DualStep is the perturbation step used to estimate constraint duals.
	DualStep float64 `json:"dual_step"`
	// PublishResults enables pushing cleared results over MQTT.
	PublishResults bool `json:"publish_results"`
	// AckTimeoutSeconds bounds the wait for a consumer acknowledgment.
	AckTimeoutSeconds int `json:"ack_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *SolverConfig) SetDefaults() {
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-7
	}
	if c.DualStep <= 0 {
		c.DualStep = 1e-4
	}
	if c.AckTimeoutSeconds <= 0 {
		c.AckTimeoutSeconds = 3
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("SM_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "sm_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Solver.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
