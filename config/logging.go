package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LoggingConfig defines global log verbosity and output format.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn" or "error".
	Level string `json:"level"`
	// Format selects the output: "json" or "console".
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("unknown level %s", c.Level)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("unknown format %s", c.Format)
	}
	return nil
}

// Apply sets the global zerolog level from the configuration.
func (c LoggingConfig) Apply() error {
	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
