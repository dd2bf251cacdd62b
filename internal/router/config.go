// Package router drains the shared ingestion queue and fans coalesced
// batches out to every client.
package router

import (
	"errors"
	"time"
)

// DefaultInterval is the default pause between drain cycles.
const DefaultInterval = 1 * time.Second

// Config holds the router configuration.
type Config struct {
	// Interval is the pause between drain cycles.
	// Default: 1s
	Interval time.Duration `yaml:"interval"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("router: config: Interval must be positive")
	}
	return nil
}
