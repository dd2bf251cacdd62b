// Package luna implements the asynchronous sink for the luna telemetry backend.
//
// Every metric must be registered with the backend before its data can be
// uploaded. A registration worker turns local ids into backend public ids
// while an upload worker drains the delivery queue, re-queueing batches whose
// metric is not registered yet.
package luna

import (
	"errors"
	"time"

	"github.com/plexsphere/datauploader/internal/backend"
)

// Defaults for Config.
const (
	DefaultRegisterInterval   = 1 * time.Second
	DefaultUploadPollInterval = 100 * time.Millisecond
)

// Config holds the configuration for the luna client.
type Config struct {
	backend.Config `yaml:",inline"`

	// RegisterInterval is the pause between sweeps over pending metrics.
	// Default: 1s
	RegisterInterval time.Duration `yaml:"register_interval"`

	// UploadPollInterval is the pause after a poll that found nothing to upload.
	// Default: 100ms
	UploadPollInterval time.Duration `yaml:"upload_poll_interval"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	c.Config.ApplyDefaults()
	if c.RegisterInterval == 0 {
		c.RegisterInterval = DefaultRegisterInterval
	}
	if c.UploadPollInterval == 0 {
		c.UploadPollInterval = DefaultUploadPollInterval
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.RegisterInterval <= 0 {
		return errors.New("luna: config: RegisterInterval must be positive")
	}
	if c.UploadPollInterval <= 0 {
		return errors.New("luna: config: UploadPollInterval must be positive")
	}
	return nil
}
