package job

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/datauploader/internal/client/local"
	"github.com/plexsphere/datauploader/internal/client/luna"
	"github.com/plexsphere/datauploader/internal/router"
)

const (
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultArtifactsBaseDir is the default directory holding job artifacts.
	DefaultArtifactsBaseDir = "./logs"
)

// ClientConfig describes one delivery target. Type selects the client
// implementation; only the settings of that implementation are used.
type ClientConfig struct {
	// Type is the client discriminator: "luna" or "local_storage".
	Type string `yaml:"type"`

	Luna  luna.Config  `yaml:",inline"`
	Local local.Config `yaml:",inline"`
}

// Config is the top-level configuration of a job. It is populated from a
// YAML configuration file via ParseConfig.
type Config struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// ArtifactsBaseDir is the directory under which each job gets its own
	// artifacts directory.
	// Default: ./logs
	ArtifactsBaseDir string `yaml:"artifacts_base_dir"`

	// TestStart is the start of the test run in Unix seconds, sent to
	// backends that record it.
	// Default: the time the job is created
	TestStart float64 `yaml:"test_start"`

	Router  router.Config  `yaml:"router"`
	Clients []ClientConfig `yaml:"clients"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ArtifactsBaseDir == "" {
		c.ArtifactsBaseDir = DefaultArtifactsBaseDir
	}
	c.Router.ApplyDefaults()
	for i := range c.Clients {
		switch c.Clients[i].Type {
		case luna.Name:
			c.Clients[i].Luna.ApplyDefaults()
		case local.Name:
			c.Clients[i].Local.ApplyDefaults()
		}
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	if c.TestStart < 0 {
		return errors.New("job: config: TestStart must not be negative")
	}
	if err := c.Router.Validate(); err != nil {
		return err
	}
	for i, cc := range c.Clients {
		var err error
		switch cc.Type {
		case luna.Name:
			err = cc.Luna.Validate()
		case local.Name:
			err = cc.Local.Validate()
		default:
			err = fmt.Errorf("%w %q", ErrUnknownClient, cc.Type)
		}
		if err != nil {
			return fmt.Errorf("job: config: clients[%d]: %w", i, err)
		}
	}
	return nil
}

// ParseConfig reads a YAML configuration file and returns a Config.
// It applies defaults and validates the configuration.
func ParseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("job: config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("job: config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// testStart returns the configured test start, or now when unset.
func (c *Config) testStart() time.Time {
	if c.TestStart == 0 {
		return time.Now()
	}
	sec, frac := math.Modf(c.TestStart)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9)))
}
