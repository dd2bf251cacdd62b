// Package backend is the HTTP client for the luna telemetry backend.
package backend

import (
	"errors"
	"time"
)

// Config holds the configuration for the backend client.
// Config is passed as a constructor argument; no file I/O in this package.
type Config struct {
	// APIAddress is the backend base URL (required).
	// Example: "https://luna.example.net"
	APIAddress string `yaml:"api_address"`

	// UserAgent identifies the calling harness. It is sent as
	// "<UserAgent>, Uploader/<version>".
	// Default: "Unknown"
	UserAgent string `yaml:"user_agent"`

	// TLSInsecureSkipVerify disables TLS certificate verification.
	TLSInsecureSkipVerify bool `yaml:"tls_insecure_skip_verify"`

	// ConnectTimeout is the maximum time to wait for a TCP connection.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// RequestTimeout bounds a single request/response cycle.
	// Default: 5s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// RetryAttempts is the maximum number of attempts per call.
	// Default: 5
	RetryAttempts uint `yaml:"retry_attempts"`

	// RetryDelay is the fixed pause between attempts.
	// Default: 1s
	RetryDelay time.Duration `yaml:"retry_delay"`

	// RetryMaxElapsed bounds the wall-clock time of all attempts of one call.
	// Default: 10s
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`

	// DBName prefixes upload table names ("<DBName>.<metric type>").
	// Default: "luna"
	DBName string `yaml:"db_name"`
}

// Defaults for Config.
const (
	DefaultUserAgent       = "Unknown"
	DefaultConnectTimeout  = 10 * time.Second
	DefaultRequestTimeout  = 5 * time.Second
	DefaultRetryAttempts   = 5
	DefaultRetryDelay      = 1 * time.Second
	DefaultRetryMaxElapsed = 10 * time.Second
	DefaultDBName          = "luna"
)

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.RetryMaxElapsed == 0 {
		c.RetryMaxElapsed = DefaultRetryMaxElapsed
	}
	if c.DBName == "" {
		c.DBName = DefaultDBName
	}
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.APIAddress == "" {
		return errors.New("backend: config: APIAddress is required")
	}
	if c.RetryDelay < 0 || c.RetryMaxElapsed < 0 {
		return errors.New("backend: config: retry durations must not be negative")
	}
	return nil
}

// RetryPolicy returns the retry policy described by the config.
func (c *Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:   c.RetryAttempts,
		Delay:      c.RetryDelay,
		MaxElapsed: c.RetryMaxElapsed,
	}
}
