// Package local implements a synchronous sink writing one artifact file per metric.
package local

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// DefaultSeparator is the default field separator for artifact rows.
const DefaultSeparator = "\t"

// Config holds the configuration for the local storage client.
type Config struct {
	// Separator is the single-character field separator for data rows.
	// Default: tab
	Separator string `yaml:"separator"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Separator == "" {
		c.Separator = DefaultSeparator
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	if utf8.RuneCountInString(c.Separator) != 1 {
		return errors.New("local: config: Separator must be a single character")
	}
	switch r, _ := utf8.DecodeRuneInString(c.Separator); r {
	case '"', '\r', '\n', utf8.RuneError:
		return fmt.Errorf("local: config: Separator %q is not allowed", c.Separator)
	}
	return nil
}
