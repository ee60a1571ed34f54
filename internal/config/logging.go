package config

import "fmt"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" env:"LEVEL"`      // debug, info, warn, error
	Format     string          `yaml:"format" env:"FORMAT"`    // json, console
	File       string          `yaml:"file" env:"FILE"`        // empty = stderr
	DebugMode  bool            `yaml:"debug_mode" env:"DEBUG"` // Master toggle - false = no logging
	Categories map[string]bool `yaml:"categories,omitempty"`   // Per-category toggles
}

// IsCategoryEnabled reports whether category logs. Nothing does outside
// debug mode; in debug mode only categories switched off explicitly stay quiet.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	on, listed := c.Categories[category]
	return on || !listed
}

// Validate checks level and format.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging level %q", ErrInvalidConfig, c.Level)
	}
	switch c.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: logging format %q", ErrInvalidConfig, c.Format)
	}
	return nil
}
