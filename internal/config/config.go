package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all shadowbox configuration.
type Config struct {
	// Core settings
	Name string `yaml:"name"`

	// Logging
	Logging LoggingConfig `yaml:"logging" envPrefix:"SHADOWBOX_LOG_"`

	// Extra rule table entries, merged over the stock tables
	Rules RulesConfig `yaml:"rules"`

	// Simulated platform versions and where their code and resources live
	Environments EnvironmentsConfig `yaml:"environments" envPrefix:"SHADOWBOX_"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "shadowbox",

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},

		Environments: EnvironmentsConfig{
			Versions:       []int{16, 17, 18, 19},
			DefaultVersion: 18,
			ClassRoots: []string{
				"classes/android-{version}",
				"classes/app",
			},
			ResourceRoots: []string{
				"res/android-{version}",
				"res/app",
			},
			InfrastructureRoot: "res/shadowbox",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment variables are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Encode writes c to w as YAML that Load reads back unchanged.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// Save validates c and replaces the file at path with it, creating missing
// directories. The YAML goes to a temporary file beside path that is renamed
// over it, so a failed save leaves any previous file intact.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := c.Encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies SHADOWBOX_* environment variables. Unset
// variables leave the loaded values alone.
func (c *Config) applyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Environments.Validate(); err != nil {
		return err
	}
	if _, err := c.Rules.Build(); err != nil {
		return err
	}
	return nil
}
