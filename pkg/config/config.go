// Package config provides configuration loading and management for fracnd.
// Files are YAML or TOML, chosen by extension; values from the environment
// (FRACND_*) and explicitly set command-line flags take precedence over the
// file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"fracnd/pkg/batch"
	"fracnd/pkg/fractal"
)

// Config represents the application configuration
type Config struct {
	// Fractal holds the estimator settings
	Fractal fractal.Config `yaml:"fractal" toml:"fractal"`

	// Batch holds the patient and dataset settings
	Batch batch.Options `yaml:"batch" toml:"batch"`

	// Output parameters
	Output OutputConfig `yaml:"output" toml:"output"`
}

// OutputConfig controls console output.
type OutputConfig struct {
	// Verbose enables debug logging
	Verbose bool `yaml:"verbose" toml:"verbose"`

	// Quiet limits logging to warnings and errors
	Quiet bool `yaml:"quiet" toml:"quiet"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Fractal: batch.DefaultFractalConfig(),
		Batch:   batch.DefaultOptions(),
	}
}

// DefaultConfigPath returns ~/.fracnd/config.yaml, or "" if the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".fracnd", "config.yaml")
	}
	return ""
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file on top of the
// defaults. If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration; the format follows the extension.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isTOML(configPath) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Fractal.Validate(); err != nil {
		return fmt.Errorf("fractal: %w", err)
	}
	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if c.Output.Verbose && c.Output.Quiet {
		return fmt.Errorf("output: verbose and quiet are mutually exclusive")
	}
	return nil
}
