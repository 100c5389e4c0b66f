// Package config provides configuration loading and management for fae.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zhangjingcode/FAE/pkg/classifier"
	"github.com/zhangjingcode/FAE/pkg/normalizer"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Normalization parameters
	Normalization struct {
		// Method is a normalizer name or alias: none, unit, zero_center, zero_center_unit
		Method string `yaml:"method"`
	} `yaml:"normalization"`

	// Binning parameters
	Binning struct {
		// BinCount is the number of bins the ROI range is divided into
		BinCount int `yaml:"binCount"`

		// Optional overrides of the measured image and ROI ranges
		Min    *float64 `yaml:"min,omitempty"`
		Max    *float64 `yaml:"max,omitempty"`
		MinROI *float64 `yaml:"minROI,omitempty"`
		MaxROI *float64 `yaml:"maxROI,omitempty"`

		// SliceAxis is the axis ROI slices are exported along
		SliceAxis string `yaml:"sliceAxis"`
	} `yaml:"binning"`

	// Classifier parameters
	Classifier struct {
		// Name is LR or KNN
		Name string `yaml:"name"`

		Params classifier.Params `yaml:",inline"`
	} `yaml:"classifier"`

	// Output parameters
	Output struct {
		// Dir receives normalized features and test results when no
		// directory is given on the command line
		Dir string `yaml:"dir"`

		// PlotFormat is the file extension of generated plots
		PlotFormat string `yaml:"plotFormat"`
	} `yaml:"output"`

	// Log parameters
	Log struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level"`

		// JSON writes JSON lines instead of console output
		JSON bool `yaml:"json"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Normalization.Method = normalizer.ZeroCenter.Alias

	cfg.Binning.BinCount = 4
	cfg.Binning.SliceAxis = "z"

	cfg.Classifier.Name = "LR"
	cfg.Classifier.Params = classifier.DefaultParams()

	cfg.Output.Dir = ""
	cfg.Output.PlotFormat = "png"

	cfg.Log.Level = "info"
	cfg.Log.JSON = false

	return cfg
}

// Validate reports the first setting that cannot be used
func (c *Config) Validate() error {
	if _, err := normalizer.LookupMethod(c.Normalization.Method); err != nil {
		return fmt.Errorf("normalization.method: %w", err)
	}
	if c.Binning.BinCount <= 0 {
		return fmt.Errorf("binning.binCount must be positive, got %d", c.Binning.BinCount)
	}
	switch c.Binning.SliceAxis {
	case "x", "y", "z", "X", "Y", "Z":
	default:
		return fmt.Errorf("binning.sliceAxis must be x, y or z, got %q", c.Binning.SliceAxis)
	}
	if _, err := classifier.New(c.Classifier.Name, c.Classifier.Params); err != nil {
		return fmt.Errorf("classifier.name: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
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
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
