// Package config provides configuration loading and management for vesseltrace.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for mask rasterization
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Centerline tracing parameters
	Trace struct {
		// InitialRadiusMm is the expected vessel radius in mm; it scales the
		// radius search window
		InitialRadiusMm float64 `yaml:"initialRadiusMm"`

		// BrightVessels selects bright-blood (true) or dark-blood (false) imaging
		BrightVessels bool `yaml:"brightVessels"`

		// CostExponent sharpens the preference for vessel-interior voxels
		CostExponent float64 `yaml:"costExponent"`

		// IntensityMin and IntensityMax fix the normalization window.
		// When both are zero the observed volume range is used.
		IntensityMin float64 `yaml:"intensityMin"`
		IntensityMax float64 `yaml:"intensityMax"`

		// Subdivisions is the number of spline samples inserted per voxel step
		Subdivisions int `yaml:"subdivisions"`

		// MaxIterations caps the number of voxels settled by the path search.
		// Zero disables the cap.
		MaxIterations int `yaml:"maxIterations"`

		// SearchMarginMm confines the path search to the endpoint bounding
		// box grown by this margin. Zero or negative searches the whole volume.
		SearchMarginMm float64 `yaml:"searchMarginMm"`

		// BarrierCost makes voxels with at least this cost impassable.
		// Zero disables barriers.
		BarrierCost float64 `yaml:"barrierCost"`
	} `yaml:"trace"`

	// Radius estimation parameters
	Radius struct {
		// Directions is the number of rays cast around the centerline
		Directions int `yaml:"directions"`

		// StepMm is the sampling step along each ray; zero derives it from spacing
		StepMm float64 `yaml:"stepMm"`

		// MaxRadiusFactor bounds each ray at MaxRadiusFactor * InitialRadiusMm
		MaxRadiusFactor float64 `yaml:"maxRadiusFactor"`
	} `yaml:"radius"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	// Set default tracing parameters
	cfg.Trace.InitialRadiusMm = 2.0
	cfg.Trace.BrightVessels = true
	cfg.Trace.CostExponent = 2.0
	cfg.Trace.Subdivisions = 3
	cfg.Trace.MaxIterations = 0
	cfg.Trace.SearchMarginMm = 0
	cfg.Trace.BarrierCost = 0

	// Set default radius parameters
	cfg.Radius.Directions = 16
	cfg.Radius.StepMm = 0
	cfg.Radius.MaxRadiusFactor = 3.0

	// Set default output parameters
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks that the configuration values are usable
func (c *Config) Validate() error {
	var errs []error
	if c.Processing.NumCores < 0 {
		errs = append(errs, fmt.Errorf("processing.numCores must be non-negative, got %d", c.Processing.NumCores))
	}
	if !(c.Trace.InitialRadiusMm > 0) {
		errs = append(errs, fmt.Errorf("trace.initialRadiusMm must be positive, got %g", c.Trace.InitialRadiusMm))
	}
	if !(c.Trace.CostExponent > 0) {
		errs = append(errs, fmt.Errorf("trace.costExponent must be positive, got %g", c.Trace.CostExponent))
	}
	if c.Trace.IntensityMin != 0 || c.Trace.IntensityMax != 0 {
		if !(c.Trace.IntensityMax > c.Trace.IntensityMin) {
			errs = append(errs, fmt.Errorf("trace.intensityMax (%g) must exceed trace.intensityMin (%g)",
				c.Trace.IntensityMax, c.Trace.IntensityMin))
		}
	}
	if c.Trace.Subdivisions < 0 {
		errs = append(errs, fmt.Errorf("trace.subdivisions must be non-negative, got %d", c.Trace.Subdivisions))
	}
	if c.Trace.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("trace.maxIterations must be non-negative, got %d", c.Trace.MaxIterations))
	}
	if c.Trace.BarrierCost < 0 {
		errs = append(errs, fmt.Errorf("trace.barrierCost must be non-negative, got %g", c.Trace.BarrierCost))
	}
	if c.Radius.Directions != 0 && c.Radius.Directions < 3 {
		errs = append(errs, fmt.Errorf("radius.directions must be at least 3, got %d", c.Radius.Directions))
	}
	if c.Radius.StepMm < 0 {
		errs = append(errs, fmt.Errorf("radius.stepMm must be non-negative, got %g", c.Radius.StepMm))
	}
	if !(c.Radius.MaxRadiusFactor > 0) {
		errs = append(errs, fmt.Errorf("radius.maxRadiusFactor must be positive, got %g", c.Radius.MaxRadiusFactor))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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
