// Package config provides configuration loading and management for xrayct.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"xrayct/internal/models"
	"xrayct/pkg/filter"
	"xrayct/pkg/phantom"
	"xrayct/pkg/visualization"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// Filter is the spectral filter applied to the sinogram: none, ramp or hamming
		Filter string `yaml:"filter"`

		// Backend is the FFT implementation: gonum or godsp
		Backend string `yaml:"backend"`
	} `yaml:"processing"`

	// Projection angles in degrees, covering [Start, Stop) in increments of Step
	Angles struct {
		Start float64 `yaml:"start"`
		Stop  float64 `yaml:"stop"`
		Step  float64 `yaml:"step"`
	} `yaml:"angles"`

	// Input density map
	Input struct {
		// Image is an optional PNG/JPEG file; when empty the phantom is used
		Image string `yaml:"image"`

		// Phantom names the synthetic phantom: head, disk or square
		Phantom string `yaml:"phantom"`

		// Size is the side of the density map in pixels. Images are resized
		// to it when it is positive.
		Size int `yaml:"size"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Dir is where the result images are written
		Dir string `yaml:"dir"`

		// Palette is gray or heat
		Palette string `yaml:"palette"`

		// Format is png or jpeg
		Format string `yaml:"format"`

		// SaveIntermediaryResults also writes the density map and raw sinogram
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// SaveFrames writes the running reconstruction after every FrameStride angles
		SaveFrames  bool `yaml:"saveFrames"`
		FrameStride int  `yaml:"frameStride"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Filter = filter.Hamming.String()
	cfg.Processing.Backend = filter.Gonum.String()

	cfg.Angles.Start = 0
	cfg.Angles.Stop = 180
	cfg.Angles.Step = 1

	cfg.Input.Phantom = "head"
	cfg.Input.Size = 128

	cfg.Output.Dir = "output"
	cfg.Output.Palette = "gray"
	cfg.Output.Format = "png"
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.SaveFrames = false
	cfg.Output.FrameStride = 10
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks that every field holds a usable value
func (c *Config) Validate() error {
	if c.Processing.NumCores < 0 {
		return fmt.Errorf("numCores must be non-negative, got %d", c.Processing.NumCores)
	}
	if _, err := filter.ParseKind(c.Processing.Filter); err != nil {
		return err
	}
	if _, err := filter.ParseBackend(c.Processing.Backend); err != nil {
		return err
	}
	if _, err := models.AngleRange(c.Angles.Start, c.Angles.Stop, c.Angles.Step); err != nil {
		return err
	}
	if c.Input.Size < 0 {
		return fmt.Errorf("size must be non-negative, got %d", c.Input.Size)
	}
	if c.Input.Size > 0 && !filter.SupportedLength(2*c.Input.Size) {
		return fmt.Errorf("size %d gives %d detector bins, which is not a power of two", c.Input.Size, 2*c.Input.Size)
	}
	if c.Input.Image == "" {
		if c.Input.Size == 0 {
			return fmt.Errorf("phantom size must be positive, got %d", c.Input.Size)
		}
		if !slices.Contains(phantom.Names(), strings.ToLower(c.Input.Phantom)) {
			return fmt.Errorf("unknown phantom %q", c.Input.Phantom)
		}
	}
	if _, err := visualization.ParsePalette(c.Output.Palette); err != nil {
		return err
	}
	if _, err := visualization.ParseFormat(c.Output.Format); err != nil {
		return err
	}
	if c.Output.SaveFrames && c.Output.FrameStride <= 0 {
		return fmt.Errorf("frameStride must be positive, got %d", c.Output.FrameStride)
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
