// Package config handles configuration loading and shared defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied to values the file leaves unset.
const (
	DefaultPixelSize      = 0.00001
	DefaultThreshold      = 1.0
	DefaultPreviewSize    = 1024
	DefaultPreviewQuality = 80
)

// Config represents the root configuration file structure.
type Config struct {
	// extra CRS definitions keyed by identifier, e.g. "EPSG:2056": "+proj=somerc ..."
	CRS map[string]string `yaml:"crs,omitempty"`

	// coordinate system of point clouds that do not name one
	CloudCRS string `yaml:"cloud_crs,omitempty"`

	Preview Preview `yaml:"preview,omitempty"`

	// degrees per output pixel for photo georeferencing
	PixelSize float64 `yaml:"pixel_size,omitempty"`

	// elevation lookup radius in degrees
	Threshold float64 `yaml:"threshold,omitempty"`
}

// Preview configures the WebP quicklook written by the probe.
type Preview struct {
	MaxSize int     `yaml:"max_size,omitempty"`
	Quality float32 `yaml:"quality,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the YAML configuration file from the specified path.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PixelSize < 0 {
		return fmt.Errorf("pixel_size must be > 0, got %v", c.PixelSize)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must be > 0, got %v", c.Threshold)
	}
	if c.Preview.Quality < 0 || c.Preview.Quality > 100 {
		return fmt.Errorf("preview.quality must be within [0, 100], got %v", c.Preview.Quality)
	}
	if c.Preview.MaxSize < 0 {
		return fmt.Errorf("preview.max_size must be >= 0, got %d", c.Preview.MaxSize)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.PixelSize == 0 {
		c.PixelSize = DefaultPixelSize
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Preview.MaxSize == 0 {
		c.Preview.MaxSize = DefaultPreviewSize
	}
	if c.Preview.Quality == 0 {
		c.Preview.Quality = DefaultPreviewQuality
	}
}
