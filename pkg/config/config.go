// Package config provides configuration management for eigenauth.
// It loads configuration from YAML files with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all eigenauth configuration.
type Config struct {
	Dataset DatasetConfig `yaml:"dataset"`
	PCA     PCAConfig     `yaml:"pca"`
	Search  SearchConfig  `yaml:"search"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// DatasetConfig holds the image source and partition settings.
type DatasetConfig struct {
	ImageDir string `yaml:"image_dir"`
	Probes   int    `yaml:"probes"`
	Seed     int64  `yaml:"seed"`
}

// PCAConfig holds component selection settings.
type PCAConfig struct {
	Rule             string  `yaml:"rule"`
	InertiaThreshold float64 `yaml:"inertia_threshold"`
	ScreeCount       int     `yaml:"scree_count"`
}

// SearchConfig holds the authorization radius and the sweep range.
// Radii are squared Euclidean distances.
type SearchConfig struct {
	Radius      float64 `yaml:"radius"`
	RadiusStart float64 `yaml:"radius_start"`
	RadiusMax   float64 `yaml:"radius_max"`
	Step        float64 `yaml:"step"`
	Workers     int     `yaml:"workers"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	DataDir           string `yaml:"data_dir"`
	Compression       string `yaml:"compression"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Dataset: DatasetConfig{
			ImageDir: "images",
			Probes:   100,
		},
		PCA: PCAConfig{
			Rule:             "scree",
			InertiaThreshold: 0.8,
			ScreeCount:       10,
		},
		Search: SearchConfig{
			Radius:      2e6,
			RadiusStart: 0,
			RadiusMax:   2e7,
			Step:        1e6,
			Workers:     1,
		},
		Storage: StorageConfig{
			DataDir:     filepath.Join(homeDir, ".local/share/eigenauth"),
			Compression: "zstd",
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   filepath.Join(homeDir, ".local/share/eigenauth/eigenauth.log"),
			Format: "text",
		},
	}
}

// Load loads configuration from the specified file.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, err
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("/etc/eigenauth/eigenauth.yaml"); err == nil {
		return Load("/etc/eigenauth/eigenauth.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, ".config/eigenauth/eigenauth.yaml")
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

// Save writes the configuration as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Dataset.Probes < 0 {
		return fmt.Errorf("probes must not be negative, got %d", c.Dataset.Probes)
	}

	validRules := map[string]bool{"kaiser": true, "inertia": true, "scree": true, "coude": true}
	if !validRules[c.PCA.Rule] {
		return fmt.Errorf("invalid pca rule: %s (must be kaiser, inertia, or scree)", c.PCA.Rule)
	}
	if c.PCA.InertiaThreshold <= 0 || c.PCA.InertiaThreshold > 1 {
		return fmt.Errorf("inertia_threshold must be in (0, 1], got %f", c.PCA.InertiaThreshold)
	}
	if c.PCA.ScreeCount <= 0 {
		return fmt.Errorf("scree_count must be positive, got %d", c.PCA.ScreeCount)
	}

	if c.Search.Radius < 0 {
		return fmt.Errorf("radius must not be negative, got %g", c.Search.Radius)
	}
	if c.Search.Step <= 0 {
		return fmt.Errorf("step must be positive, got %g", c.Search.Step)
	}
	if c.Search.RadiusMax < c.Search.RadiusStart {
		return fmt.Errorf("radius_max %g is below radius_start %g", c.Search.RadiusMax, c.Search.RadiusStart)
	}
	if c.Search.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Search.Workers)
	}

	validCompression := map[string]bool{"none": true, "zstd": true, "lz4": true}
	if !validCompression[c.Storage.Compression] {
		return fmt.Errorf("invalid compression: %s (must be none, zstd, or lz4)", c.Storage.Compression)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Dataset.ImageDir = ExpandPath(c.Dataset.ImageDir)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates necessary directories for storage and logging.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	for _, sub := range []string{"partitions", "models", "runs"} {
		if err := os.MkdirAll(filepath.Join(c.Storage.DataDir, sub), 0700); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", sub, err)
		}
	}

	if c.Logging.File != "" {
		logDir := filepath.Dir(c.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	return nil
}
