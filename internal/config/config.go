// Package config provides unified configuration for the Tessera tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the unified configuration for the Tessera catalog and
// pruning tools.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Catalog configuration
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Pruning configuration
	Pruning PruningConfig `json:"pruning" yaml:"pruning"`

	// Storage configuration for catalog snapshots
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// CatalogConfig holds catalog database configuration.
type CatalogConfig struct {
	// Path is the SQLite catalog database path
	Path string `json:"path" yaml:"path"`

	// ReadPoolSize is the maximum number of read-only SQLite connections
	ReadPoolSize int `json:"read_pool_size" yaml:"read_pool_size"`
}

// PruningConfig holds pruning engine configuration.
type PruningConfig struct {
	// Trace enables verbose logging of normalization and strategy
	// selection
	Trace bool `json:"trace" yaml:"trace"`
}

// StorageConfig holds snapshot storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/tessera",
		Catalog: CatalogConfig{
			Path:         "",
			ReadPoolSize: 4,
		},
		Pruning: PruningConfig{
			Trace: false,
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/tessera"
	}

	if c.Catalog.Path == "" {
		c.Catalog.Path = filepath.Join(c.DataDir, "catalog.db")
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Catalog.ReadPoolSize < 1 {
		return fmt.Errorf("catalog.read_pool_size must be at least 1, got %d", c.Catalog.ReadPoolSize)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TESSERA_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TESSERA_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Catalog configuration
	if v := os.Getenv("TESSERA_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("TESSERA_CATALOG_READ_POOL_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Catalog.ReadPoolSize)
	}

	// Pruning configuration
	if v := os.Getenv("TESSERA_PRUNING_TRACE"); v != "" {
		cfg.Pruning.Trace = v == "true" || v == "1"
	}

	// Storage configuration
	if v := os.Getenv("TESSERA_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("TESSERA_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("TESSERA_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("TESSERA_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("TESSERA_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.Catalog.Path),
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
