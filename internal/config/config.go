// Package config provides configuration loading and structs for the kioku server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
	Intake    IntakeConfig    `yaml:"intake"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig holds the persisted knowledge store settings.
type StoreConfig struct {
	Path           string `yaml:"path"`
	CollectionName string `yaml:"collection_name"`
	// StrictLoad fails startup when a persisted store exists but cannot be
	// read, instead of discarding it and starting empty.
	StrictLoad bool `yaml:"strict_load"`
}

// EmbeddingConfig holds embedding provider settings. The API key is read from
// the OPENAI_API_KEY environment variable (a .env file is honored).
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "openai" or "mock"
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	BatchSize      int    `yaml:"batch_size"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheSize      int    `yaml:"cache_size"`
}

// Timeout returns the per-request embedding timeout.
func (e *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// ChunkingConfig holds text chunking settings, in characters.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// SearchConfig holds search result limits.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// IntakeConfig holds document intake settings.
type IntakeConfig struct {
	Directory       string   `yaml:"directory"`
	Extensions      []string `yaml:"extensions"`
	Watch           bool     `yaml:"watch"`
	MaxUploadSizeMB int      `yaml:"max_upload_size_mb"`
	RegistryPath    string   `yaml:"registry_path"`
}

// AllowedExtension reports whether ext (with or without leading dot) is in
// the intake allow-list.
func (i *IntakeConfig) AllowedExtension(ext string) bool {
	norm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range i.Extensions {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == norm {
			return true
		}
	}
	return false
}

// Load reads and parses the config file at path, loads a .env file when one
// is present, expands relative paths, and applies defaults.
func Load(path string) (*Config, error) {
	// Provider credentials live in the environment, not the config file.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Store.Path = expandPath(cfg.Store.Path, configDir)
	cfg.Intake.Directory = expandPath(cfg.Intake.Directory, configDir)
	cfg.Intake.RegistryPath = expandPath(cfg.Intake.RegistryPath, configDir)

	if cfg.Chunking.ChunkOverlap >= cfg.Chunking.ChunkSize {
		return nil, fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)",
			cfg.Chunking.ChunkOverlap, cfg.Chunking.ChunkSize)
	}
	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
