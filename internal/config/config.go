// Package config loads the host-layer configuration: where the document
// store lives, pipeline tuning overrides, cache sizing, and log settings.
// The engine packages (internal/tlmodel, internal/priority, ...) take no
// configuration of their own — everything here is consumed by the host
// layer (internal/store, internal/cache, cmd/tasklens).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// PipelineConfig holds pipeline tuning values loaded from the config file
// and environment. No command passes them to internal/priority: the
// pipeline uses priority.MinPriority and feedback.DefaultSensitivity.
type PipelineConfig struct {
	MinPriority         float64 `yaml:"min_priority"`
	FeedbackSensitivity float64 `yaml:"feedback_sensitivity"`
}

type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "~/.local/share/tasklens/doc.sqlite3",
		},
		Pipeline: PipelineConfig{
			MinPriority:         0.001,
			FeedbackSensitivity: 1.0,
		},
		Cache: CacheConfig{
			TTL:        5 * time.Second,
			MaxEntries: 256,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration using the real environment.
func Load() (*Config, error) {
	return LoadWithEnv(os.Getenv)
}

// LoadWithEnv loads configuration using the provided environment lookup
// function. Tests supply an isolated map instead of the real environment.
func LoadWithEnv(getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPathWithEnv(getenv)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if path := getenv("TASKLENS_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}

	return cfg, nil
}

func getConfigPath() string {
	return getConfigPathWithEnv(os.Getenv)
}

func getConfigPathWithEnv(getenv func(string) string) string {
	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tasklens", "config.yaml")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tasklens", "config.yaml")
}
