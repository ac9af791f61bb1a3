// Package config loads hh-events configuration.
//
// Configuration is layered with koanf, lowest priority first:
//
//  1. Built-in defaults (defaultConfig)
//  2. An optional YAML file (--config flag, HH_EVENTS_CONFIG, or ./config.yaml)
//  3. Environment variables: HH_EVENTS_<SECTION>_<KEY>, e.g. HH_EVENTS_STORE_PATH,
//     plus the short names DUCKDB_PATH, OPENAI_API_KEY, OPENAI_MODEL and CONTACT_EMAIL
//
// The result is validated before it is returned.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pfrederiksen/hh-events/internal/validation"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HH_EVENTS_"

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = EnvPrefix + "CONFIG"

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// Config is the complete application configuration.
type Config struct {
	Store   StoreConfig   `koanf:"store"`
	Source  SourceConfig  `koanf:"source"`
	Augment AugmentConfig `koanf:"augment"`
	Logging LoggingConfig `koanf:"logging"`
}

// StoreConfig locates the DuckDB database file.
type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// SourceConfig describes the event calendar being crawled.
type SourceConfig struct {
	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	ListingPath  string        `koanf:"listing_path"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	UserAgent    string        `koanf:"user_agent" validate:"required"`
	ContactEmail string        `koanf:"contact_email" validate:"omitempty,email"`
}

// AugmentConfig selects and tunes the augmentation provider.
type AugmentConfig struct {
	Provider      string        `koanf:"provider" validate:"oneof=openai none"`
	BaseURL       string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey        string        `koanf:"api_key" validate:"required_if=Provider openai"`
	Model         string        `koanf:"model" validate:"required_if=Provider openai"`
	MaxRetries    int           `koanf:"max_retries" validate:"min=1,max=10"`
	RetryInterval time.Duration `koanf:"retry_interval" validate:"gte=0"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// defaultConfig returns a Config with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "data/events.duckdb",
		},
		Source: SourceConfig{
			BaseURL:     "https://www.hamburg-tourism.de",
			ListingPath: "/sehen-erleben/veranstaltungen/veranstaltungskalender/",
			Timeout:     30 * time.Second,
			UserAgent:   "hh-events/1.0 (github.com/pfrederiksen/hh-events)",
		},
		Augment: AugmentConfig{
			Provider:      "none",
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o-mini",
			MaxRetries:    3,
			RetryInterval: 0,
			Timeout:       60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration from defaults, the config file at path (or a
// discovered one when path is empty) and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field rule.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ListingURL is the absolute URL of the calendar page.
func (c SourceConfig) ListingURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.ListingPath
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envAliases maps short, conventional variable names to config paths.
var envAliases = map[string]string{
	"DUCKDB_PATH":    "store.path",
	"OPENAI_API_KEY": "augment.api_key",
	"OPENAI_MODEL":   "augment.model",
	"CONTACT_EMAIL":  "source.contact_email",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Variables that are neither aliases nor prefixed are dropped.
//
// Examples:
//   - HH_EVENTS_STORE_PATH -> store.path
//   - HH_EVENTS_AUGMENT_MAX_RETRIES -> augment.max_retries
//   - OPENAI_API_KEY -> augment.api_key
func envTransformFunc(key string) string {
	if path, ok := envAliases[key]; ok {
		return path
	}

	rest, ok := strings.CutPrefix(key, EnvPrefix)
	if !ok || rest == "CONFIG" {
		return ""
	}

	section, field, ok := strings.Cut(strings.ToLower(rest), "_")
	if !ok || field == "" {
		return ""
	}
	return section + "." + field
}
