// Package config loads the global configuration of the data source layer:
// environment, logging, plug-in directories, the product variant and the
// data source manifest of built-in providers.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultGoogleRefreshExchangeURI is the compile-time default token
// exchange endpoint for Google OAuth refresh.
const DefaultGoogleRefreshExchangeURI = "https://oauth2.googleapis.com/token"

// ManifestEntry tags one built-in provider with the product variants in
// which it is enabled.
type ManifestEntry struct {
	ProviderType string   `yaml:"providerType"`
	Variants     []string `yaml:"variants"`
	Enabled      bool     `yaml:"enabled"`
}

// EnabledFor reports whether the entry applies to a product variant. An
// empty variant list means all variants.
func (m ManifestEntry) EnabledFor(variant string) bool {
	if !m.Enabled {
		return false
	}
	if len(m.Variants) == 0 {
		return true
	}
	for _, v := range m.Variants {
		if v == variant {
			return true
		}
	}
	return false
}

// Config holds all configuration of the data source layer.
type Config struct {
	Environment    string
	LogLevel       string
	ProductVariant string

	// PluginDirs are scanned for *.datasource plug-in entries.
	PluginDirs []string

	// Manifest is the table of built-in providers.
	Manifest []ManifestEntry

	// GoogleRefreshExchangeURI overrides the OAuth token exchange endpoint.
	GoogleRefreshExchangeURI string

	// MaxListDepth caps filesystem tree walks.
	MaxListDepth int
}

// fileConfig is the YAML shape of the optional config file.
type fileConfig struct {
	ProductVariant string          `yaml:"productVariant"`
	PluginDirs     []string        `yaml:"pluginDirs"`
	Manifest       []ManifestEntry `yaml:"manifest"`
}

// LoadConfig loads configuration from environment variables, overlaid by
// the optional YAML file named by BB_CONFIG_FILE.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment:              getEnv("ENVIRONMENT", "development"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		ProductVariant:           getEnv("BB_PRODUCT_VARIANT", "standard"),
		GoogleRefreshExchangeURI: getEnv("BB_GOOGLE_REFRESH_EXCHANGE_URI", DefaultGoogleRefreshExchangeURI),
		MaxListDepth:             getEnvInt("BB_MAX_LIST_DEPTH", 10),
		Manifest:                 DefaultManifest(),
	}

	if dirs := os.Getenv("BB_PLUGIN_DIRS"); dirs != "" {
		cfg.PluginDirs = filepath.SplitList(dirs)
	}

	if path := os.Getenv("BB_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if fc.ProductVariant != "" {
		c.ProductVariant = fc.ProductVariant
	}
	if len(fc.PluginDirs) > 0 {
		c.PluginDirs = append(c.PluginDirs, fc.PluginDirs...)
	}
	if len(fc.Manifest) > 0 {
		c.Manifest = fc.Manifest
	}
	return nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.MaxListDepth < 1 {
		return fmt.Errorf("BB_MAX_LIST_DEPTH must be at least 1")
	}
	if !strings.HasPrefix(c.GoogleRefreshExchangeURI, "http") {
		return fmt.Errorf("refresh exchange URI %q is not an http(s) URL", c.GoogleRefreshExchangeURI)
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// DefaultManifest lists the built-in providers, enabled in every variant.
func DefaultManifest() []ManifestEntry {
	return []ManifestEntry{
		{ProviderType: "filesystem", Enabled: true},
		{ProviderType: "notion", Enabled: true},
		{ProviderType: "googledocs", Enabled: true},
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
