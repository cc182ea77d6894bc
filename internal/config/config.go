// Package config loads service configuration: defaults, then an optional
// YAML file, then MAPSHOCK_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"mapshock/internal/perception"
	"mapshock/internal/protocol"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LLMConfig configures the research backend. Timeout is a ParseDuration
// string, e.g. "2m".
type LLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// SearchConfig configures the web-search enrichment pass.
type SearchConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	MaxResults int    `yaml:"max_results"`
	Timeout    string `yaml:"timeout"`
}

// SelectionConfig tunes the engine; zero values mean defaults.
type SelectionConfig struct {
	CatalogPath         string             `yaml:"catalog_path"`
	TierCaps            []protocol.TierCap `yaml:"tier_caps"`
	HighSignalIncrement int                `yaml:"high_signal_increment"`
}

// StoreConfig configures session persistence; empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures the zap setup.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Selection SelectionConfig `yaml:"selection"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8000"},
		LLM: LLMConfig{
			Provider: "openai",
			Timeout:  "2m",
		},
		Search: SearchConfig{
			BaseURL:    "https://api.tavily.com/search",
			MaxResults: 3,
			Timeout:    "30s",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LLMTimeout parses the configured LLM timeout, defaulting to two minutes.
func (c *Config) LLMTimeout() time.Duration {
	if d, err := time.ParseDuration(c.LLM.Timeout); err == nil && d > 0 {
		return d
	}
	return 2 * time.Minute
}

// SearchTimeout parses the configured search timeout, defaulting to thirty
// seconds.
func (c *Config) SearchTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Search.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// PerceptionConfig converts the llm section into client form.
func (c *Config) PerceptionConfig() perception.Config {
	return perception.Config{
		Provider: c.LLM.Provider,
		APIKey:   c.LLM.APIKey,
		BaseURL:  c.LLM.BaseURL,
		Model:    c.LLM.Model,
		Timeout:  c.LLMTimeout(),
	}
}

// Load builds the configuration. path may be empty; a missing file at an
// explicit path is an error, env overrides always apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays MAPSHOCK_* environment variables, the deployment-time
// override channel for secrets and per-host settings.
func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("MAPSHOCK_SERVER_ADDR", &c.Server.Addr)
	setString("MAPSHOCK_LLM_PROVIDER", &c.LLM.Provider)
	setString("MAPSHOCK_LLM_API_KEY", &c.LLM.APIKey)
	setString("MAPSHOCK_LLM_BASE_URL", &c.LLM.BaseURL)
	setString("MAPSHOCK_LLM_MODEL", &c.LLM.Model)
	setString("MAPSHOCK_SEARCH_API_KEY", &c.Search.APIKey)
	setString("MAPSHOCK_SEARCH_BASE_URL", &c.Search.BaseURL)
	setString("MAPSHOCK_CATALOG_PATH", &c.Selection.CatalogPath)
	setString("MAPSHOCK_STORE_PATH", &c.Store.Path)
	setString("MAPSHOCK_LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("MAPSHOCK_SEARCH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Search.Enabled = b
		}
	}
	if v := os.Getenv("MAPSHOCK_LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.JSON = b
		}
	}

	// A search key in the environment implies enrichment is wanted unless
	// explicitly switched off.
	if os.Getenv("MAPSHOCK_SEARCH_API_KEY") != "" && os.Getenv("MAPSHOCK_SEARCH_ENABLED") == "" {
		c.Search.Enabled = true
	}
}

// EngineConfig converts the selection section into engine form.
func (c *Config) EngineConfig() *protocol.SelectionConfig {
	return &protocol.SelectionConfig{
		TierCaps:            c.Selection.TierCaps,
		HighSignalIncrement: c.Selection.HighSignalIncrement,
	}
}

// LoadCatalog loads the configured catalog file, or the embedded default
// when no path is set.
func (c *Config) LoadCatalog() (*protocol.Catalog, error) {
	if c.Selection.CatalogPath == "" {
		return protocol.DefaultCatalog()
	}
	return protocol.LoadCatalogFile(c.Selection.CatalogPath)
}
