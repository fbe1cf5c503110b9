// Package config handles configuration loading for the route risk engine.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seenimoa/routerisk/internal/risk"
	"github.com/seenimoa/routerisk/internal/source"
	"github.com/seenimoa/routerisk/pkg/models"
)

// EnvPrefix prefixes every environment override, e.g. ROUTERISK_API_PORT.
const EnvPrefix = "ROUTERISK"

// Config represents the complete application configuration.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"  yaml:"engine"`
	Sources SourcesConfig `mapstructure:"sources" yaml:"sources"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// EngineConfig holds risk engine settings.
type EngineConfig struct {
	FreshnessWindow       time.Duration      `mapstructure:"freshness_window"        yaml:"freshness_window"`
	FetchTimeout          time.Duration      `mapstructure:"fetch_timeout"           yaml:"fetch_timeout"`
	TopExternalFactors    int                `mapstructure:"top_external_factors"    yaml:"top_external_factors"`
	DefaultExternalImpact float64            `mapstructure:"default_external_impact" yaml:"default_external_impact"`
	RefreshSchedule       string             `mapstructure:"refresh_schedule"        yaml:"refresh_schedule"` // empty disables
	CategoryWeights       map[string]float64 `mapstructure:"category_weights"        yaml:"category_weights"` // empty uses the default policy
}

// SourcesConfig holds indicator source settings.
type SourcesConfig struct {
	CacheTTL          time.Duration       `mapstructure:"cache_ttl"           yaml:"cache_ttl"`
	ConcurrentFetches int                 `mapstructure:"concurrent_fetches"  yaml:"concurrent_fetches"`
	RequestsPerSecond float64             `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	HTTPTimeout       time.Duration       `mapstructure:"http_timeout"        yaml:"http_timeout"`
	RetryMax          int                 `mapstructure:"retry_max"           yaml:"retry_max"`
	Seed              uint64              `mapstructure:"seed"                yaml:"seed"` // 0 seeds from the clock
	Items             []source.Descriptor `mapstructure:"items"               yaml:"items"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Addr returns the listen address.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.routerisk/config.yaml (home directory)
//  3. /etc/routerisk/config.yaml (system)
//
// Environment variables override config file values.
// Format: ROUTERISK_<SECTION>_<KEY>, e.g., ROUTERISK_ENGINE_FETCH_TIMEOUT
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".routerisk"))
	v.AddConfigPath("/etc/routerisk")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if len(cfg.Sources.Items) == 0 {
		cfg.Sources.Items = source.DefaultDescriptors()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Engine defaults
	v.SetDefault("engine.freshness_window", risk.DefaultFreshnessWindow)
	v.SetDefault("engine.fetch_timeout", risk.DefaultFetchTimeout)
	v.SetDefault("engine.top_external_factors", risk.DefaultTopExternalFactors)
	v.SetDefault("engine.default_external_impact", risk.DefaultExternalImpact)
	v.SetDefault("engine.refresh_schedule", "@every 10m")

	// Source defaults
	v.SetDefault("sources.cache_ttl", source.DefaultCacheTTL)
	v.SetDefault("sources.concurrent_fetches", source.DefaultConcurrency)
	v.SetDefault("sources.requests_per_second", 2.0)
	v.SetDefault("sources.http_timeout", 30*time.Second)
	v.SetDefault("sources.retry_max", 2)
	v.SetDefault("sources.seed", 0)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.FreshnessWindow <= 0 {
		return fmt.Errorf("engine.freshness_window must be positive, got %s", c.Engine.FreshnessWindow)
	}
	if c.Engine.FetchTimeout <= 0 {
		return fmt.Errorf("engine.fetch_timeout must be positive, got %s", c.Engine.FetchTimeout)
	}
	if c.Engine.TopExternalFactors <= 0 {
		return fmt.Errorf("engine.top_external_factors must be positive, got %d", c.Engine.TopExternalFactors)
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("engine.category_weights: %w", err)
	}

	seen := make(map[string]bool, len(c.Sources.Items))
	for _, d := range c.Sources.Items {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("sources.items: %w", err)
		}
		if seen[d.ID] {
			return fmt.Errorf("sources.items: duplicate source id %q", d.ID)
		}
		seen[d.ID] = true
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// Policy builds the category weight policy, or the default when no weights
// are configured.
func (c *Config) Policy() (risk.Policy, error) {
	if len(c.Engine.CategoryWeights) == 0 {
		return risk.DefaultPolicy(), nil
	}
	shares := make(map[models.Category]float64, len(c.Engine.CategoryWeights))
	for k, w := range c.Engine.CategoryWeights {
		shares[models.Category(k)] = w
	}
	return risk.NewPolicy(shares)
}

// EngineSettings converts the engine section for risk.NewEngine.
func (c *Config) EngineSettings() risk.Config {
	return risk.Config{
		FreshnessWindow:       c.Engine.FreshnessWindow,
		FetchTimeout:          c.Engine.FetchTimeout,
		TopExternalFactors:    c.Engine.TopExternalFactors,
		DefaultExternalImpact: c.Engine.DefaultExternalImpact,
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
