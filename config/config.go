package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Catalog   CatalogConfig
	Matching  MatchingConfig
	Estimator EstimatorConfig
	Pricing   PricingConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// CatalogConfig selects where listings are read from
type CatalogConfig struct {
	Type string `mapstructure:"type"` // "csv" or "sqlite"
	Path string `mapstructure:"path"`
}

// MatchingConfig holds product resolution configuration
type MatchingConfig struct {
	MinConfidence      int  `mapstructure:"min_confidence"`
	EnableDebugLogging bool `mapstructure:"enable_debug_logging"`
}

// EstimatorConfig holds regression forest parameters
type EstimatorConfig struct {
	Trees           int     `mapstructure:"trees"`
	MinSamplesSplit int     `mapstructure:"min_samples_split"`
	TestFraction    float64 `mapstructure:"test_fraction"`
	Seed            uint64  `mapstructure:"seed"`
}

// PricingConfig holds the blending policy
type PricingConfig struct {
	Policy           string  `mapstructure:"policy"` // "blend" or "margin_floor"
	ModelWeight      float64 `mapstructure:"model_weight"`
	CompetitorWeight float64 `mapstructure:"competitor_weight"`
	CostWeight       float64 `mapstructure:"cost_weight"`
	CostMarkup       float64 `mapstructure:"cost_markup"`
}

// CacheConfig holds fitted model cache configuration
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute, 0 disables
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadWithOverrides(nil)
}

// LoadWithOverrides is Load with explicit values, keyed like "catalog.path",
// taking precedence over the file and the environment.
func LoadWithOverrides(overrides map[string]any) (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricelens/")

	// PRICELENS_CATALOG_PATH maps to catalog.path
	v.SetEnvPrefix("PRICELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Catalog defaults
	v.SetDefault("catalog.type", "csv")
	v.SetDefault("catalog.path", "data/products.csv")

	// Matching defaults
	v.SetDefault("matching.min_confidence", 85)
	v.SetDefault("matching.enable_debug_logging", false)

	// Estimator defaults
	v.SetDefault("estimator.trees", 200)
	v.SetDefault("estimator.min_samples_split", 5)
	v.SetDefault("estimator.test_fraction", 0.2)
	v.SetDefault("estimator.seed", 42)

	// Pricing defaults
	v.SetDefault("pricing.policy", "blend")
	v.SetDefault("pricing.model_weight", 0.5)
	v.SetDefault("pricing.competitor_weight", 0.3)
	v.SetDefault("pricing.cost_weight", 0.2)
	v.SetDefault("pricing.cost_markup", 1.2)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.cleanup_interval", "10m")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Catalog.Type != "csv" && config.Catalog.Type != "sqlite" {
		return fmt.Errorf("catalog type must be 'csv' or 'sqlite', got: %s", config.Catalog.Type)
	}

	if strings.TrimSpace(config.Catalog.Path) == "" {
		return fmt.Errorf("catalog path is required (set PRICELENS_CATALOG_PATH)")
	}

	if config.Matching.MinConfidence < 1 || config.Matching.MinConfidence > 100 {
		return fmt.Errorf("matching min_confidence must be between 1 and 100, got: %d", config.Matching.MinConfidence)
	}

	if config.Estimator.Trees < 1 {
		return fmt.Errorf("estimator trees must be positive, got: %d", config.Estimator.Trees)
	}

	if config.Estimator.MinSamplesSplit < 2 {
		return fmt.Errorf("estimator min_samples_split must be at least 2, got: %d", config.Estimator.MinSamplesSplit)
	}

	if config.Estimator.TestFraction <= 0 || config.Estimator.TestFraction >= 1 {
		return fmt.Errorf("estimator test_fraction must be in (0, 1), got: %g", config.Estimator.TestFraction)
	}

	if config.Pricing.Policy != "blend" && config.Pricing.Policy != "margin_floor" {
		return fmt.Errorf("pricing policy must be 'blend' or 'margin_floor', got: %s", config.Pricing.Policy)
	}

	if config.Pricing.ModelWeight < 0 || config.Pricing.CompetitorWeight < 0 || config.Pricing.CostWeight < 0 {
		return fmt.Errorf("pricing weights must not be negative")
	}

	if config.Pricing.ModelWeight+config.Pricing.CompetitorWeight+config.Pricing.CostWeight == 0 {
		return fmt.Errorf("at least one pricing weight must be positive")
	}

	if config.Pricing.CostMarkup <= 0 {
		return fmt.Errorf("pricing cost_markup must be positive, got: %g", config.Pricing.CostMarkup)
	}

	if config.RateLimit.PerIP < 0 {
		return fmt.Errorf("ratelimit per_ip must not be negative, got: %d", config.RateLimit.PerIP)
	}

	return nil
}
