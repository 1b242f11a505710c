// Package config provides configuration management for the rupture query service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Catalogue   CatalogueConfig   `mapstructure:"catalogue"`
	Locations   LocationsConfig   `mapstructure:"locations"`
	Resolver    ResolverConfig    `mapstructure:"resolver"`
	Lookup      LookupConfig      `mapstructure:"lookup"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// ArchiveConfig maps a model id to its catalogue archive.
type ArchiveConfig struct {
	ModelID string `mapstructure:"model_id"`
	Path    string `mapstructure:"path"`
}

// CatalogueConfig lists the catalogue archives to serve.
type CatalogueConfig struct {
	Archives []ArchiveConfig `mapstructure:"archives"`
}

// ArchivePaths returns the archives keyed by model id.
func (c CatalogueConfig) ArchivePaths() map[string]string {
	out := make(map[string]string, len(c.Archives))
	for _, a := range c.Archives {
		out[a.ModelID] = a.Path
	}
	return out
}

// LocationsConfig points at a location registry file. Empty uses the
// built-in registry.
type LocationsConfig struct {
	File string `mapstructure:"file"`
}

// ResolverConfig selects the default rupture set backend.
type ResolverConfig struct {
	Backend        string `mapstructure:"backend"`
	CircleVertices int    `mapstructure:"circle_vertices"`
}

// LookupConfig holds PostgreSQL configuration for the precomputed lookup tables.
type LookupConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// RedisConfig holds the shared cache tier configuration.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// CacheConfig bounds the in-process memo cache. A zero TTL never expires.
type CacheConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// LimitsConfig holds request size limits.
type LimitsConfig struct {
	MaxLocations  int `mapstructure:"max_locations"`
	MaxFaultNames int `mapstructure:"max_fault_names"`
	MaxRadiusKm   int `mapstructure:"max_radius_km"`
	MaxPageSize   int `mapstructure:"max_page_size"`
	SectionLimit  int `mapstructure:"section_limit"`
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/solvis-query/")
	}

	// Read environment variables
	v.SetEnvPrefix("SOLVIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, use defaults/env)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "45s")

	// Locations defaults
	v.SetDefault("locations.file", "")

	// Resolver defaults
	v.SetDefault("resolver.backend", "internal")
	v.SetDefault("resolver.circle_vertices", 64)

	// Lookup defaults
	v.SetDefault("lookup.enabled", false)
	v.SetDefault("lookup.host", "localhost")
	v.SetDefault("lookup.port", 5432)
	v.SetDefault("lookup.database", "solvis")
	v.SetDefault("lookup.user", "solvis")
	v.SetDefault("lookup.password", "")
	v.SetDefault("lookup.max_conns", 10)
	v.SetDefault("lookup.min_conns", 1)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "solvis:")
	v.SetDefault("redis.ttl", "24h")

	// Cache defaults
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("cache.ttl", "0s")

	// Limits defaults
	v.SetDefault("limits.max_locations", 100)
	v.SetDefault("limits.max_fault_names", 100)
	v.SetDefault("limits.max_radius_km", 1000)
	v.SetDefault("limits.max_page_size", 1000)
	v.SetDefault("limits.section_limit", 10000)

	// Rate limiter defaults
	v.SetDefault("rate_limiter.enabled", true)
	v.SetDefault("rate_limiter.requests_per_second", 100.0)
	v.SetDefault("rate_limiter.burst_size", 50)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive")
	}

	seen := make(map[string]bool)
	for _, a := range c.Catalogue.Archives {
		if a.ModelID == "" || a.Path == "" {
			return fmt.Errorf("catalogue archives need both model_id and path")
		}
		if seen[a.ModelID] {
			return fmt.Errorf("duplicate catalogue model id: %s", a.ModelID)
		}
		seen[a.ModelID] = true
	}

	switch c.Resolver.Backend {
	case "internal":
	case "external":
		if !c.Lookup.Enabled {
			return fmt.Errorf("resolver backend external requires lookup to be enabled")
		}
	default:
		return fmt.Errorf("invalid resolver backend: %q", c.Resolver.Backend)
	}

	if c.Lookup.Enabled {
		if c.Lookup.Port <= 0 || c.Lookup.Port > 65535 {
			return fmt.Errorf("invalid lookup port: %d", c.Lookup.Port)
		}
		if c.Lookup.MaxConns <= 0 || c.Lookup.MinConns < 0 || c.Lookup.MinConns > c.Lookup.MaxConns {
			return fmt.Errorf("invalid lookup pool size: min %d max %d", c.Lookup.MinConns, c.Lookup.MaxConns)
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			return fmt.Errorf("invalid redis port: %d", c.Redis.Port)
		}
	}

	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}

	if c.Limits.SectionLimit <= 0 {
		return fmt.Errorf("section limit must be positive")
	}
	if c.Limits.MaxPageSize <= 0 {
		return fmt.Errorf("max page size must be positive")
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
	}

	return nil
}
