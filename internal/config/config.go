// Package config handles configuration loading for secpack.
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
)

// ErrMissingUserAgent is returned by Validate when no EDGAR client tag is configured.
var ErrMissingUserAgent = errors.New("sec.user_agent is required (EDGAR rejects anonymous clients); set SECPACK_SEC_USER_AGENT")

// Config represents the complete application configuration.
type Config struct {
	SEC     SECConfig     `mapstructure:"sec"     yaml:"sec"`
	Pack    PackConfig    `mapstructure:"pack"    yaml:"pack"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// SECConfig holds EDGAR client settings.
type SECConfig struct {
	UserAgent         string        `mapstructure:"user_agent"          yaml:"user_agent"` // "Company Name admin@example.com"
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	TickerCacheTTL    time.Duration `mapstructure:"ticker_cache_ttl"    yaml:"ticker_cache_ttl"`
	Timeout           time.Duration `mapstructure:"timeout"             yaml:"timeout"`
	Retry             RetryConfig   `mapstructure:"retry"               yaml:"retry"`
}

// RetryConfig bounds the exponential backoff used for EDGAR requests.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"     yaml:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"     yaml:"max_interval"`
}

// PackConfig holds the defaults applied when a request omits a parameter.
type PackConfig struct {
	DaysBack    int  `mapstructure:"days_back"    yaml:"days_back"`
	MaxExhibits int  `mapstructure:"max_exhibits" yaml:"max_exhibits"`
	MaxMB       int  `mapstructure:"max_mb"       yaml:"max_mb"`
	Exhibits    bool `mapstructure:"exhibits"     yaml:"exhibits"`
	Deep        bool `mapstructure:"deep"         yaml:"deep"`
	FullHistory bool `mapstructure:"full_history" yaml:"full_history"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "console" or "json"
}

// TracingConfig selects the OpenTelemetry span exporter.
type TracingConfig struct {
	Exporter string `mapstructure:"exporter" yaml:"exporter"` // "none" or "stdout"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.secpack/config.yaml (home directory)
//  3. /etc/secpack/config.yaml (system)
//
// Environment variables override config file values.
// Format: SECPACK_<SECTION>_<KEY>, e.g., SECPACK_SEC_USER_AGENT
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".secpack"))
	v.AddConfigPath("/etc/secpack")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults + env vars.
	}

	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return unmarshal(v)
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		// Defaults are static; a decode failure here is a programming error.
		panic(err)
	}
	return cfg
}

// Validate reports configuration that makes the EDGAR client unusable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SEC.UserAgent) == "" {
		return ErrMissingUserAgent
	}
	return nil
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SECPACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// EDGAR fair-access policy allows 10 requests/second.
	v.SetDefault("sec.user_agent", "")
	v.SetDefault("sec.requests_per_second", 10.0)
	v.SetDefault("sec.ticker_cache_ttl", 24*time.Hour)
	v.SetDefault("sec.timeout", 60*time.Second)
	v.SetDefault("sec.retry.max_attempts", 5)
	v.SetDefault("sec.retry.initial_interval", 500*time.Millisecond)
	v.SetDefault("sec.retry.max_interval", 8*time.Second)

	v.SetDefault("pack.days_back", 365)
	v.SetDefault("pack.max_exhibits", 25)
	v.SetDefault("pack.max_mb", 75)
	v.SetDefault("pack.exhibits", true)
	v.SetDefault("pack.deep", false)
	v.SetDefault("pack.full_history", true)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("tracing.exporter", "none")
}

// overrideFromEnv explicitly reads keys that AutomaticEnv misses when no
// config file declares them.
func overrideFromEnv(cfg *Config) {
	if ua := os.Getenv("SECPACK_SEC_USER_AGENT"); ua != "" {
		cfg.SEC.UserAgent = ua
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
