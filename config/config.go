// Package config loads ruleguard settings from config.yaml and RULEGUARD_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override
const EnvPrefix = "RULEGUARD"

// RateLimitConfig is the per-client request budget of the API
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=1"`
}

// APIConfig configures the HTTP API server
type APIConfig struct {
	Host         string          `mapstructure:"host"`
	Port         int             `mapstructure:"port" validate:"min=1,max=65535"`
	TLS          bool            `mapstructure:"tls"`
	CertFile     string          `mapstructure:"cert_file"`
	KeyFile      string          `mapstructure:"key_file"`
	ReadTimeout  time.Duration   `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration   `mapstructure:"write_timeout" validate:"gt=0"`
	MaxBodyBytes int64           `mapstructure:"max_body_bytes" validate:"gte=1024"`
	TrustProxy   bool            `mapstructure:"trust_proxy"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

// Addr returns the listen address
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig configures the SQLite rule store
type StorageConfig struct {
	SQLitePath    string `mapstructure:"sqlite_path" validate:"required"`
	RuleCacheSize int    `mapstructure:"rule_cache_size" validate:"gte=0"`
}

// AlertingConfig points the alert client at the alerting service
type AlertingConfig struct {
	URL        string        `mapstructure:"url" validate:"omitempty,url"`
	BasePath   string        `mapstructure:"base_path" validate:"required,startswith=/"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	XSRFHeader string        `mapstructure:"xsrf_header"`

	// BreakerFailures consecutive failures open the circuit; 0 disables it
	BreakerFailures int           `mapstructure:"breaker_failures" validate:"gte=0"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" validate:"gte=0"`
}

// RulesConfig holds rule creation defaults
type RulesConfig struct {
	DefaultOutputIndex string `mapstructure:"default_output_index" validate:"required"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// Config holds all configuration for the ruleguard service
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Log      LogConfig      `mapstructure:"log"`
}

func setDefaults() {
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8081)
	viper.SetDefault("api.tls", false)
	viper.SetDefault("api.cert_file", "server.crt")
	viper.SetDefault("api.key_file", "server.key")
	viper.SetDefault("api.read_timeout", "15s")
	viper.SetDefault("api.write_timeout", "15s")
	viper.SetDefault("api.max_body_bytes", 1<<20) // 1 MiB
	viper.SetDefault("api.trust_proxy", false)
	viper.SetDefault("api.rate_limit.requests_per_second", 10)
	viper.SetDefault("api.rate_limit.burst", 20)

	viper.SetDefault("storage.sqlite_path", "data/ruleguard.db")
	viper.SetDefault("storage.rule_cache_size", 1024)

	viper.SetDefault("alerting.url", "")
	viper.SetDefault("alerting.base_path", "/api/alert")
	viper.SetDefault("alerting.timeout", "30s")
	viper.SetDefault("alerting.xsrf_header", "ruleguard")
	viper.SetDefault("alerting.breaker_failures", 5)
	viper.SetDefault("alerting.breaker_cooldown", "30s")

	viper.SetDefault("rules.default_output_index", ".siem-signals")

	viper.SetDefault("log.level", "info")
}

// loadFromEnv sets up environment variable loading, e.g. RULEGUARD_API_PORT
func loadFromEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no file: defaults and env vars only
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

var structValidator = validator.New()

func validateConfig(config *Config) error {
	if err := structValidator.Struct(config); err != nil {
		return err
	}

	if config.API.TLS && (config.API.CertFile == "" || config.API.KeyFile == "") {
		return fmt.Errorf("api.tls requires api.cert_file and api.key_file")
	}
	if config.Alerting.BreakerFailures > 0 && config.Alerting.BreakerCooldown <= 0 {
		return fmt.Errorf("alerting.breaker_cooldown must be positive when alerting.breaker_failures is set")
	}
	if config.Storage.SQLitePath != ":memory:" && strings.Contains(config.Storage.SQLitePath, "..") {
		return fmt.Errorf("invalid storage.sqlite_path %q: path traversal not allowed", config.Storage.SQLitePath)
	}
	return nil
}
