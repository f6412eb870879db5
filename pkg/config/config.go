// Package config loads client settings from an optional config file and
// BANK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bank-client/pkg/logging"
	"bank-client/pkg/resilience"
	"bank-client/pkg/tokenstore"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "BANK"

// Config holds every setting of the client.
type Config struct {
	APIURL         string        `mapstructure:"api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	TokenStore      string `mapstructure:"token_store"`
	TokenPath       string `mapstructure:"token_path"`
	TokenPassphrase string `mapstructure:"token_passphrase"`
	RedisAddr       string `mapstructure:"redis_addr"`
	RedisPassword   string `mapstructure:"redis_password"`
	RedisDB         int    `mapstructure:"redis_db"`
	RedisKeyPrefix  string `mapstructure:"redis_key_prefix"`

	BreakerEnabled     bool          `mapstructure:"breaker_enabled"`
	BreakerFailures    uint32        `mapstructure:"breaker_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`

	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	MaxTransferAmount float64       `mapstructure:"max_transfer_amount"`

	StatusAddr string `mapstructure:"status_addr"`
	Metrics    string `mapstructure:"metrics"`

	PushURL       string `mapstructure:"push_url"`
	PushToken     string `mapstructure:"push_token"`
	DispatchQueue int    `mapstructure:"dispatch_queue"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"api_url":              "http://localhost:3000/api",
	"request_timeout":      "10s",
	"token_store":          tokenstore.BackendFile,
	"token_path":           "",
	"token_passphrase":     "",
	"redis_addr":           "localhost:6379",
	"redis_password":       "",
	"redis_db":             0,
	"redis_key_prefix":     "bank:",
	"breaker_enabled":      true,
	"breaker_failures":     5,
	"breaker_open_timeout": "30s",
	"refresh_interval":     "30s",
	"max_transfer_amount":  0,
	"status_addr":          "",
	"metrics":              "memory",
	"push_url":             "https://exp.host/--/api/v2/push/send",
	"push_token":           "",
	"dispatch_queue":       100,
	"log_level":            "warn",
	"log_format":           "console",
}

// Load reads configFile when set, then overlays BANK_* environment variables.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.TokenPath == "" {
		cfg.TokenPath = defaultTokenPath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading the environment.
func Default() *Config {
	return &Config{
		APIURL:             "http://localhost:3000/api",
		RequestTimeout:     10 * time.Second,
		TokenStore:         tokenstore.BackendMemory,
		RedisAddr:          "localhost:6379",
		RedisKeyPrefix:     "bank:",
		BreakerEnabled:     true,
		BreakerFailures:    5,
		BreakerOpenTimeout: 30 * time.Second,
		RefreshInterval:    30 * time.Second,
		Metrics:            "memory",
		PushURL:            "https://exp.host/--/api/v2/push/send",
		DispatchQueue:      100,
		LogLevel:           "warn",
		LogFormat:          "console",
	}
}

// Validate checks the settings for values no component can run with.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIURL)
	if c.APIURL == "" || err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("api_url %q must be an absolute http(s) URL", c.APIURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive"))
	}
	if c.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("refresh_interval must not be negative"))
	}
	if c.MaxTransferAmount < 0 {
		errs = append(errs, fmt.Errorf("max_transfer_amount must not be negative"))
	}
	if c.DispatchQueue <= 0 {
		errs = append(errs, fmt.Errorf("dispatch_queue must be positive"))
	}

	switch c.TokenStore {
	case tokenstore.BackendMemory, tokenstore.BackendRedis:
	case tokenstore.BackendFile:
		if c.TokenPath == "" {
			errs = append(errs, fmt.Errorf("token_path is required for the file token store"))
		}
	case tokenstore.BackendSecure:
		if c.TokenPath == "" {
			errs = append(errs, fmt.Errorf("token_path is required for the secure token store"))
		}
		if c.TokenPassphrase == "" {
			errs = append(errs, fmt.Errorf("token_passphrase is required for the secure token store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown token_store %q", c.TokenStore))
	}

	switch c.Metrics {
	case "memory", "prometheus", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown metrics backend %q", c.Metrics))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// TokenStoreConfig maps the settings onto a tokenstore configuration.
func (c *Config) TokenStoreConfig() tokenstore.Config {
	redis := tokenstore.DefaultRedisConfig()
	redis.Addr = c.RedisAddr
	redis.Password = c.RedisPassword
	redis.DB = c.RedisDB
	redis.KeyPrefix = c.RedisKeyPrefix

	return tokenstore.Config{
		Backend:    c.TokenStore,
		Path:       c.TokenPath,
		Passphrase: c.TokenPassphrase,
		Redis:      redis,
	}
}

// ResilienceConfig maps the settings onto a breaker configuration.
func (c *Config) ResilienceConfig() resilience.Config {
	cfg := resilience.DefaultConfig().WithTimeout(c.RequestTimeout)
	if c.BreakerFailures > 0 {
		cfg = cfg.WithConsecutiveFailures(c.BreakerFailures)
	}
	if c.BreakerOpenTimeout > 0 {
		cfg = cfg.WithOpenTimeout(c.BreakerOpenTimeout)
	}
	cfg.Enabled = c.BreakerEnabled
	return cfg
}

// LoggingConfig maps the settings onto a logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if c.LogLevel != "" {
		cfg.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Format = c.LogFormat
	}
	return cfg
}
