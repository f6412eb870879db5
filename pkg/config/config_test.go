package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bank-client/pkg/tokenstore"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("Expected 10s request timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.TokenStore != tokenstore.BackendFile {
		t.Errorf("Expected file token store, got %s", cfg.TokenStore)
	}
	if cfg.TokenPath == "" {
		t.Error("Expected a default token path")
	}
	if !cfg.BreakerEnabled {
		t.Error("Expected breaker enabled by default")
	}
	if cfg.MaxTransferAmount != 0 {
		t.Errorf("Expected no transfer maximum by default, got %v", cfg.MaxTransferAmount)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("BANK_API_URL", "https://bank.example.com/api/")
	t.Setenv("BANK_REQUEST_TIMEOUT", "3s")
	t.Setenv("BANK_TOKEN_STORE", "memory")
	t.Setenv("BANK_MAX_TRANSFER_AMOUNT", "10000")
	t.Setenv("BANK_BREAKER_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIURL != "https://bank.example.com/api" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.APIURL)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("Expected 3s, got %v", cfg.RequestTimeout)
	}
	if cfg.TokenStore != tokenstore.BackendMemory {
		t.Errorf("Expected memory store, got %s", cfg.TokenStore)
	}
	if cfg.MaxTransferAmount != 10000 {
		t.Errorf("Expected maximum 10000, got %v", cfg.MaxTransferAmount)
	}
	if cfg.BreakerEnabled {
		t.Error("Expected breaker disabled")
	}
	if cfg.ResilienceConfig().Enabled {
		t.Error("Expected resilience config disabled")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	content := "api_url: https://file.example.com\nrefresh_interval: 1m\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("BANK_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIURL != "https://file.example.com" {
		t.Errorf("Expected URL from file, got %q", cfg.APIURL)
	}
	if cfg.RefreshInterval != time.Minute {
		t.Errorf("Expected 1m refresh, got %v", cfg.RefreshInterval)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("Expected environment to override file, got %q", cfg.LogLevel)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"default", func(c *Config) {}, ""},
		{"relative url", func(c *Config) { c.APIURL = "/api" }, "api_url"},
		{"ftp url", func(c *Config) { c.APIURL = "ftp://bank" }, "api_url"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"negative maximum", func(c *Config) { c.MaxTransferAmount = -1 }, "max_transfer_amount"},
		{"secure without passphrase", func(c *Config) {
			c.TokenStore = tokenstore.BackendSecure
			c.TokenPath = "/tmp/x"
		}, "token_passphrase"},
		{"unknown store", func(c *Config) { c.TokenStore = "keychain" }, "token_store"},
		{"unknown metrics", func(c *Config) { c.Metrics = "statsd" }, "metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTokenStoreConfig(t *testing.T) {
	cfg := Default()
	cfg.TokenStore = tokenstore.BackendRedis
	cfg.RedisAddr = "redis:6379"
	cfg.RedisDB = 2

	ts := cfg.TokenStoreConfig()
	if ts.Backend != tokenstore.BackendRedis || ts.Redis.Addr != "redis:6379" || ts.Redis.DB != 2 {
		t.Errorf("Unexpected token store config: %+v", ts)
	}
}
