// Package config loads the service configuration from an optional yaml file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Database  DatabaseConfig            `yaml:"database"`
	Secrets   SecretsConfig             `yaml:"secrets"`
	Calendly  CalendlyConfig            `yaml:"calendly"`
	Providers map[string]ProviderConfig `yaml:"providers"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type SecretsConfig struct {
	// EncryptionKey is either a base64-encoded 32-byte key or an arbitrary
	// secret that a key is derived from.
	EncryptionKey string `yaml:"encryption_key"`
}

type CalendlyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
}

// ProviderConfig carries per-provider overrides, mainly base URLs for
// self-hosted gateways and tests.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Load reads the config file at path (missing file is not an error) and
// applies env overrides on top.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: "8090"},
		Database: DatabaseConfig{Path: "pulseboard.db"},
		Calendly: CalendlyConfig{
			AuthURL:  "https://auth.calendly.com/oauth/authorize",
			TokenURL: "https://auth.calendly.com/oauth/token",
		},
		Providers: map[string]ProviderConfig{},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("PULSEBOARD_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PULSEBOARD_ENCRYPTION_KEY"); v != "" {
		cfg.Secrets.EncryptionKey = v
	}
	if v := os.Getenv("CALENDLY_CLIENT_ID"); v != "" {
		cfg.Calendly.ClientID = v
	}
	if v := os.Getenv("CALENDLY_CLIENT_SECRET"); v != "" {
		cfg.Calendly.ClientSecret = v
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// ProviderBaseURL returns the configured base URL override for a provider
// id, or empty when the built-in default should be used.
func (c *Config) ProviderBaseURL(id string) string {
	if c.Providers == nil {
		return ""
	}
	return c.Providers[id].BaseURL
}
