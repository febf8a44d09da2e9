// Package config loads the YAML deployment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "CREDITWATCH_CONFIG"

	defaultConfigPath = "config.yaml"
	defaultListenAddr = ":8317"
	defaultJWTExpiry  = 24 * time.Hour
)

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// JWTConfig holds admin token signing settings.
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiry-hours"`
}

// Expiry returns the configured token lifetime.
func (c JWTConfig) Expiry() time.Duration {
	if c.ExpiryHours <= 0 {
		return defaultJWTExpiry
	}
	return time.Duration(c.ExpiryHours) * time.Hour
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	From           string `yaml:"from"`
	TimeoutSeconds int    `yaml:"timeout-seconds"`
}

// BootstrapConfig holds first-run seeding settings.
type BootstrapConfig struct {
	AdminUsername string `yaml:"admin-username"`
	AdminPassword string `yaml:"admin-password"`
	NotifyEmail   string `yaml:"notify-email"`
}

// LogConfig holds log output and rotation settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// Config is the root deployment configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	JWT       JWTConfig       `yaml:"jwt"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Log       LogConfig       `yaml:"log"`
}

// ResolveConfigPath picks the effective config file path: explicit flag value
// first, then the environment override, then the default.
func ResolveConfigPath(flagValue string) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if fromEnv := strings.TrimSpace(os.Getenv(EnvConfigPath)); fromEnv != "" {
		return fromEnv
	}
	return defaultConfigPath
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("config: empty path")
	}
	raw, errRead := os.ReadFile(filepath.Clean(path))
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	var cfg Config
	if errUnmarshal := yaml.Unmarshal(raw, &cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}
	cfg.applyDefaults()
	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.Listen) == "" {
		c.Server.Listen = defaultListenAddr
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt.secret is required")
	}
	return nil
}
