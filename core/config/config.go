// Package config provides environment-based configuration for accountguard.
//
// Configuration is loaded from environment variables using Viper, with
// defaults suitable for development. An optional file named by
// ACCOUNTGUARD_CONFIG (yaml, toml or json) is read first; environment
// variables override it.
//
// # Environment Variables
//
//   - STORE_TYPE: memory, sqlite, postgres, mysql, redis or mongo. Default: sqlite
//   - DSN: SQL connection string. Default: accountguard.db
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_PREFIX: Redis backend settings
//   - MONGO_URI, MONGO_DATABASE: MongoDB backend settings
//   - LOG_LEVEL: debug, info, warn, error. Default: info
//   - MAX_ATTEMPTS: failed logins before lockout. Default: 5
//   - ATTEMPT_WINDOW: window failed logins are counted over. Default: 15m
//   - LOCKOUT_DURATION: how long a lockout lasts. Default: 30m
//   - VERIFICATION_TTL, RESET_TTL: token lifetimes. Default: 24h
//   - PASSWORD_HASHER: bcrypt or argon2id. Default: bcrypt
//   - BCRYPT_COST: bcrypt work factor. Default: 12
//   - TELEMETRY_ENABLED: record OpenTelemetry spans and metrics. Default: true
//
// # Example Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileEnv names the environment variable pointing at an optional config file.
const FileEnv = "ACCOUNTGUARD_CONFIG"

type Config struct {
	StoreType string `mapstructure:"STORE_TYPE"`
	DSN       string `mapstructure:"DSN"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`

	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	LogLevel string `mapstructure:"LOG_LEVEL"`

	MaxAttempts     int           `mapstructure:"MAX_ATTEMPTS"`
	AttemptWindow   time.Duration `mapstructure:"ATTEMPT_WINDOW"`
	LockoutDuration time.Duration `mapstructure:"LOCKOUT_DURATION"`
	VerificationTTL time.Duration `mapstructure:"VERIFICATION_TTL"`
	ResetTTL        time.Duration `mapstructure:"RESET_TTL"`
	PasswordHasher  string        `mapstructure:"PASSWORD_HASHER"`
	BcryptCost      int           `mapstructure:"BCRYPT_COST"`

	TelemetryEnabled bool `mapstructure:"TELEMETRY_ENABLED"`
}

var defaults = map[string]any{
	"STORE_TYPE":        "sqlite",
	"DSN":               "accountguard.db",
	"REDIS_ADDR":        "localhost:6379",
	"REDIS_PASSWORD":    "",
	"REDIS_DB":          0,
	"REDIS_PREFIX":      "accountguard:",
	"MONGO_URI":         "mongodb://localhost:27017",
	"MONGO_DATABASE":    "accountguard",
	"LOG_LEVEL":         "info",
	"MAX_ATTEMPTS":      5,
	"ATTEMPT_WINDOW":    15 * time.Minute,
	"LOCKOUT_DURATION":  30 * time.Minute,
	"VERIFICATION_TTL":  24 * time.Hour,
	"RESET_TTL":         24 * time.Hour,
	"PASSWORD_HASHER":   "bcrypt",
	"BCRYPT_COST":       12,
	"TELEMETRY_ENABLED": true,
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := load(viper.New())
	if err != nil {
		// Defaults are static and always decode.
		panic(err)
	}
	return cfg
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString(FileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg, err := load(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(v *viper.Viper) (*Config, error) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.StoreType = strings.ToLower(strings.TrimSpace(cfg.StoreType))
	cfg.PasswordHasher = strings.ToLower(strings.TrimSpace(cfg.PasswordHasher))
	return &cfg, nil
}

// Validate rejects settings the lockout and token logic cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts))
	}
	for name, d := range map[string]time.Duration{
		"ATTEMPT_WINDOW":   c.AttemptWindow,
		"LOCKOUT_DURATION": c.LockoutDuration,
		"VERIFICATION_TTL": c.VerificationTTL,
		"RESET_TTL":        c.ResetTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.StoreType == "" {
		errs = append(errs, errors.New("STORE_TYPE must be set"))
	}
	switch c.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		errs = append(errs, fmt.Errorf("PASSWORD_HASHER must be bcrypt or argon2id, got %q", c.PasswordHasher))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
