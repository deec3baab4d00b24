// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`       // HS256 secret shared with the session issuer
	Issuer         string `yaml:"issuer"`           // expected iss claim; empty skips the check
	InternalAPIKey string `yaml:"internal_api_key"` // bearer key for collaborator events
}

type RewardsConfig struct {
	CatalogPath  string        `yaml:"catalog_path"` // empty uses the built-in catalog
	RedeemLimit  int           `yaml:"redeem_limit"`
	RedeemWindow time.Duration `yaml:"redeem_window"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

// PlanLimit caps usage for one plan. Zero means unlimited.
type PlanLimit struct {
	DailyThreads      int64 `yaml:"daily_threads"`
	MonthlyCostMicros int64 `yaml:"monthly_cost_micros"`
}

type Config struct {
	HTTP     HTTPConfig           `yaml:"http"`
	Log      LogConfig            `yaml:"log"`
	Database DatabaseConfig       `yaml:"database"`
	Redis    RedisConfig          `yaml:"redis"`
	Auth     AuthConfig           `yaml:"auth"`
	Rewards  RewardsConfig        `yaml:"rewards"`
	Limits   map[string]PlanLimit `yaml:"limits"` // keyed by plan name

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(configPath string, dev bool) (*Config, error) {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes YAML, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Auth.InternalAPIKey == "" {
		return nil, errors.New("auth.internal_api_key is required")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Rewards.RedeemLimit <= 0 {
		cfg.Rewards.RedeemLimit = 5
	}
	if cfg.Rewards.RedeemWindow <= 0 {
		cfg.Rewards.RedeemWindow = time.Minute
	}
	if cfg.Rewards.LockTTL <= 0 {
		cfg.Rewards.LockTTL = 5 * time.Second
	}
	if cfg.Limits == nil {
		cfg.Limits = map[string]PlanLimit{
			"free": {DailyThreads: 3},
		}
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
