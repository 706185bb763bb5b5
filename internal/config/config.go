// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ai-image-studio/internal/infra/logging"
	"ai-image-studio/internal/infra/redis"
	"ai-image-studio/internal/infra/storage"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type PlanConfig struct {
	Name     string `yaml:"name"`
	PriceID  string `yaml:"price_id"`
	Quota    int    `yaml:"quota"`
	PriceUSD int    `yaml:"price_usd"`
}

type BillingConfig struct {
	StripeAPIKey        string       `yaml:"stripe_api_key"`
	StripeWebhookSecret string       `yaml:"stripe_webhook_secret"`
	CheckoutSuccessURL  string       `yaml:"checkout_success_url"`
	CheckoutCancelURL   string       `yaml:"checkout_cancel_url"`
	PortalReturnURL     string       `yaml:"portal_return_url"`
	Plans               []PlanConfig `yaml:"plans"`
}

type ModelConfig struct {
	ReplicateToken string `yaml:"replicate_token"`
	ModelID        string `yaml:"model_id"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type SweeperConfig struct {
	Interval time.Duration `yaml:"interval"`
	Grace    time.Duration `yaml:"grace"`
}

type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Log       logging.LogConfig `yaml:"log"`
	Database  DatabaseConfig    `yaml:"database"`
	Redis     redis.Config      `yaml:"redis"`
	Storage   storage.Config    `yaml:"storage"`
	Auth      AuthConfig        `yaml:"auth"`
	Billing   BillingConfig     `yaml:"billing"`
	Model     ModelConfig       `yaml:"model"`
	RateLimit RateLimitConfig   `yaml:"rate_limit"`
	Sweeper   SweeperConfig     `yaml:"sweeper"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		// Generation requests wait on the model service.
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 10 << 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Model.ModelID == "" {
		cfg.Model.ModelID = "black-forest-labs/flux-kontext-pro"
	}
	if cfg.RateLimit.Requests <= 0 {
		cfg.RateLimit.Requests = 10
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Sweeper.Interval <= 0 {
		cfg.Sweeper.Interval = time.Hour
	}
	if cfg.Sweeper.Grace <= 0 {
		cfg.Sweeper.Grace = 72 * time.Hour
	}
}

func validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if cfg.Billing.StripeAPIKey == "" {
		return errors.New("billing.stripe_api_key is required")
	}
	if cfg.Billing.StripeWebhookSecret == "" {
		return errors.New("billing.stripe_webhook_secret is required")
	}
	if len(cfg.Billing.Plans) == 0 {
		return errors.New("billing.plans must name at least one plan")
	}
	if cfg.Model.ReplicateToken == "" {
		return errors.New("model.replicate_token is required")
	}
	return nil
}
