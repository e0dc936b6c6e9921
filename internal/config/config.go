// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaymentConfig struct {
	SePay struct {
		AccountNumber   string        `yaml:"account_number"`
		AccountName     string        `yaml:"account_name"`
		BankCode        string        `yaml:"bank_code"`
		WebhookAPIKey   string        `yaml:"webhook_api_key"`
		RateLimit       int           `yaml:"rate_limit"`        // QR creations per window
		RateLimitWindow time.Duration `yaml:"rate_limit_window"` // default 1m
	} `yaml:"sepay"`
	IntentTTL time.Duration `yaml:"intent_ttl"` // how long a transfer memo stays matchable
}

type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"` // ops channel for billing events
}

type SchedulerConfig struct {
	RenewInterval    time.Duration `yaml:"renew_interval"`
	RenewBatchSize   int           `yaml:"renew_batch_size"`
	ExpiryInterval   time.Duration `yaml:"expiry_interval"`
	ExpiryBatchLimit int           `yaml:"expiry_batch_limit"`
}

type AuthConfig struct {
	OpsAPIKey string        `yaml:"ops_api_key"` // exchanged for a session token at login
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Notify    NotifyConfig    `yaml:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Auth      AuthConfig      `yaml:"auth"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string = ""
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
	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Payment.IntentTTL <= 0 {
		cfg.Payment.IntentTTL = time.Hour
	}
	if cfg.Payment.SePay.RateLimit <= 0 {
		cfg.Payment.SePay.RateLimit = 30
	}
	if cfg.Payment.SePay.RateLimitWindow <= 0 {
		cfg.Payment.SePay.RateLimitWindow = time.Minute
	}
	if cfg.Scheduler.RenewInterval <= 0 {
		cfg.Scheduler.RenewInterval = time.Minute
	}
	if cfg.Scheduler.RenewBatchSize <= 0 {
		cfg.Scheduler.RenewBatchSize = 100
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = 10 * time.Minute
	}
	if cfg.Scheduler.ExpiryBatchLimit <= 0 {
		cfg.Scheduler.ExpiryBatchLimit = 500
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Payment.SePay.AccountNumber == "" {
		return nil, errors.New("payment.sepay.account_number is required")
	}
	if cfg.Payment.SePay.WebhookAPIKey == "" {
		return nil, errors.New("payment.sepay.webhook_api_key is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Auth.OpsAPIKey == "" {
		return nil, errors.New("auth.ops_api_key is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
