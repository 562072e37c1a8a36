package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string `yaml:"token"`
	Mode     string `yaml:"mode"` // polling | webhook
	Username string `yaml:"username"`
	Workers  int    `yaml:"workers"` // pipeline worker pool size
}

type WebhookConfig struct {
	Path   string `yaml:"path"`
	Secret string `yaml:"secret"` // shared secret checked against the inbound header
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type LimitsConfig struct {
	MaxDuration      time.Duration `yaml:"max_duration"`
	MaxBytes         int64         `yaml:"max_bytes"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

type ExtractorConfig struct {
	Quality       string  `yaml:"quality"`        // yt-dlp format selector
	Retries       int     `yaml:"retries"`        // collaborator-side retry count
	SocketTimeout float64 `yaml:"socket_timeout"` // seconds
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty disables rate limiting
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // empty disables run history
}

type AdminConfig struct {
	Secret     string        `yaml:"secret"` // admin API login secret; empty disables the API
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Limits    LimitsConfig    `yaml:"limits"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Admin     AdminConfig     `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and validates.
// A .env file next to the process, when present, is loaded first; when
// bot.token is absent from the YAML it falls back to the TELEGRAM_TOKEN
// environment variable.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = "/webhook/telegram"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Limits.MaxDuration <= 0 {
		cfg.Limits.MaxDuration = 15 * time.Minute
	}
	if cfg.Limits.MaxBytes <= 0 {
		cfg.Limits.MaxBytes = 50 << 20 // Telegram bot upload ceiling
	}
	if cfg.Limits.ProgressInterval <= 0 {
		cfg.Limits.ProgressInterval = 800 * time.Millisecond
	}
	if cfg.Extractor.Quality == "" {
		cfg.Extractor.Quality = "b"
	}
	if cfg.Extractor.Retries <= 0 {
		cfg.Extractor.Retries = 3
	}
	if cfg.Extractor.SocketTimeout <= 0 {
		cfg.Extractor.SocketTimeout = 30
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}

	if cfg.Bot.Token == "" {
		cfg.Bot.Token = os.Getenv("TELEGRAM_TOKEN")
	}
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Bot.Mode != "polling" && cfg.Bot.Mode != "webhook" {
		return nil, fmt.Errorf("bot.mode must be polling or webhook, got %q", cfg.Bot.Mode)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
