package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port           int           `yaml:"port"`
	JWTSecret      string        `yaml:"jwt_secret"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// WebhookConfig caps Telegram deliveries per bot. A zero limit disables it.
type WebhookConfig struct {
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
	// SecretKey derives the per-bot secret_token given to setWebhook. Empty disables the check.
	SecretKey string `yaml:"secret_key"`
}

// SecurityConfig holds the optional key bot tokens are sealed with at rest.
type SecurityConfig struct {
	TokenKey string `yaml:"token_key"`
}

// TelegramConfig points the display adapter at the Bot API.
type TelegramConfig struct {
	APIEndpoint    string        `yaml:"api_endpoint"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	BotCacheTTL    time.Duration `yaml:"bot_cache_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SchedulerConfig describes the external cron scheduler and the target it invokes.
type SchedulerConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Group          string        `yaml:"group"`
	Prefix         string        `yaml:"prefix"`
	TargetArn      string        `yaml:"target_arn"`
	RoleArn        string        `yaml:"role_arn"`
	MaxEventAge    time.Duration `yaml:"max_event_age"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ResyncInterval time.Duration `yaml:"resync_interval"`
}

// RoutesConfig describes the HTTP route registry that fronts bot webhooks.
type RoutesConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	APIID          string        `yaml:"api_id"`
	IntegrationID  string        `yaml:"integration_id"`
	Prefix         string        `yaml:"prefix"`
	PublicBaseURL  string        `yaml:"public_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type FeedConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	Workers      int           `yaml:"workers"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

type PollsConfig struct {
	MaxCASAttempts int           `yaml:"max_cas_attempts"`
	CASDelay       time.Duration `yaml:"cas_delay"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Routes    RoutesConfig    `yaml:"routes"`
	Feed      FeedConfig      `yaml:"feed"`
	Polls     PollsConfig     `yaml:"polls"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and validates.
// In dev mode the external gateways are optional.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.Admin.RequestTimeout <= 0 {
		cfg.Admin.RequestTimeout = 15 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Scheduler.Group == "" {
		cfg.Scheduler.Group = "default"
	}
	if cfg.Scheduler.MaxEventAge <= 0 {
		cfg.Scheduler.MaxEventAge = time.Minute
	}
	if cfg.Scheduler.RequestTimeout <= 0 {
		cfg.Scheduler.RequestTimeout = 15 * time.Second
	}
	if cfg.Scheduler.ResyncInterval <= 0 {
		cfg.Scheduler.ResyncInterval = time.Hour
	}
	if cfg.Routes.RequestTimeout <= 0 {
		cfg.Routes.RequestTimeout = 15 * time.Second
	}
	if cfg.Routes.Prefix == "" {
		cfg.Routes.Prefix = "/webhook/"
	}
	if !strings.HasSuffix(cfg.Routes.Prefix, "/") {
		cfg.Routes.Prefix += "/"
	}
	if cfg.Feed.PollInterval <= 0 {
		cfg.Feed.PollInterval = 2 * time.Second
	}
	if cfg.Feed.BatchSize <= 0 {
		cfg.Feed.BatchSize = 100
	}
	if cfg.Feed.Workers <= 0 {
		cfg.Feed.Workers = 4
	}
	if cfg.Feed.LockTTL <= 0 {
		cfg.Feed.LockTTL = 30 * time.Second
	}
	if cfg.Polls.MaxCASAttempts <= 0 {
		cfg.Polls.MaxCASAttempts = 10
	}
	if cfg.Polls.CASDelay <= 0 {
		cfg.Polls.CASDelay = 20 * time.Millisecond
	}
	if cfg.Polls.SweepInterval <= 0 {
		cfg.Polls.SweepInterval = 10 * time.Minute
	}
	if cfg.Webhook.RateWindow <= 0 {
		cfg.Webhook.RateWindow = time.Second
	}
	if cfg.Telegram.APIEndpoint == "" {
		cfg.Telegram.APIEndpoint = "https://api.telegram.org/bot%s/%s"
	}
	if cfg.Telegram.RequestTimeout <= 0 {
		cfg.Telegram.RequestTimeout = 10 * time.Second
	}
	if cfg.Telegram.BotCacheTTL <= 0 {
		cfg.Telegram.BotCacheTTL = 5 * time.Minute
	}
}

func (cfg *Config) validate() error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Scheduler.Prefix == "" {
		return errors.New("scheduler.prefix is required")
	}
	if cfg.Scheduler.TargetArn == "" {
		return errors.New("scheduler.target_arn is required")
	}
	if n := len(cfg.Security.TokenKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return errors.New("security.token_key must be 16, 24 or 32 bytes")
	}
	if cfg.Runtime.Dev {
		return nil
	}
	if cfg.Scheduler.BaseURL == "" {
		return errors.New("scheduler.base_url is required")
	}
	if cfg.Routes.BaseURL == "" || cfg.Routes.APIID == "" || cfg.Routes.IntegrationID == "" {
		return errors.New("routes.base_url, routes.api_id and routes.integration_id are required")
	}
	if cfg.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required")
	}
	return nil
}
