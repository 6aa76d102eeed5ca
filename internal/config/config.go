// README: Config structs for HTTP, backend API, Telegram, Redis, Postgres, queue and dispatch settings.
package config

import (
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Redis    RedisConfig    `mapstructure:"redis"`
	DB       DBConfig       `mapstructure:"database"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Events   EventsConfig   `mapstructure:"events"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// APIKey guards the order event endpoint; empty disables the check.
	APIKey string `mapstructure:"api_key"`
}

type BackendConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxElapsed time.Duration `mapstructure:"max_elapsed"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
	// Mode is "webhook" or "polling".
	Mode          string `mapstructure:"mode"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Debug         bool   `mapstructure:"debug"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DBConfig struct {
	DSN string `mapstructure:"dsn"`
	// Retention is how long delivery log rows are kept.
	Retention time.Duration `mapstructure:"retention"`
}

type QueueConfig struct {
	MaxWorkers  int           `mapstructure:"max_workers"`
	BatchSize   int           `mapstructure:"batch_size"`
	PullTimeout time.Duration `mapstructure:"pull_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	ErrorPause  time.Duration `mapstructure:"error_pause"`
}

type DispatchConfig struct {
	DefaultLanguage  string        `mapstructure:"default_language"`
	MinFarePercent   float64       `mapstructure:"min_fare_percent"`
	LanguageCacheTTL time.Duration `mapstructure:"language_cache_ttl"`
	SendTimeout      time.Duration `mapstructure:"send_timeout"`
}

type PaymentsConfig struct {
	ProviderToken string  `mapstructure:"provider_token"`
	Currency      string  `mapstructure:"currency"`
	MinTopUp      int64   `mapstructure:"min_top_up"`
	MaxTopUp      int64   `mapstructure:"max_top_up"`
	Presets       []int64 `mapstructure:"presets"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

type EventsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Queue    string `mapstructure:"queue"`
	Prefetch int    `mapstructure:"prefetch"`
}

type JobsConfig struct {
	DeliveryCleanup string `mapstructure:"delivery_cleanup"`
}

func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
