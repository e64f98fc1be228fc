package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Provider ProviderConfig
	Cache    CacheConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

type ProviderConfig struct {
	BaseURL string `env:"PROVIDER_BASE_URL" env-default:"https://openexchangerates.org/api"`
	AppID   string `env:"PROVIDER_APP_ID"`
	Timeout time.Duration `env:"PROVIDER_TIMEOUT" env-default:"10s"`
}

type CacheConfig struct {
	Backend       string `env:"CACHE_BACKEND" env-default:"file"`
	Path          string `env:"CACHE_FILE" env-default:"price-fetcher-cache.json"`
	RedisAddr     string `env:"CACHE_REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"CACHE_REDIS_PASSWORD"`
	RedisDB       int    `env:"CACHE_REDIS_DB" env-default:"0"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
}

type MetricsConfig struct {
	// Addr, when set, exposes prometheus metrics over HTTP for the lifetime
	// of the command (e.g. ":9190").
	Addr string `env:"METRICS_ADDR"`
}

func LoadConfig() (*Config, error) {
	// A local .env is a convenience, not a requirement.
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &cfg, nil
}
