package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config holds the indexing loop's tunables (spec §6). Field names are
// semantic, not an external API.
type Config struct {
	Env string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	PollDelaySeconds       int  `env:"POLL_DELAY_SECONDS" envDefault:"10" validate:"min=1,max=3600"`
	NumWorkersPerPool      int  `env:"NUM_WORKERS_PER_POOL" envDefault:"4" validate:"min=1,max=256"`
	StallTimeoutHours      int  `env:"STALL_TIMEOUT_HOURS" envDefault:"3" validate:"min=1,max=72"`
	MinThreadsMLModels     int  `env:"MIN_THREADS_ML_MODELS" envDefault:"1" validate:"min=1,max=256"`
	DistributedPoolEnabled bool `env:"DISTRIBUTED_POOL_ENABLED" envDefault:"false"`

	// RedisAddr is only read when DistributedPoolEnabled is true.
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
