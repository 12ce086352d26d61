// Package config holds the local reference queue service's own
// configuration, parsed from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all environment configuration for cmd/localqueue.
type Config struct {
	Port                int           `env:"PORT" envDefault:"8080"`
	DatabaseURL         string        `env:"DATABASE_URL,required"`
	VisibilityTimeout   time.Duration `env:"VISIBILITY_TIMEOUT" envDefault:"30s"`
	ReceiveMax          int           `env:"RECEIVE_MAX" envDefault:"10"`
	SweeperInterval     time.Duration `env:"SWEEPER_INTERVAL" envDefault:"60s"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" envDefault:"5s"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d", cfg.Port)
	}
	if cfg.ReceiveMax <= 0 {
		return nil, fmt.Errorf("invalid RECEIVE_MAX: %d", cfg.ReceiveMax)
	}

	return cfg, nil
}
