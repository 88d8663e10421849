// Package config reads the server configuration from flags and environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultRunAddress = ":8080"
)

// Config holds the server configuration. Environment variables take
// precedence over command-line flags.
type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	DatabaseDriver string        `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURI    string        `env:"DATABASE_URI"`
	DBPath         string        `env:"DB_PATH" envDefault:"./data/splitsquad.db"`
	JWTSecret      string        `env:"JWT_SECRET"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	KafkaBrokers   []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string        `env:"KAFKA_TOPIC" envDefault:"splitsquad.group-events"`
	InviteTTL      time.Duration `env:"INVITE_TTL" envDefault:"168h"`
}

// Parse reads the configuration from environment variables and command-line flags.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "postgres database URI")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	// A DSN on its own selects postgres.
	if cfg.DatabaseURI != "" && cfg.DatabaseDriver == DriverSQLite && envDriverUnset() {
		cfg.DatabaseDriver = DriverPostgres
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envDriverUnset() bool {
	_, ok := os.LookupEnv("DATABASE_DRIVER")
	return !ok
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DatabaseDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURI == "" {
			return errors.New("DATABASE_URI is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.InviteTTL <= 0 {
		return fmt.Errorf("INVITE_TTL must be positive, got %s", c.InviteTTL)
	}
	return nil
}
