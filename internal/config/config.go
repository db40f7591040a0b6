package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type SolverConfig struct {
	// Backend is "local" (SAT executable on this machine) or "http" (external solving service)
	Backend     string            `yaml:"backend"`
	URL         string            `yaml:"url"`
	Timeout     time.Duration     `yaml:"timeout"`
	SAT         string            `yaml:"sat"`
	Executables map[string]string `yaml:"executables,omitempty"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	// An empty address keeps leases in process memory
	Addr     string        `yaml:"addr"`
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Solver   SolverConfig   `yaml:"solver"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
}

// LeaseMargin is the time a lease must hold beyond the solver timeout to cover
// validation, compilation and persistence
const LeaseMargin = 30 * time.Second

func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Solver:   SolverConfig{Backend: "local", Timeout: 30 * time.Second, SAT: "kissat"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "shiftsync.db"},
		Redis:    RedisConfig{LeaseTTL: 5 * time.Minute},
	}
}

// Load reads the YAML file at path over the defaults, then applies .env and environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	// Load .env if present
	_ = godotenv.Load()

	config.Server.Addr = getEnv("SHIFTSYNC_ADDR", config.Server.Addr)
	config.Solver.Backend = getEnv("SOLVER_BACKEND", config.Solver.Backend)
	config.Solver.URL = getEnv("SOLVER_URL", config.Solver.URL)
	config.Solver.SAT = getEnv("SAT_SOLVER", config.Solver.SAT)
	config.Database.Driver = getEnv("DB_DRIVER", config.Database.Driver)
	config.Database.DSN = getEnv("DB_URL", config.Database.DSN)
	config.Redis.Addr = getEnv("REDIS_ADDR", config.Redis.Addr)

	var err error
	if config.Solver.Timeout, err = getDuration("SOLVER_TIMEOUT", config.Solver.Timeout); err != nil {
		return nil, err
	}
	if config.Redis.LeaseTTL, err = getDuration("LEASE_TTL", config.Redis.LeaseTTL); err != nil {
		return nil, err
	}

	return config, config.Validate()
}

func (config *Config) Validate() error {
	switch config.Solver.Backend {
	case "local":
	case "http":
		if config.Solver.URL == "" {
			return fmt.Errorf("solver.url is required by the http backend")
		}
	default:
		return fmt.Errorf("unknown solver backend %q, expected local or http", config.Solver.Backend)
	}
	if config.Solver.Timeout <= 0 {
		return fmt.Errorf("solver.timeout must be positive")
	}
	if config.Redis.LeaseTTL < config.Solver.Timeout+LeaseMargin {
		return fmt.Errorf("redis.lease_ttl (%v) must outlast solver.timeout (%v) by at least %v", config.Redis.LeaseTTL, config.Solver.Timeout, LeaseMargin)
	}
	return nil
}

// getEnv returns the environment variable or the fallback when unset
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}
