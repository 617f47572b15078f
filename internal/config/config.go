// Package config reads the service settings from the environment.
//
//	BIND_ADDR         listen address (default :8080)
//	DATABASE_URL      postgres connection string, required for STORAGE=postgres
//	STORAGE           postgres or memory (default postgres)
//	LOG_LEVEL         debug, info, warn or error (default debug)
//	LOG_FORMAT        text or json (default text)
//	DEBUG_MODE        show server error messages to clients
//	MIGRATE_ON_START  apply pending migrations before serving
//	RATE_LIMIT_RPS    requests per second per client, 0 disables limiting
//	RATE_LIMIT_BURST  (default 20)
//	READ_TIMEOUT      (default 10s)
//	WRITE_TIMEOUT     (default 30s)
//	PUBLIC_URL        base url used for links in the OPDS feed
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	BindAddr       string
	DatabaseURL    string
	Storage        string
	LogLevel       slog.Level
	LogFormat      string
	DebugMode      bool
	MigrateOnStart bool
	RateLimitRPS   float64
	RateLimitBurst int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PublicURL      string
}

// LoadEnvFiles loads .env and .env.local when present. Variables already set in
// the environment are left alone.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// Load reads the configuration, reporting every invalid value at once.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		BindAddr:       getEnvOrDefault("BIND_ADDR", ":8080"),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Storage:        strings.ToLower(getEnvOrDefault("STORAGE", StoragePostgres)),
		LogFormat:      strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text")),
		DebugMode:      getBoolEnv("DEBUG_MODE"),
		MigrateOnStart: getBoolEnv("MIGRATE_ON_START"),
		PublicURL:      strings.TrimSuffix(getEnvOrDefault("PUBLIC_URL", "http://localhost:8080"), "/"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnvOrDefault("LOG_LEVEL", "debug"))); err != nil {
		errs = append(errs, errors.New("LOG_LEVEL: one of debug, info, warn or error expected"))
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, errors.New("LOG_FORMAT: must be json or text"))
	}

	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL: required when STORAGE is postgres"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE: must be %s or %s", StoragePostgres, StorageMemory))
	}

	var err error

	if cfg.RateLimitRPS, err = strconv.ParseFloat(getEnvOrDefault("RATE_LIMIT_RPS", "0"), 64); err != nil || cfg.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS: non-negative number expected"))
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(getEnvOrDefault("RATE_LIMIT_BURST", "20")); err != nil || cfg.RateLimitBurst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST: positive integer expected"))
	}
	if cfg.ReadTimeout, err = time.ParseDuration(getEnvOrDefault("READ_TIMEOUT", "10s")); err != nil {
		errs = append(errs, fmt.Errorf("READ_TIMEOUT: %w", err))
	}
	if cfg.WriteTimeout, err = time.ParseDuration(getEnvOrDefault("WRITE_TIMEOUT", "30s")); err != nil {
		errs = append(errs, fmt.Errorf("WRITE_TIMEOUT: %w", err))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return cfg, nil
}

func getEnvOrDefault(key, default_ string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}

	return default_
}

func getBoolEnv(key string) bool {
	if val := strings.ToLower(os.Getenv(key)); val == "yes" || val == "on" || val == "true" || val == "1" {
		return true
	}

	return false
}
