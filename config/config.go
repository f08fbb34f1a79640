// Package config reads server settings from the environment, loading a .env
// file first when one is present.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port        string
	GinMode     string
	JWTSecret   string
	TokenTTL    time.Duration
	StoreDriver string

	MongoURI      string
	MongoDatabase string
	PostgresDSN   string
	SQLitePath    string

	CORSOrigins []string
	// RateLimit is the number of auth requests allowed per client IP per minute.
	RateLimit int
}

// Load reads the configuration. Files listed in envFiles are loaded before the
// process environment is read; missing files are skipped.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:          getenv("PORT", "8080"),
		GinMode:       getenv("GIN_MODE", "debug"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		StoreDriver:   strings.ToLower(getenv("STORE_DRIVER", DriverMongo)),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getenv("MONGODB_DATABASE", "forum"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		SQLitePath:    getenv("SQLITE_PATH", "data/forum.db"),
		CORSOrigins:   splitList(getenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}

	var err error
	if cfg.TokenTTL, err = time.ParseDuration(getenv("TOKEN_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	if cfg.RateLimit, err = strconv.Atoi(getenv("RATE_LIMIT", "30")); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.RateLimit <= 0 {
		return errors.New("RATE_LIMIT must be positive")
	}
	switch c.StoreDriver {
	case DriverMongo:
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN must be set for the postgres driver")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH must be set for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver == DriverMongo && c.MongoURI == "" {
		log.Println("MONGODB_URI not set, using default localhost")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
