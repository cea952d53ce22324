// Package config loads the daemon configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Store backends selectable via BOOKFLOW_STORE.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"
)

// Config is the daemon configuration. All values come from BOOKFLOW_*
// environment variables.
type Config struct {
	Listen     string // BOOKFLOW_LISTEN, default ":8080"
	BaseDomain string // BOOKFLOW_BASE_DOMAIN, required

	Store       string // BOOKFLOW_STORE, default "sqlite"
	SQLitePath  string // BOOKFLOW_SQLITE_PATH, default "bookflow.db"
	PostgresDSN string // BOOKFLOW_POSTGRES_DSN
	RedisAddr   string // BOOKFLOW_REDIS_ADDR
	MongoURI    string // BOOKFLOW_MONGO_URI
	MongoDB     string // BOOKFLOW_MONGO_DB, default "bookflow"

	SweepInterval time.Duration // BOOKFLOW_SWEEP_INTERVAL, default 30s
	LogLevel      string        // BOOKFLOW_LOG_LEVEL, default "info"

	// Tenants seeds the in-memory domain store when the selected store
	// has no domain table (everything except sqlite). Comma-separated
	// "key=orgID" pairs; keys containing a dot are custom domains,
	// anything else is a subdomain of BaseDomain.
	Tenants map[string]string // BOOKFLOW_TENANTS
}

// FromEnv reads and validates the configuration.
func FromEnv() (Config, error) {
	cfg := Config{
		Listen:        getenv("BOOKFLOW_LISTEN", ":8080"),
		BaseDomain:    os.Getenv("BOOKFLOW_BASE_DOMAIN"),
		Store:         strings.ToLower(getenv("BOOKFLOW_STORE", StoreSQLite)),
		SQLitePath:    getenv("BOOKFLOW_SQLITE_PATH", "bookflow.db"),
		PostgresDSN:   os.Getenv("BOOKFLOW_POSTGRES_DSN"),
		RedisAddr:     os.Getenv("BOOKFLOW_REDIS_ADDR"),
		MongoURI:      os.Getenv("BOOKFLOW_MONGO_URI"),
		MongoDB:       getenv("BOOKFLOW_MONGO_DB", "bookflow"),
		SweepInterval: 30 * time.Second,
		LogLevel:      getenv("BOOKFLOW_LOG_LEVEL", "info"),
	}

	if raw := os.Getenv("BOOKFLOW_SWEEP_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BOOKFLOW_SWEEP_INTERVAL %q: %w", raw, err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("BOOKFLOW_SWEEP_INTERVAL must be positive, got %q", raw)
		}
		cfg.SweepInterval = d
	}

	if raw := os.Getenv("BOOKFLOW_TENANTS"); raw != "" {
		cfg.Tenants = make(map[string]string)
		for _, pair := range strings.Split(raw, ",") {
			key, org, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || key == "" || org == "" {
				return Config{}, fmt.Errorf("invalid BOOKFLOW_TENANTS entry %q", pair)
			}
			cfg.Tenants[key] = org
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BaseDomain == "" {
		return fmt.Errorf("BOOKFLOW_BASE_DOMAIN is required")
	}

	switch c.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("BOOKFLOW_POSTGRES_DSN is required for store %q", c.Store)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("BOOKFLOW_REDIS_ADDR is required for store %q", c.Store)
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("BOOKFLOW_MONGO_URI is required for store %q", c.Store)
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
