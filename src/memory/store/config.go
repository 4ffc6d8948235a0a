package store

import (
	"os"
	"time"
)

// Pool bounds: a capped pool, a bounded acquisition wait, and connection
// recycling after a maximum lifetime.
const (
	DefaultPoolSize           = 50
	DefaultConnectionLifetime = 30 * time.Minute
	DefaultAcquisitionTimeout = 30 * time.Second
)

// Config describes how to reach the graph database and how the connection
// pool is bounded.
type Config struct {
	URI      string
	Username string
	Password string
	Database string

	MaxConnectionPoolSize        int
	MaxConnectionLifetime        time.Duration
	ConnectionAcquisitionTimeout time.Duration
}

// DefaultConfig returns a config pointing at a local instance. The password
// is intentionally left empty; Open rejects configs without one.
func DefaultConfig() Config {
	return Config{
		URI:                          "bolt://localhost:7687",
		Username:                     "neo4j",
		Database:                     "neo4j",
		MaxConnectionPoolSize:        DefaultPoolSize,
		MaxConnectionLifetime:        DefaultConnectionLifetime,
		ConnectionAcquisitionTimeout: DefaultAcquisitionTimeout,
	}
}

// ConfigFromEnv builds a config from NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD,
// and NEO4J_DATABASE, falling back to defaults. A missing password is a
// configuration error, not a connection error.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Username = user
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Database = db
	}
	cfg.Password = os.Getenv("NEO4J_PASSWORD")
	if cfg.Password == "" {
		return Config{}, ErrMissingCredentials
	}
	return cfg, nil
}
