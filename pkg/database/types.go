package database

import (
	"time"
)

// Config holds configuration for the resolve cache database
type Config struct {
	// Connection settings
	DatabasePath      string        `koanf:"path"`
	MaxConnections    int           `koanf:"max_connections"`
	ConnectionTimeout time.Duration `koanf:"connection_timeout"`

	// Cache settings
	TTL             time.Duration `koanf:"ttl"`
	CleanupSchedule string        `koanf:"cleanup_schedule"`

	// Performance settings
	WALMode         bool   `koanf:"wal_mode"`
	SynchronousMode string `koanf:"synchronous_mode"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:      "hokko_cache.db",
		MaxConnections:    4,
		ConnectionTimeout: 10 * time.Second,

		TTL:             6 * time.Hour,
		CleanupSchedule: "@hourly",

		WALMode:         true,
		SynchronousMode: "NORMAL",
	}
}

// Validate validates the database configuration
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return ErrInvalidDatabasePath
	}
	if c.MaxConnections <= 0 {
		return ErrInvalidMaxConnections
	}
	if c.ConnectionTimeout <= 0 {
		return ErrInvalidConnectionTimeout
	}
	if c.TTL <= 0 {
		return ErrInvalidCacheTTL
	}
	if c.SynchronousMode != "OFF" && c.SynchronousMode != "NORMAL" && c.SynchronousMode != "FULL" {
		return ErrInvalidSynchronousMode
	}
	return nil
}

// CacheStats holds statistics about the resolve cache
type CacheStats struct {
	Live    int `json:"live"`
	Expired int `json:"expired"`
}
