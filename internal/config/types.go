package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds every server-level option for the prediction engine.
type Config struct {
	Server ServerConfig `koanf:"server"`
}

// ServerConfig collects the bootstrap knobs for the single tipgate binary.
type ServerConfig struct {
	Listen    ListenConfig    `koanf:"listen"`
	Logging   LoggingConfig   `koanf:"logging"`
	Store     StoreConfig     `koanf:"store"`
	Query     QueryConfig     `koanf:"query"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Staleness StalenessConfig `koanf:"staleness"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level, format, and correlation ID wiring.
type LoggingConfig struct {
	Level             string `koanf:"level"`
	Format            string `koanf:"format"`
	CorrelationHeader string `koanf:"correlationHeader"`
}

// StoreConfig selects and tunes the entity store backend.
type StoreConfig struct {
	Backend string           `koanf:"backend"`
	Timeout string           `koanf:"timeout"`
	Redis   RedisStoreConfig `koanf:"redis"`
}

// RedisStoreConfig carries connection settings for the redis backend.
type RedisStoreConfig struct {
	Address  string              `koanf:"address"`
	Username string              `koanf:"username"`
	Password string              `koanf:"password"`
	DB       int                 `koanf:"db"`
	TLS      RedisStoreTLSConfig `koanf:"tls"`
}

// RedisStoreTLSConfig controls transport security for the redis backend.
type RedisStoreTLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// QueryConfig bounds list responses.
type QueryConfig struct {
	DefaultPageSize int `koanf:"defaultPageSize"`
	MaxPageSize     int `koanf:"maxPageSize"`
}

// IngestConfig points at the manual-entry drop folder. An empty folder
// disables the feed watcher.
type IngestConfig struct {
	Folder string `koanf:"folder"`
}

// StalenessConfig tunes the informational staleness sweep. The sweep
// only reports; it never purges.
type StalenessConfig struct {
	MaxAge        string `koanf:"maxAge"`
	SweepInterval string `koanf:"sweepInterval"`
}

// DefaultConfig returns the baseline snapshot the loader starts from
// before file and environment overrides apply.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ListenConfig{
				Address: "0.0.0.0",
				Port:    8080,
			},
			Logging: LoggingConfig{
				Level:             "info",
				Format:            "json",
				CorrelationHeader: "X-Request-Id",
			},
			Store: StoreConfig{
				Backend: "memory",
				Timeout: "2s",
			},
			Query: QueryConfig{
				DefaultPageSize: 20,
				MaxPageSize:     100,
			},
			Staleness: StalenessConfig{
				MaxAge:        "6h",
				SweepInterval: "15m",
			},
		},
	}
}

// Validate rejects malformed snapshots before any component boots on
// them.
func (c Config) Validate() error {
	if c.Server.Listen.Port <= 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen port %d out of range", c.Server.Listen.Port)
	}

	switch strings.ToLower(c.Server.Store.Backend) {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Server.Store.Redis.Address) == "" {
			return fmt.Errorf("config: redis store backend requires an address")
		}
	default:
		return fmt.Errorf("config: unsupported store backend %q", c.Server.Store.Backend)
	}

	if _, err := parseDuration("store.timeout", c.Server.Store.Timeout); err != nil {
		return err
	}
	if _, err := parseDuration("staleness.maxAge", c.Server.Staleness.MaxAge); err != nil {
		return err
	}
	if _, err := parseDuration("staleness.sweepInterval", c.Server.Staleness.SweepInterval); err != nil {
		return err
	}

	if c.Server.Query.DefaultPageSize <= 0 {
		return fmt.Errorf("config: query defaultPageSize must be positive")
	}
	if c.Server.Query.MaxPageSize <= 0 {
		return fmt.Errorf("config: query maxPageSize must be positive")
	}
	if c.Server.Query.DefaultPageSize > c.Server.Query.MaxPageSize {
		return fmt.Errorf("config: query defaultPageSize %d exceeds maxPageSize %d",
			c.Server.Query.DefaultPageSize, c.Server.Query.MaxPageSize)
	}
	return nil
}

// StoreTimeout returns the parsed per-operation store bound.
func (c Config) StoreTimeout() time.Duration {
	d, _ := parseDuration("store.timeout", c.Server.Store.Timeout)
	return d
}

// StalenessMaxAge returns the parsed informational staleness threshold.
func (c Config) StalenessMaxAge() time.Duration {
	d, _ := parseDuration("staleness.maxAge", c.Server.Staleness.MaxAge)
	return d
}

// StalenessSweepInterval returns the parsed sweep cadence.
func (c Config) StalenessSweepInterval() time.Duration {
	d, _ := parseDuration("staleness.sweepInterval", c.Server.Staleness.SweepInterval)
	return d
}

func parseDuration(field, value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("config: %s required", field)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", field)
	}
	return d, nil
}
