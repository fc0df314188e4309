// Package config provides centralized configuration management for the
// strata server.
//
// Configuration is loaded from environment variables with sensible defaults.
// Use Load() to get a validated configuration instance.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Extraction ExtractionConfig
	Review     ReviewConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"60s"`
}

// Addr returns the server address in host:port format.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver          string        `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	URL             string        `env:"DATABASE_URL"`
	Path            string        `env:"STORAGE_PATH" envDefault:"strata.db"`
	Collection      string        `env:"STORAGE_COLLECTION" envDefault:"bores"`
	MaxConns        int           `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
}

// ExtractionConfig bounds workbook decoding and extraction.
type ExtractionConfig struct {
	MaxFileSize   int64         `env:"EXTRACT_MAX_FILE_SIZE" envDefault:"20971520"` // 20MB
	MaxConcurrent int           `env:"EXTRACT_MAX_CONCURRENT" envDefault:"4"`
	MaxWaitTime   time.Duration `env:"EXTRACT_MAX_WAIT_TIME" envDefault:"30s"`
	Timeout       time.Duration `env:"EXTRACT_TIMEOUT" envDefault:"2m"`
	Sheet         string        `env:"EXTRACT_SHEET"`
	PatternsFile  string        `env:"EXTRACT_PATTERNS_FILE"`
}

// ReviewConfig controls review sessions. A zero SessionTTL keeps sessions
// until they are saved or cancelled.
type ReviewConfig struct {
	SessionTTL      time.Duration `env:"REVIEW_SESSION_TTL" envDefault:"0s"`
	CleanupInterval time.Duration `env:"REVIEW_CLEANUP_INTERVAL" envDefault:"5m"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" envDefault:"100"`
	Burst             int  `env:"RATE_LIMIT_BURST" envDefault:"20"`
	ExtractPerMinute  int  `env:"RATE_LIMIT_EXTRACT_PER_MINUTE" envDefault:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
	EnableCSP      bool     `env:"ENABLE_CSP" envDefault:"true"`
	RequireAPIKey  bool     `env:"REQUIRE_API_KEY" envDefault:"false"`
	// APIKeys maps key to user as "key:user" pairs.
	APIKeys []string `env:"API_KEYS" envSeparator:","`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}
