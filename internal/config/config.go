// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the province CMS configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Env        string `env:"PROVINCE_ENV" envDefault:"development"`
	LogLevel   string `env:"PROVINCE_LOG_LEVEL" envDefault:"info"`
	ServerHost string `env:"PROVINCE_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"PROVINCE_SERVER_PORT" envDefault:"8080"`

	// Database
	DBDriver     string `env:"PROVINCE_DB_DRIVER" envDefault:"sqlite"`
	DBPath       string `env:"PROVINCE_DB_PATH" envDefault:"./data/province.db"`
	DBHost       string `env:"PROVINCE_DB_HOST" envDefault:"127.0.0.1"`
	DBPort       int    `env:"PROVINCE_DB_PORT" envDefault:"3306"`
	DBName       string `env:"PROVINCE_DB_NAME" envDefault:"province"`
	DBUser       string `env:"PROVINCE_DB_USER" envDefault:"province"`
	DBPassword   string `env:"PROVINCE_DB_PASSWORD"`
	DBMaxOpen    int    `env:"PROVINCE_DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdle    int    `env:"PROVINCE_DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBRetries    int    `env:"PROVINCE_DB_CONNECT_RETRIES" envDefault:"5"`

	// Security
	SessionSecret    string        `env:"PROVINCE_SESSION_SECRET,required"`
	IdleTimeout      time.Duration `env:"PROVINCE_IDLE_TIMEOUT" envDefault:"30m"`
	UnknownUserDelay time.Duration `env:"PROVINCE_UNKNOWN_USER_DELAY" envDefault:"250ms"`
	CORSOrigins      []string      `env:"PROVINCE_CORS_ORIGINS" envSeparator:","`
	APIRateLimit     float64       `env:"PROVINCE_API_RATE_LIMIT" envDefault:"20"`
	APIRateBurst     int           `env:"PROVINCE_API_RATE_BURST" envDefault:"60"`

	// Shared state. When set, sessions, login counters and the settings
	// cache live in Redis so several instances can run side by side.
	RedisURL    string `env:"PROVINCE_REDIS_URL"`
	CachePrefix string `env:"PROVINCE_CACHE_PREFIX" envDefault:"province:"`
	CacheTTL    int    `env:"PROVINCE_CACHE_TTL" envDefault:"3600"`

	// Files
	UploadsDir      string `env:"PROVINCE_UPLOADS_DIR" envDefault:"./uploads"`
	MaxUploadSizeMB int    `env:"PROVINCE_MAX_UPLOAD_MB" envDefault:"5"`
	SPADir          string `env:"PROVINCE_SPA_DIR"`

	// Public site
	SiteURL          string `env:"PROVINCE_SITE_URL"`
	DisallowCrawlers bool   `env:"PROVINCE_DISALLOW_CRAWLERS" envDefault:"false"`

	// Maintenance
	AuditRetentionDays   int `env:"PROVINCE_AUDIT_RETENTION_DAYS" envDefault:"365"`
	DeletedRetentionDays int `env:"PROVINCE_DELETED_RETENTION_DAYS" envDefault:"90"`

	// GeoIP configuration
	GeoIPDBPath string `env:"PROVINCE_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file

	// Initial administrator, created only when no users exist.
	AdminUsername string `env:"PROVINCE_ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"PROVINCE_ADMIN_PASSWORD"`
	AdminEmail    string `env:"PROVINCE_ADMIN_EMAIL" envDefault:"admin@example.com"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedis returns true if a shared Redis store is configured.
func (c Config) UseRedis() bool {
	return c.RedisURL != ""
}

// GeoIPEnabled returns true if GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// MaxUploadBytes returns the upload ceiling in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) << 20
}

// MySQLDSN builds the go-sql-driver/mysql data source name.
func (c Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&clientFoundRows=true&charset=utf8mb4&collation=utf8mb4_unicode_ci&loc=UTC",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that struct tags cannot express.
func (c *Config) Validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("PROVINCE_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(c.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if c.SessionSecret == weak {
			return fmt.Errorf("PROVINCE_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(c.SessionSecret) {
		slog.Warn("PROVINCE_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	switch c.DBDriver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("PROVINCE_DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverMySQL, c.DBDriver)
	}

	switch c.Env {
	case "development", "production":
	default:
		return fmt.Errorf("PROVINCE_ENV must be development or production, got %q", c.Env)
	}

	if c.IdleTimeout <= 0 {
		return fmt.Errorf("PROVINCE_IDLE_TIMEOUT must be positive")
	}
	if c.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("PROVINCE_MAX_UPLOAD_MB must be positive")
	}

	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
