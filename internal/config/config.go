// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for links in outbound email.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// Database holds MariaDB connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Auth holds credential and session settings.
	Auth AuthConfig

	// Mail holds outbound SMTP settings.
	Mail MailConfig
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so container
// orchestrators can manage each independently. If DATABASE_URL is set, it
// takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username (default: "gatehouse").
	User string

	// Password is the MariaDB password (default: "gatehouse").
	Password string

	// Name is the database name (default: "gatehouse").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds credential and session settings. The two peppers are
// deployment-wide secrets; they are injected here rather than read as
// ambient globals so tests can substitute deterministic values.
type AuthConfig struct {
	// PasswordPepper is mixed into every password digest alongside the
	// per-user salt. Never stored with the records. Rotating it
	// invalidates every stored password.
	PasswordPepper string

	// ResetPepper keys the derivation of password-reset tokens. Kept
	// separate from PasswordPepper so the two capabilities can be
	// rotated independently.
	ResetPepper string

	// RememberDays is the cookie lifetime, in days, when the user checks
	// "remember me" at login. Without the flag the cookie is session-only.
	RememberDays int

	// SweepMaxAgeDays is the cutoff for the session sweep: device
	// sessions unused for this many days are deleted.
	SweepMaxAgeDays int

	// ResetWindow is the bucket width for reset tokens. A token is valid
	// for one to two bucket widths depending on when in the bucket it
	// was issued.
	ResetWindow time.Duration

	// CacheSize is the capacity of each identity cache (entries).
	CacheSize int
}

// MailConfig holds outbound SMTP settings. An empty Host disables sending;
// the mailer then logs messages instead, which is what development wants.
type MailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string

	// Encryption is "starttls" (default), "ssl", or "none".
	Encryption string
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "gatehouse"),
			Password:        getEnv("DB_PASSWORD", "gatehouse"),
			Name:            getEnv("DB_NAME", "gatehouse"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			PasswordPepper:  getEnv("PASSWORD_PEPPER", ""),
			ResetPepper:     getEnv("RESET_PEPPER", ""),
			RememberDays:    getEnvInt("AUTH_REMEMBER_DAYS", 14),
			SweepMaxAgeDays: getEnvInt("AUTH_SWEEP_MAX_AGE_DAYS", 14),
			ResetWindow:     getEnvDuration("RESET_WINDOW", time.Hour),
			CacheSize:       getEnvInt("IDENTITY_CACHE_SIZE", 128),
		},

		Mail: MailConfig{
			Host:        getEnv("SMTP_HOST", ""),
			Port:        getEnvInt("SMTP_PORT", 587),
			Username:    getEnv("SMTP_USERNAME", ""),
			Password:    getEnv("SMTP_PASSWORD", ""),
			FromName:    getEnv("SMTP_FROM_NAME", "Gatehouse"),
			FromAddress: getEnv("SMTP_FROM_ADDRESS", "noreply@localhost"),
			Encryption:  getEnv("SMTP_ENCRYPTION", "starttls"),
		},
	}

	// The peppers are security-critical in production. Case-insensitive
	// check catches common variants like "Production", "prod", etc.
	envLower := strings.ToLower(cfg.Env)
	if envLower == "production" || envLower == "prod" {
		if len(cfg.Auth.PasswordPepper) < 32 {
			return nil, fmt.Errorf("PASSWORD_PEPPER must be at least 32 characters in production")
		}
		if len(cfg.Auth.ResetPepper) < 32 {
			return nil, fmt.Errorf("RESET_PEPPER must be at least 32 characters in production")
		}
	}

	// Dev-only defaults so local dev works without a .env file.
	if cfg.Auth.PasswordPepper == "" {
		cfg.Auth.PasswordPepper = "dev-password-pepper-do-not-use-in-production"
	}
	if cfg.Auth.ResetPepper == "" {
		cfg.Auth.ResetPepper = "dev-reset-pepper-do-not-use-in-production"
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "1h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
