// Package config loads service configuration from environment variables.
// Defaults are applied for unset values and the result is validated so the
// process fails fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Vault    VaultConfig
	Storage  StorageConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout covers synchronous imports, which block until every
	// batch has committed (default: 10m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"10m"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for
	// background imports (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig selects and sizes the backing store.
type DatabaseConfig struct {
	// Driver is postgres or sqlite (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver (default: vaultetl.db)
	SQLitePath string `env:"SQLITE_PATH" default:"vaultetl.db"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate creates missing tables on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// ImportConfig holds batch import settings.
type ImportConfig struct {
	// BatchSize is the number of records committed per transaction (default: 500)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"500"`

	// MaxConcurrent is the maximum number of imports running at once (default: 4)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// AcquireTimeout is how long a request waits for an import slot (default: 30s)
	AcquireTimeout time.Duration `env:"IMPORT_ACQUIRE_TIMEOUT" default:"30s"`

	// JobTimeout cancels a background import that runs longer (default: 0, no limit)
	JobTimeout time.Duration `env:"IMPORT_JOB_TIMEOUT" default:"0s"`

	// MaxFileSize is the largest accepted upload in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`

	// TempDir holds uploaded files until their import finishes (default: OS temp dir)
	TempDir string `env:"IMPORT_TEMP_DIR"`
}

// VaultConfig holds the defaults for vault addressing. Values stored in the
// settings table take precedence at run time.
type VaultConfig struct {
	Root string `env:"VAULT_ROOT" default:"E:\\PTC\\Windchill\\vaults\\defaultcachevault"`

	// UseHexPadding pads exported logical paths to 14 digits (default: true)
	UseHexPadding bool `env:"VAULT_USE_HEX_PADDING" default:"true"`

	// AddFVExtension appends .fv to exported logical paths (default: false)
	AddFVExtension bool `env:"VAULT_ADD_FV_EXTENSION" default:"false"`

	DefaultDestination string `env:"RESTORE_DESTINATION" default:"C:\\Export\\SmartPLM\\Restored"`

	// Workers bounds concurrent copies and existence checks (default: 8)
	Workers int `env:"RESTORE_WORKERS" default:"8"`
}

// StorageConfig configures the optional S3-compatible restore target.
type StorageConfig struct {
	Endpoint  string `env:"S3_ENDPOINT"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Region    string `env:"S3_REGION"`
	UseSSL    bool   `env:"S3_USE_SSL" default:"false"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerSecond is the sustained rate per IP (default: 10)
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS" default:"10"`

	// Burst is the bucket size per IP (default: 20)
	Burst int `env:"RATE_LIMIT_BURST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
