// Package config provides centralized configuration management for the classifier.
// Values come from an optional YAML settings file, then environment variables,
// then tag defaults. Everything is validated on startup to fail fast on
// misconfiguration.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Storage  StorageConfig   `yaml:"storage"`
	Classify ClassifyConfig  `yaml:"classify"`
	Server   ServerConfig    `yaml:"server"`
	Rate     RateLimitConfig `yaml:"rate"`
	Security SecurityConfig  `yaml:"security"`
	Audit    AuditConfig     `yaml:"audit"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// StorageConfig locates the datalake and the schema definitions.
type StorageConfig struct {
	// Root is the datalake root containing drop_zone/ and raw/ (default: datalake)
	Root string `yaml:"root" env:"DROPZONE_ROOT" default:"datalake"`

	// SchemaDir holds one YAML definition per dataset (default: config/schemas)
	SchemaDir string `yaml:"schema_dir" env:"DROPZONE_SCHEMA_DIR" default:"config/schemas"`
}

// ClassifyConfig controls a batch run.
type ClassifyConfig struct {
	// MaxRows is how many leading rows are probed per file (default: 50)
	MaxRows int `yaml:"max_rows" env:"CLASSIFY_MAX_ROWS" default:"50"`

	// Workers is the number of files processed in parallel (default: 1, sequential)
	Workers int `yaml:"workers" env:"CLASSIFY_WORKERS" default:"1"`

	// FileTimeout bounds probing and matching of a single file (default: 2m)
	FileTimeout time.Duration `yaml:"file_timeout" env:"CLASSIFY_FILE_TIMEOUT" default:"2m"`

	// DryRun computes outcomes without moving files or writing the log (default: false)
	DryRun bool `yaml:"dry_run" env:"CLASSIFY_DRY_RUN" default:"false"`

	// WatchInterval is the pause between runs in watch mode (default: 5m)
	WatchInterval time.Duration `yaml:"watch_interval" env:"CLASSIFY_WATCH_INTERVAL" default:"5m"`

	// RunTimeout bounds a run started over HTTP; it is not cancelled when the
	// client disconnects (default: 10m, 0 disables)
	RunTimeout time.Duration `yaml:"run_timeout" env:"CLASSIFY_RUN_TIMEOUT" default:"10m"`

	// HistorySize is how many run results the service keeps in memory (default: 20)
	HistorySize int `yaml:"history_size" env:"CLASSIFY_HISTORY_SIZE" default:"20"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `yaml:"port" env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 10m, a run is synchronous)
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" default:"10m"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the sustained rate per IP (default: 100)
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// Burst is the token bucket size per IP (default: 20)
	Burst int `yaml:"burst" env:"RATE_LIMIT_BURST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES"`

	// RequireAPIKey protects mutating routes with X-API-Key (default: false)
	RequireAPIKey bool `yaml:"require_api_key" env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
}

// AuditConfig configures the optional Postgres sink for classification records.
// An empty URL disables the sink.
type AuditConfig struct {
	URL string `yaml:"database_url" env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `yaml:"max_conns" env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `yaml:"min_conns" env:"DB_MIN_CONNS" default:"0"`

	// Timeout bounds one batch insert (default: 30s)
	Timeout time.Duration `yaml:"timeout" env:"DB_AUDIT_TIMEOUT" default:"30s"`
}

// Enabled reports whether records should be written to Postgres.
func (c *AuditConfig) Enabled() bool {
	return c.URL != ""
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
