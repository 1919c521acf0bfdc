package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Settings holds all configuration for pipelinehub.
type Settings struct {
	// API server configuration
	API APIConfig `toml:"api"`

	// Logging configuration
	Log LogConfig `toml:"log"`

	// OpenTelemetry tracing configuration
	Telemetry TelemetryConfig `toml:"telemetry"`

	// Pipeline repository configuration
	Database DatabaseConfig `toml:"database"`

	// DevOps API client configuration
	DevOps DevOpsConfig `toml:"devops"`
}

// APIConfig holds HTTP server configuration
type APIConfig struct {
	Address string `toml:"address"`
	Port    int    `toml:"port"`

	// Timeout is the per-request timeout in seconds
	Timeout int `toml:"timeout"`

	// ShutdownTimeout bounds a graceful drain, in seconds. Zero means Timeout.
	ShutdownTimeout int `toml:"shutdown_timeout"`

	// MetricsIgnore lists paths excluded from HTTP metrics. A trailing "/*"
	// matches a prefix.
	MetricsIgnore []string `toml:"metrics_ignore"`
}

// ListenAddr returns the host:port the API binds to.
func (c APIConfig) ListenAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// RequestTimeout returns the per-request timeout.
func (c APIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// DrainTimeout returns the graceful shutdown bound.
func (c APIConfig) DrainTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return c.RequestTimeout()
	}
	return time.Duration(c.ShutdownTimeout) * time.Second
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
}

// TelemetryConfig holds tracing exporter configuration
type TelemetryConfig struct {
	Enabled    bool    `toml:"enabled"`
	Endpoint   string  `toml:"endpoint"`
	Insecure   bool    `toml:"insecure"`
	SampleRate float64 `toml:"sample_rate"`
}

// Database drivers
const (
	DriverNone    = ""
	DriverSQLite  = "sqlite"
	DriverMongoDB = "mongodb"
)

// DatabaseConfig selects and configures the pipeline repository backend
type DatabaseConfig struct {
	Driver        string `toml:"driver"`
	DSN           string `toml:"dsn"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// DevOpsConfig holds DevOps API client configuration
type DevOpsConfig struct {
	BaseURL     string `toml:"base_url"`
	AccessToken string `toml:"access_token"`
	UserID      string `toml:"user_id"`

	// Timeout is the HTTP client timeout in seconds
	Timeout int `toml:"timeout"`

	// RateLimit is requests per second; 0 disables limiting
	RateLimit float64 `toml:"rate_limit"`

	// RedisURL enables the pipeline cache when set
	RedisURL string `toml:"redis_url"`

	// CacheTTL is the cache entry lifetime in seconds
	CacheTTL int `toml:"cache_ttl"`
}

// ClientTimeout returns the HTTP client timeout.
func (c DevOpsConfig) ClientTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// CacheLifetime returns the cache entry lifetime.
func (c DevOpsConfig) CacheLifetime() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// Default returns settings with sensible defaults
func Default() Settings {
	return Settings{
		API: APIConfig{
			Address:         "0.0.0.0",
			Port:            8080,
			Timeout:         2,
			ShutdownTimeout: 10,
			MetricsIgnore:   []string{"/metrics"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1.0,
		},
		Database: DatabaseConfig{
			Driver:        DriverNone,
			DSN:           "file:pipelinehub.db",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "pipelinehub",
		},
		DevOps: DevOpsConfig{
			Timeout:   10,
			RateLimit: 5,
			CacheTTL:  60,
		},
	}
}

// ValidationError reports a setting that failed validation.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Key, e.Reason)
}

// Validate checks that the settings are fully resolved and usable.
func (s Settings) Validate() error {
	switch {
	case strings.TrimSpace(s.API.Address) == "":
		return &ValidationError{Key: "api.address", Reason: "must not be empty"}
	case s.API.Port < 1 || s.API.Port > 65535:
		return &ValidationError{Key: "api.port", Reason: fmt.Sprintf("%d is out of range 1-65535", s.API.Port)}
	case s.API.Timeout <= 0:
		return &ValidationError{Key: "api.timeout", Reason: "must be positive"}
	case s.API.ShutdownTimeout < 0:
		return &ValidationError{Key: "api.shutdown_timeout", Reason: "must not be negative"}
	case s.Telemetry.SampleRate < 0 || s.Telemetry.SampleRate > 1:
		return &ValidationError{Key: "telemetry.sample_rate", Reason: "must be between 0 and 1"}
	case s.DevOps.RateLimit < 0:
		return &ValidationError{Key: "devops.rate_limit", Reason: "must not be negative"}
	}

	switch s.Database.Driver {
	case DriverNone, DriverSQLite, DriverMongoDB:
	default:
		return &ValidationError{Key: "database.driver", Reason: fmt.Sprintf("unknown driver %q", s.Database.Driver)}
	}

	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Key: "log.level", Reason: fmt.Sprintf("unknown level %q", s.Log.Level)}
	}
	return nil
}

// Masked returns a copy safe for logging, with credentials hidden.
func (s Settings) Masked() Settings {
	m := s
	m.API.MetricsIgnore = append([]string(nil), s.API.MetricsIgnore...)
	m.DevOps.AccessToken = mask(s.DevOps.AccessToken)
	m.Database.MongoURI = maskURI(s.Database.MongoURI)
	m.DevOps.RedisURL = maskURI(s.DevOps.RedisURL)
	return m
}

func mask(v string) string {
	if v == "" {
		return ""
	}
	return "****"
}

// maskURI hides the userinfo part of a connection URI.
func maskURI(uri string) string {
	scheme := strings.Index(uri, "://")
	at := strings.LastIndex(uri, "@")
	if scheme < 0 || at < scheme {
		return uri
	}
	return uri[:scheme+3] + "****" + uri[at:]
}
