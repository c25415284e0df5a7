// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Sheets   SheetsConfig
	TextGen  TextGenConfig
	Database DatabaseConfig
	Audit    AuditConfig
	Session  SessionConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `envconfig:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 90s)
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"90s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `envconfig:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// SheetsConfig selects and configures the spreadsheet backend.
type SheetsConfig struct {
	// Backend is "google" or "memory" (default: google)
	Backend string `envconfig:"SHEETS_BACKEND" default:"google"`

	// CredentialsFile is a service-account key file. Empty uses application
	// default credentials.
	CredentialsFile string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`

	// CredentialsJSON is a service-account key given inline.
	CredentialsJSON string `envconfig:"GOOGLE_CREDENTIALS_JSON"`

	// DefaultURL pre-fills the dashboard and is the CLI default.
	DefaultURL string `envconfig:"SHEETS_DEFAULT_URL"`

	// SeedFile is a CSV loaded into DefaultURL when the memory backend starts.
	SeedFile string `envconfig:"SHEETS_SEED_FILE"`

	// Timeout bounds a single load or commit (default: 60s)
	Timeout time.Duration `envconfig:"SHEETS_TIMEOUT" default:"60s"`
}

// TextGenConfig configures product copy generation.
type TextGenConfig struct {
	// Provider is "openai", "gemini" or "none" (default: openai)
	Provider string `envconfig:"TEXTGEN_PROVIDER" default:"openai"`

	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`

	GeminiKey   string `envconfig:"GEMINI_API_KEY"`
	GeminiModel string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`

	// Timeout bounds one generation call (default: 60s)
	Timeout time.Duration `envconfig:"TEXTGEN_TIMEOUT" default:"60s"`

	// MaxConcurrent caps parallel generation calls across sessions (default: 4)
	MaxConcurrent int `envconfig:"TEXTGEN_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long to wait for a generation slot (default: 20s)
	MaxWait time.Duration `envconfig:"TEXTGEN_MAX_WAIT" default:"20s"`
}

// APIKey returns the key for the selected provider.
func (c *TextGenConfig) APIKey() string {
	switch c.Provider {
	case "gemini":
		return c.GeminiKey
	case "openai":
		return c.OpenAIKey
	default:
		return ""
	}
}

// Enabled reports whether a provider with credentials is configured.
func (c *TextGenConfig) Enabled() bool {
	return c.APIKey() != ""
}

// DatabaseConfig holds audit database settings. An empty URL disables the
// audit trail.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `envconfig:"DATABASE_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `envconfig:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `envconfig:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// AuditConfig holds audit retention settings.
type AuditConfig struct {
	// Retention is how long entries are kept (default: 2160h, 90 days)
	Retention time.Duration `envconfig:"AUDIT_RETENTION" default:"2160h"`

	// CheckInterval is how often the purge job runs (default: 24h)
	CheckInterval time.Duration `envconfig:"AUDIT_CHECK_INTERVAL" default:"24h"`
}

// SessionConfig controls per-browser catalog sessions.
type SessionConfig struct {
	// CookieName names the session cookie (default: shopsheet_session)
	CookieName string `envconfig:"SESSION_COOKIE_NAME" default:"shopsheet_session"`

	// IdleTimeout discards sessions unused for this long (default: 30m)
	IdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`

	// MaxSessions caps live sessions; the least recently used is evicted (default: 500)
	MaxSessions int `envconfig:"SESSION_MAX" default:"500"`

	// SecureCookie sets the Secure attribute on the cookie (default: false)
	SecureCookie bool `envconfig:"SESSION_SECURE_COOKIE" default:"false"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `envconfig:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// GenerateLimit is requests per minute for generation endpoints (default: 10)
	GenerateLimit int `envconfig:"RATE_LIMIT_GENERATE" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `envconfig:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects /api with the X-API-Key header (default: false)
	RequireAPIKey bool `envconfig:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `envconfig:"API_KEYS"`

	// AllowedHosts restricts the Host header when set
	AllowedHosts []string `envconfig:"SECURITY_ALLOWED_HOSTS"`

	// DevMode relaxes host and HTTPS checks for local development (default: false)
	DevMode bool `envconfig:"SECURITY_DEV_MODE" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `envconfig:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `envconfig:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
