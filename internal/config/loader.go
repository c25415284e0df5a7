package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if a value cannot be parsed or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	sections := []any{
		&cfg.Server, &cfg.Sheets, &cfg.TextGen, &cfg.Database, &cfg.Audit,
		&cfg.Session, &cfg.Rate, &cfg.Security, &cfg.Logging,
	}
	for _, s := range sections {
		if err := envconfig.Process("", s); err != nil {
			return nil, fmt.Errorf("config load: %w", err)
		}
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DB_URL")
	}
	cfg.Security.TrustedProxies = trimAll(cfg.Security.TrustedProxies)
	cfg.Security.APIKeys = trimAll(cfg.Security.APIKeys)
	cfg.Security.AllowedHosts = trimAll(cfg.Security.AllowedHosts)
	cfg.Sheets.Backend = strings.ToLower(strings.TrimSpace(cfg.Sheets.Backend))
	cfg.TextGen.Provider = strings.ToLower(strings.TrimSpace(cfg.TextGen.Provider))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// trimAll trims each element and drops empty ones.
func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Sheets validation
	switch c.Sheets.Backend {
	case "google", "memory":
	default:
		errs = append(errs, fmt.Sprintf("SHEETS_BACKEND (%q) must be one of: google, memory", c.Sheets.Backend))
	}
	if c.Sheets.CredentialsFile != "" && c.Sheets.CredentialsJSON != "" {
		errs = append(errs, "set only one of GOOGLE_APPLICATION_CREDENTIALS and GOOGLE_CREDENTIALS_JSON")
	}
	if c.Sheets.SeedFile != "" && c.Sheets.Backend != "memory" {
		errs = append(errs, "SHEETS_SEED_FILE requires SHEETS_BACKEND=memory")
	}
	if c.Sheets.SeedFile != "" && c.Sheets.DefaultURL == "" {
		errs = append(errs, "SHEETS_SEED_FILE requires SHEETS_DEFAULT_URL")
	}
	if c.Sheets.Timeout <= 0 {
		errs = append(errs, "SHEETS_TIMEOUT must be positive")
	}

	// Text generation validation
	switch c.TextGen.Provider {
	case "openai", "gemini", "none":
	default:
		errs = append(errs, fmt.Sprintf("TEXTGEN_PROVIDER (%q) must be one of: openai, gemini, none", c.TextGen.Provider))
	}
	if c.TextGen.Timeout <= 0 {
		errs = append(errs, "TEXTGEN_TIMEOUT must be positive")
	}
	if c.TextGen.MaxConcurrent <= 0 {
		errs = append(errs, "TEXTGEN_MAX_CONCURRENT must be positive")
	}
	if c.TextGen.MaxWait <= 0 {
		errs = append(errs, "TEXTGEN_MAX_WAIT must be positive")
	}

	// Database validation
	if c.Database.Enabled() {
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
	}

	// Audit validation
	if c.Audit.Retention <= 0 {
		errs = append(errs, "AUDIT_RETENTION must be positive")
	}
	if c.Audit.CheckInterval <= 0 {
		errs = append(errs, "AUDIT_CHECK_INTERVAL must be positive")
	}

	// Session validation
	if c.Session.CookieName == "" {
		errs = append(errs, "SESSION_COOKIE_NAME must not be empty")
	}
	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, "SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.Session.MaxSessions <= 0 {
		errs = append(errs, "SESSION_MAX must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.GenerateLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_GENERATE must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Credentials, API keys and the database URL are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Sheets: {Backend: %q, Credentials: %s, DefaultURL: %q}, ",
		c.Sheets.Backend, mask(c.Sheets.CredentialsFile+c.Sheets.CredentialsJSON), c.Sheets.DefaultURL)
	fmt.Fprintf(&b, "TextGen: {Provider: %q, APIKey: %s, MaxConcurrent: %d}, ",
		c.TextGen.Provider, mask(c.TextGen.APIKey()), c.TextGen.MaxConcurrent)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		mask(c.Database.URL), c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Session: {IdleTimeout: %s, MaxSessions: %d}, ",
		c.Session.IdleTimeout, c.Session.MaxSessions)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d, GenerateLimit: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.GenerateLimit)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(secret string) string {
	if secret == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
