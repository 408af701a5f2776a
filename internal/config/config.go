// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BaseURL      string // Public URL encoded into the demo QR code.

	// Storage: sqlite://path, postgres://..., or "memory".
	DatabaseURL string

	// Presentation settings.
	ScriptPath string // Optional YAML narration script; empty uses the built-in script.

	// Live metrics settings.
	MetricsInterval   time.Duration
	MetricsAutostart  bool          // Start emitting at boot rather than on the first demo start.
	SampleRetention   time.Duration // Logged samples older than this are pruned; 0 keeps everything.
	RetentionInterval time.Duration

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool

	// Rate limiting for control endpoints.
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// Operational settings.
	LogLevel            string
	HostStats           bool // Report host CPU and memory on /health.
	CORSAllowedOrigins  []string
	MaxRequestBodyBytes int64 // Maximum request body size in bytes.
}

// Load reads configuration from environment variables with sensible
// defaults. Every malformed variable is reported, not just the first.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		BaseURL:      envStr("TWIN_BASE_URL", "http://localhost:8001"),
		DatabaseURL:  envStr("TWIN_DATABASE_URL", "sqlite://digital_twin.db"),
		ScriptPath:   envStr("TWIN_SCRIPT_PATH", ""),
		OTELEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  envStr("OTEL_SERVICE_NAME", "twin"),
		LogLevel:     envStr("TWIN_LOG_LEVEL", "info"),
	}

	var err error
	cfg.Port, err = envInt("TWIN_PORT", 8001)
	collect(err)
	cfg.ReadTimeout, err = envDuration("TWIN_READ_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.WriteTimeout, err = envDuration("TWIN_WRITE_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.MetricsInterval, err = envDuration("TWIN_METRICS_INTERVAL", 3*time.Second)
	collect(err)
	cfg.MetricsAutostart, err = envBool("TWIN_METRICS_AUTOSTART", false)
	collect(err)
	cfg.SampleRetention, err = envDuration("TWIN_SAMPLE_RETENTION", 24*time.Hour)
	collect(err)
	cfg.RetentionInterval, err = envDuration("TWIN_RETENTION_INTERVAL", time.Hour)
	collect(err)
	cfg.HostStats, err = envBool("TWIN_HOST_STATS", true)
	collect(err)
	cfg.OTELInsecure, err = envBool("TWIN_OTEL_INSECURE", false)
	collect(err)
	cfg.RateLimitEnabled, err = envBool("TWIN_RATE_LIMIT_ENABLED", true)
	collect(err)
	cfg.RateLimitRPS, err = envFloat("TWIN_RATE_LIMIT_RPS", 5)
	collect(err)
	cfg.RateLimitBurst, err = envInt("TWIN_RATE_LIMIT_BURST", 20)
	collect(err)
	maxBody, err := envInt("TWIN_MAX_REQUEST_BODY_BYTES", 64*1024) // 64 KB default
	collect(err)
	cfg.MaxRequestBodyBytes = int64(maxBody)

	if origins := envStr("TWIN_CORS_ALLOWED_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: TWIN_PORT must be between 1 and 65535 (got %d)", c.Port)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: TWIN_DATABASE_URL is required")
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("config: TWIN_METRICS_INTERVAL must be positive")
	}
	if c.SampleRetention < 0 {
		return fmt.Errorf("config: TWIN_SAMPLE_RETENTION must not be negative")
	}
	if c.SampleRetention > 0 && c.RetentionInterval <= 0 {
		return fmt.Errorf("config: TWIN_RETENTION_INTERVAL must be positive when retention is enabled")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: TWIN_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("config: TWIN_RATE_LIMIT_RPS and TWIN_RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: TWIN_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level. Validate has already
// rejected unknown names.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
