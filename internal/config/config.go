// Package config handles application configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultListenAddr    = ":8080"
	DefaultLocation      = "EU"
	DefaultPricePerTB    = 6.25
	DefaultTimezone      = "UTC"
	DefaultHistoryDBPath = "sitelens-history.db"
	DefaultRetentionDays = 90
	DefaultRateLimitRPS  = 50.0
	DefaultRateBurst     = 100
	DefaultEventsTable   = "`analytics.events`"
	DefaultPagesTable    = "`analytics.pageviews`"
)

// Config holds the configuration for the HTTP API, the warehouse client,
// and the history store.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Warehouse settings.
	Project     string  // warehouse project id (required)
	Location    string  // fixed execution region (default "EU")
	WebsiteID   string  // website identifier substituted into templates (required)
	EventsTable string  // fully-qualified session/events table
	PagesTable  string  // fully-qualified pageviews table
	PricePerTB  float64 // price per scanned terabyte, currency units
	Timezone    string  // civil timezone for date-range resolution

	// History store.
	HistoryDBPath        string
	HistoryRetentionDays int

	// Dashboard definitions; empty means the built-in set.
	DashboardConfigPath string

	// Auth and rate limiting.
	JWTSecret      string // HS256 shared secret for dashboard auth
	RateLimitRPS   float64
	RateLimitBurst int

	// CORS
	CORSAllowedOrigins []string // allowed origins (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// Load reads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		ListenAddr:           envOr("LISTEN_ADDR", DefaultListenAddr),
		LogLevel:             envOr("LOG_LEVEL", "info"),
		Env:                  envOr("ENV", "development"),
		Project:              os.Getenv("WAREHOUSE_PROJECT"),
		Location:             envOr("WAREHOUSE_LOCATION", DefaultLocation),
		WebsiteID:            os.Getenv("WEBSITE_ID"),
		EventsTable:          envOr("EVENTS_TABLE", DefaultEventsTable),
		PagesTable:           envOr("PAGES_TABLE", DefaultPagesTable),
		Timezone:             envOr("REPORT_TIMEZONE", DefaultTimezone),
		HistoryDBPath:        envOr("HISTORY_DB_PATH", DefaultHistoryDBPath),
		DashboardConfigPath:  os.Getenv("DASHBOARD_CONFIG"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		PricePerTB:           DefaultPricePerTB,
		HistoryRetentionDays: DefaultRetentionDays,
		RateLimitRPS:         DefaultRateLimitRPS,
		RateLimitBurst:       DefaultRateBurst,
		CORSAllowedOrigins:   []string{"*"},
	}

	cfg.PricePerTB = cfg.envFloat("PRICE_PER_TB", cfg.PricePerTB)
	cfg.HistoryRetentionDays = cfg.envInt("HISTORY_RETENTION_DAYS", cfg.HistoryRetentionDays)
	cfg.RateLimitRPS = cfg.envFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = cfg.envInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = splitAndTrim(origins)
	}

	return cfg
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("WAREHOUSE_PROJECT must be set")
	}
	if c.WebsiteID == "" {
		return fmt.Errorf("WEBSITE_ID must be set")
	}
	if c.PricePerTB <= 0 {
		return fmt.Errorf("PRICE_PER_TB must be positive, got %v", c.PricePerTB)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid REPORT_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.Env == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

// ReportLocation returns the parsed civil timezone. Call Validate first.
func (c *Config) ReportLocation() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) envFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %q, using default %v", key, raw, def))
		return def
	}
	return v
}

func (c *Config) envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %q, using default %d", key, raw, def))
		return def
	}
	return v
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
