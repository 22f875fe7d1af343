package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	RefreshSchedule string // cron expression with seconds
	ReportSchedule  string // "daily" or "off"
	TimeZone        string

	// Source registry
	SourcesFile       string
	SourceConcurrency int

	// Fetcher configuration
	FetchRetries       int
	FetchRetryDelay    time.Duration
	FetchMaxRedirects  int
	FetchTimeout       time.Duration
	FetchRatePerSecond float64

	// Sentiment classifier
	Classifier        string // "exec" or "lexicon"
	ClassifierCommand string
	ClassifierScript  string
	ClassifierTimeout time.Duration
	ScorerConcurrency int

	// Freshness cache
	CacheBackend         string // "file" or "redis"
	CacheDir             string
	CacheVersion         string
	CacheTTL             time.Duration
	CacheHousekeepingTTL time.Duration
	RedisAddr            string

	// Snapshot storage
	SnapshotDir      string
	StorageAccount   string
	StorageContainer string

	// Price history
	PriceSymbol string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Debug:           getBoolEnv("DEBUG", false),
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 */30 * * * *"),
		ReportSchedule:  getEnv("REPORT_SCHEDULE", "daily"),
		TimeZone:        getEnv("TIMEZONE", "UTC"),

		SourcesFile:       getEnv("SOURCES_FILE", ""),
		SourceConcurrency: getIntEnv("SOURCE_CONCURRENCY", 1),

		FetchRetries:       getIntEnv("FETCH_RETRIES", 3),
		FetchRetryDelay:    getDurationEnv("FETCH_RETRY_DELAY", 100*time.Millisecond),
		FetchMaxRedirects:  getIntEnv("FETCH_MAX_REDIRECTS", 10),
		FetchTimeout:       getDurationEnv("FETCH_TIMEOUT", 30*time.Second),
		FetchRatePerSecond: getFloatEnv("FETCH_RATE_PER_SECOND", 5),

		Classifier:        getEnv("CLASSIFIER", "exec"),
		ClassifierCommand: getEnv("CLASSIFIER_COMMAND", "python3"),
		ClassifierScript:  getEnv("CLASSIFIER_SCRIPT", "./scripts/vader_sentiment.py"),
		ClassifierTimeout: getDurationEnv("CLASSIFIER_TIMEOUT", 20*time.Second),
		ScorerConcurrency: getIntEnv("SCORER_CONCURRENCY", 1),

		CacheBackend:         getEnv("CACHE_BACKEND", "file"),
		CacheDir:             getEnv("CACHE_DIR", "./cache"),
		CacheVersion:         getEnv("CACHE_VERSION", "v1.0.0"),
		CacheTTL:             getDurationEnv("CACHE_TTL", time.Hour),
		CacheHousekeepingTTL: getDurationEnv("CACHE_HOUSEKEEPING_TTL", 2*time.Hour),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),

		SnapshotDir:      getEnv("SNAPSHOT_DIR", "./seeds"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "brent-news"),

		PriceSymbol: getEnv("PRICE_SYMBOL", "BZ=F"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ReportSchedule != "daily" && c.ReportSchedule != "off" {
		return fmt.Errorf("REPORT_SCHEDULE must be 'daily' or 'off'")
	}

	if c.CacheBackend != "file" && c.CacheBackend != "redis" {
		return fmt.Errorf("CACHE_BACKEND must be 'file' or 'redis'")
	}

	if c.Classifier != "exec" && c.Classifier != "lexicon" {
		return fmt.Errorf("CLASSIFIER must be 'exec' or 'lexicon'")
	}

	if c.FetchRetries < 1 {
		return fmt.Errorf("FETCH_RETRIES must be at least 1")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.TimeZone, err)
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Location returns the time zone used to bucket headlines into calendar days
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NotificationsEnabled reports whether any report channel is configured
func (c *Config) NotificationsEnabled() bool {
	return c.TeamsWebhookURL != "" || c.NotificationEmail != ""
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
