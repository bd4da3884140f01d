package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Database configuration
	DatabaseURL           string
	PoolMinConns          int
	PoolMaxConns          int
	AcquireTimeoutSeconds int

	// Ingestion configuration
	IngestFanOut     int
	UpsertMaxRetries int

	// Export configuration
	ExportDir      string
	ExportSchedule string // "daily" or "weekly"

	// Feed polling configuration
	FeedURLs        []string
	FeedPollMinutes int

	// Azure Storage configuration (optional; local disk when unset)
	StorageAccount   string
	StorageContainer string

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
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		DatabaseURL:           getEnv("DATABASE_URL", ""),
		PoolMinConns:          getIntEnv("POOL_MIN_CONNS", 2),
		PoolMaxConns:          getIntEnv("POOL_MAX_CONNS", 10),
		AcquireTimeoutSeconds: getIntEnv("POOL_ACQUIRE_TIMEOUT_SECONDS", 5),

		IngestFanOut:     getIntEnv("INGEST_FANOUT", 4),
		UpsertMaxRetries: getIntEnv("UPSERT_MAX_RETRIES", 3),

		ExportDir:      getEnv("EXPORT_DIR", "exports"),
		ExportSchedule: getEnv("EXPORT_SCHEDULE", "daily"),

		FeedURLs:        getSliceEnv("FEED_URLS", nil),
		FeedPollMinutes: getIntEnv("FEED_POLL_MINUTES", 15),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "databank-exports"),

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
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.ExportSchedule != "daily" && c.ExportSchedule != "weekly" {
		return fmt.Errorf("EXPORT_SCHEDULE must be 'daily' or 'weekly'")
	}

	if c.PoolMinConns < 0 || c.PoolMaxConns < 1 || c.PoolMinConns > c.PoolMaxConns {
		return fmt.Errorf("pool sizing must satisfy 0 <= POOL_MIN_CONNS <= POOL_MAX_CONNS and POOL_MAX_CONNS >= 1")
	}

	// The fan-out stays below the pool size so a burst of records cannot
	// starve readers of connections
	if c.IngestFanOut < 1 {
		return fmt.Errorf("INGEST_FANOUT must be at least 1")
	}
	if c.IngestFanOut >= c.PoolMaxConns {
		return fmt.Errorf("INGEST_FANOUT (%d) must be smaller than POOL_MAX_CONNS (%d)", c.IngestFanOut, c.PoolMaxConns)
	}

	// The retry budget feeds an unsigned conversion downstream
	if c.UpsertMaxRetries < 0 {
		return fmt.Errorf("UPSERT_MAX_RETRIES must not be negative")
	}

	if c.FeedPollMinutes < 1 {
		return fmt.Errorf("FEED_POLL_MINUTES must be at least 1")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
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

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}
