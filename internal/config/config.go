// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string

	// Storage
	DatabaseURL string // optional: session archive + abuse reports
	RedisURL    string // optional: queue stats mirror

	// Security
	JWTSecret string

	// Blind date
	BlurInitialPx   int
	BlurDecrementPx int

	// Queue
	QueueStatusInterval time.Duration // periodic queue:status rebroadcast
	EstimatedWaitPerPos time.Duration // naive wait estimate per queue position

	// WebSocket
	AllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Storage
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		// Security
		JWTSecret: getEnv("JWT_SECRET", "your-super-secret-key-change-this-in-production"),

		// Blind date
		BlurInitialPx:   getEnvInt("BLUR_INITIAL_PX", 20),
		BlurDecrementPx: getEnvInt("BLUR_DECREMENT_PX", 4),

		// Queue
		QueueStatusInterval: getEnvDuration("QUEUE_STATUS_INTERVAL", "15s"),
		EstimatedWaitPerPos: getEnvDuration("ESTIMATED_WAIT_PER_POSITION", "10s"),

		// WebSocket
		AllowedOrigins: splitEnv("ALLOWED_ORIGINS", "*"),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWTSecret == "your-super-secret-key-change-this-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret must be changed for production")
	}

	if c.BlurInitialPx < 0 {
		return fmt.Errorf("initial blur must not be negative")
	}

	if c.BlurDecrementPx < 1 {
		return fmt.Errorf("blur decrement must be at least 1")
	}

	if c.QueueStatusInterval < time.Second {
		return fmt.Errorf("queue status interval must be at least 1s")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Helper functions

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment with a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

// splitEnv gets a comma-separated list from environment with a default
func splitEnv(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
