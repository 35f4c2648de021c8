package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for a shipcheck node
type Config struct {
	// Node Identity
	NodeID string

	// Server Configuration
	HTTPPort string

	// Database Configuration
	DatabaseHost string
	DatabasePort string
	DatabaseUser string
	DatabasePass string
	DatabaseName string

	// Audit Ledger Configuration
	CometHomeDir string

	// Inspection Policy
	InspectionTTL time.Duration
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		// Node Identity
		NodeID: getEnv("NODE_ID", "shipcheck-node-0"),

		// Server
		HTTPPort: getEnv("HTTP_PORT", "3001"),

		// Database
		DatabaseHost: getEnv("DB_HOST", "localhost"),
		DatabasePort: getEnv("DB_PORT", "5432"),
		DatabaseUser: getEnv("DB_USER", "postgres"),
		DatabasePass: getEnv("DB_PASS", "postgrespassword"),
		DatabaseName: getEnv("DB_NAME", "shipcheck_db"),

		// Audit ledger
		CometHomeDir: getEnv("COMET_HOME", "./node-config/audit-node"),

		// Abandoned in_progress inspections are auto-failed after this age
		InspectionTTL: getEnvDuration("INSPECTION_TTL_HOURS", 24) * time.Hour,
	}
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePass,
		c.DatabaseName,
	)
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("NODE_ID is required")
	}
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}
	if c.CometHomeDir == "" {
		return fmt.Errorf("COMET_HOME is required")
	}
	if c.InspectionTTL <= 0 {
		return fmt.Errorf("INSPECTION_TTL_HOURS must be positive")
	}
	return nil
}

// Helper function to get environment variable with default
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultHours int) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return time.Duration(defaultHours)
	}
	hours, err := strconv.Atoi(value)
	if err != nil || hours <= 0 {
		return time.Duration(defaultHours)
	}
	return time.Duration(hours)
}
