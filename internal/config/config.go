package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kurihiro0119/github-data-explorer/internal/columns"
)

// Config holds the application configuration
type Config struct {
	// Backend
	APIEndpoint  string
	SessionToken string
	HTTPTimeout  time.Duration

	// Minimum spacing between backend calls
	RequestInterval time.Duration

	// Grid
	PageSize         int
	IssuesCollection string
	ActorField       string
	SequenceField    string
	RepoField        string

	// Cache
	StorageType string // "none", "sqlite" or "postgres"
	SQLitePath  string
	PostgresURL string

	// Grid bridge server
	BridgePort string
	BridgeHost string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		APIEndpoint:      getEnv("API_ENDPOINT", "http://localhost:3000/api"),
		SessionToken:     getEnv("SESSION_TOKEN", ""),
		HTTPTimeout:      getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		RequestInterval:  getDurationEnv("REQUEST_INTERVAL", 0),
		PageSize:         getIntEnv("PAGE_SIZE", 100),
		IssuesCollection: getEnv("ISSUES_COLLECTION", "issues"),
		ActorField:       getEnv("ACTOR_FIELD", "user.login"),
		SequenceField:    getEnv("SEQUENCE_FIELD", "number"),
		RepoField:        getEnv("REPO_FIELD", "repo_id"),
		StorageType:      getEnv("STORAGE_TYPE", "sqlite"),
		SQLitePath:       getEnv("SQLITE_PATH", "./grid-cache.db"),
		PostgresURL:      getEnv("POSTGRES_URL", ""),
		BridgePort:       getEnv("BRIDGE_PORT", "8080"),
		BridgeHost:       getEnv("BRIDGE_HOST", "localhost"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIEndpoint == "" {
		return &ConfigError{Field: "API_ENDPOINT", Message: "backend endpoint is required"}
	}
	if c.PageSize < 1 {
		return &ConfigError{Field: "PAGE_SIZE", Message: "must be at least 1"}
	}
	if c.HTTPTimeout <= 0 {
		return &ConfigError{Field: "HTTP_TIMEOUT", Message: "must be positive"}
	}
	switch c.StorageType {
	case "none", "sqlite", "postgres":
	default:
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'none', 'sqlite' or 'postgres'"}
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	return nil
}

// ColumnOptions returns the grid field names configured for the backend
func (c *Config) ColumnOptions() columns.Options {
	return columns.Options{
		ActorField:    c.ActorField,
		SequenceField: c.SequenceField,
		RepoField:     c.RepoField,
		IssuesKind:    c.IssuesCollection,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
