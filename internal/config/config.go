package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"exoai/internal/errors"

	"github.com/joho/godotenv"
)

// Session store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig
	Exoplanet ExoplanetConfig
	Session   SessionConfig
	Database  DatabaseConfig
	Log       LogConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port           string
	GinMode        string
	MaxUploadBytes int64
}

// ExoplanetConfig points at the remote prediction service
type ExoplanetConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig controls where the upload→analysis handoff is kept
type SessionConfig struct {
	Store      string
	TTL        time.Duration
	CookieName string
}

// DatabaseConfig holds database connection settings for the postgres session store
type DatabaseConfig struct {
	URL string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Load reads .env (when present) and the environment, then validates the result
func Load() (*Config, error) {
	// A missing .env is fine: the process environment still applies.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only
func FromEnv() (*Config, error) {
	config := &Config{
		Server:    *loadServerConfig(),
		Exoplanet: *loadExoplanetConfig(),
		Session:   *loadSessionConfig(),
		Database:  DatabaseConfig{URL: getEnvOrDefault("DATABASE_URL", "")},
		Log:       LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "INFO")},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:           getEnvOrDefault("PORT", "8080"),
		GinMode:        getEnvOrDefault("GIN_MODE", "release"),
		MaxUploadBytes: int64(getEnvIntOrDefault("MAX_UPLOAD_BYTES", 25<<20)),
	}
}

func loadExoplanetConfig() *ExoplanetConfig {
	return &ExoplanetConfig{
		BaseURL: strings.TrimRight(getEnvOrDefault("EXOPLANET_API_URL", "http://localhost:8000"), "/"),
		Timeout: getEnvDurationOrDefault("EXOPLANET_API_TIMEOUT", 60*time.Second),
	}
}

func loadSessionConfig() *SessionConfig {
	return &SessionConfig{
		Store:      strings.ToLower(getEnvOrDefault("SESSION_STORE", StoreMemory)),
		TTL:        getEnvDurationOrDefault("SESSION_TTL", 2*time.Hour),
		CookieName: getEnvOrDefault("SESSION_COOKIE", "exoai_session"),
	}
}

func validateConfig(config *Config) error {
	u, err := url.Parse(config.Exoplanet.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.ConfigInvalid("EXOPLANET_API_URL must be an absolute URL")
	}
	if config.Exoplanet.Timeout <= 0 {
		return errors.ConfigInvalid("EXOPLANET_API_TIMEOUT must be positive")
	}
	if config.Server.MaxUploadBytes <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_BYTES must be positive")
	}
	switch config.Session.Store {
	case StoreMemory:
	case StorePostgres:
		if config.Database.URL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required when SESSION_STORE=postgres")
		}
	default:
		return errors.ConfigInvalid("SESSION_STORE must be memory or postgres")
	}
	if config.Session.TTL <= 0 {
		return errors.ConfigInvalid("SESSION_TTL must be positive")
	}
	if config.Session.CookieName == "" {
		return errors.ConfigInvalid("SESSION_COOKIE must not be empty")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
