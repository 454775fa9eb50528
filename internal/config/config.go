package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Appointments backend
	BackendBaseURL   string
	BackendTimeout   time.Duration
	BackendUserAgent string

	// Connectivity probing
	ProbeInterval time.Duration

	// Durable storage
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	RedisKeyPrefix string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		BackendBaseURL:   getEnv("BACKEND_BASE_URL", "http://localhost:5000"),
		BackendTimeout:   getEnvAsDuration("BACKEND_TIMEOUT", 10*time.Second),
		BackendUserAgent: getEnv("BACKEND_USER_AGENT", ""),
		ProbeInterval:    getEnvAsDuration("PROBE_INTERVAL", 30*time.Second),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),
		RedisKeyPrefix:   getEnv("REDIS_KEY_PREFIX", "telemed_sync:"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
