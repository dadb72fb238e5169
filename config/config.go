package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the call assist service
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Cartesia STT configuration
	CartesiaAPIKey  string
	CartesiaAPIURL  string
	CartesiaVersion string
	STTModel        string
	STTLanguage     string

	// Gemini configuration
	GeminiAPIKey string
	GeminiModel  string

	// Outbound HTTP client timeout for provider calls
	ProviderTimeout time.Duration

	// Rate limiting
	RateLimitPerMinute int

	// CORS
	AllowedOrigins string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "callassist"),

		CartesiaAPIKey:  getEnv("CARTESIA_API_KEY", ""),
		CartesiaAPIURL:  getEnv("CARTESIA_API_URL", "https://api.cartesia.ai/stt"),
		CartesiaVersion: getEnv("CARTESIA_VERSION", "2025-04-16"),
		STTModel:        getEnv("STT_MODEL", "ink-whisper"),
		STTLanguage:     getEnv("STT_LANGUAGE", "en"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-pro"),

		ProviderTimeout: getDurationEnv("PROVIDER_TIMEOUT", 60*time.Second),

		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 60),

		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
