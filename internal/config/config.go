package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hostwise/whatsapp-concierge/internal/ai"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// WhatsApp Business Platform configuration
	WhatsAppVerifyToken string
	WhatsAppAppSecret   string
	WhatsAppAPIBaseURL  string
	WhatsAppAPIVersion  string
	SendTimeout         time.Duration

	// AI drafting configuration
	GeminiAPIKey            string
	GeminiModelID           string
	AIDraftTimeout          time.Duration
	AIHistoryLimit          int
	AutoSendConfidenceFloor float64

	// Admin API
	AdminJWTSecret string

	// Redis-backed activity feed
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	ActivityLogSize int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		WhatsAppVerifyToken: getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:   getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppAPIBaseURL:  strings.TrimRight(getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com"), "/"),
		WhatsAppAPIVersion:  getEnv("WHATSAPP_API_VERSION", "v18.0"),
		SendTimeout:         getEnvAsDuration("SEND_TIMEOUT", 10*time.Second),

		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:           getEnv("GEMINI_MODEL_ID", ai.DefaultGeminiModel),
		AIDraftTimeout:          getEnvAsDuration("AI_DRAFT_TIMEOUT", 20*time.Second),
		AIHistoryLimit:          getEnvAsInt("AI_HISTORY_LIMIT", 20),
		AutoSendConfidenceFloor: getEnvAsFloat("AUTO_SEND_CONFIDENCE_FLOOR", 0.95),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		ActivityLogSize: getEnvAsInt("ACTIVITY_LOG_SIZE", 100),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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
