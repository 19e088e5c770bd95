package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Gemini completion provider
	GeminiAPIKey  string
	GeminiModelID string
	// LLMTimeout bounds a single completion call. It must stay well below
	// Twilio's 15-second webhook deadline or a slow model turns into a
	// retried (duplicate) webhook instead of a fallback reply.
	LLMTimeout time.Duration

	// Twilio voice webhook
	TwilioWebhookSecret string
	// SpeechTimeout is the <Gather> speech timeout in seconds.
	SpeechTimeout int

	// StaleCallThreshold is how long an active session may go without a
	// terminal lifecycle callback before the live-call read forces it failed.
	StaleCallThreshold time.Duration

	// PracticeTimezone is the wall-clock zone appointments are quoted in.
	PracticeTimezone string
	PracticeName     string

	// Admin dashboard auth
	AdminJWTSecret    string
	AdminUsername     string
	AdminPasswordHash string

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),
		LLMTimeout:    getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),

		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),
		SpeechTimeout:       getEnvAsInt("SPEECH_TIMEOUT_SECONDS", 5),

		StaleCallThreshold: getEnvAsDuration("STALE_CALL_THRESHOLD", time.Hour),

		PracticeTimezone: getEnv("PRACTICE_TIMEZONE", "UTC"),
		PracticeName:     getEnv("PRACTICE_NAME", "our medical practice"),

		AdminJWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),
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

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
