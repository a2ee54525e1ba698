package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Google sign-in (optional; empty disables the endpoint)
	GoogleClientID string

	// Gemini AI
	GeminiAPIKey         string
	GeminiRequestsPerMin int
	GeminiTokensPerMin   int
	GeminiConcurrentReqs int

	// Background workers
	WorkerCount int

	// Study session tracking
	SessionMaxDuration       time.Duration
	SessionInactivityTimeout time.Duration
	SessionIdleWarningTime   time.Duration
	SessionAutoPauseGrace    time.Duration
	SessionFlushInterval     time.Duration

	// Storage
	StorageType string
	StoragePath string

	// SMTP
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		DatabaseURL:          mustGetEnv("DATABASE_URL"),
		RedisURL:             mustGetEnv("REDIS_URL"),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		GoogleClientID:       getEnvOrDefault("GOOGLE_CLIENT_ID", ""),
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiRequestsPerMin: getEnvAsIntOrDefault("GEMINI_REQUESTS_PER_MINUTE", 60),
		GeminiTokensPerMin:   getEnvAsIntOrDefault("GEMINI_TOKENS_PER_MINUTE", 1000000),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		WorkerCount:          getEnvAsIntOrDefault("WORKER_COUNT", 4),

		SessionMaxDuration:       getEnvAsDurationOrDefault("SESSION_MAX_DURATION", 3*time.Hour),
		SessionInactivityTimeout: getEnvAsDurationOrDefault("SESSION_INACTIVITY_TIMEOUT", 15*time.Minute),
		SessionIdleWarningTime:   getEnvAsDurationOrDefault("SESSION_IDLE_WARNING_TIME", 2*time.Minute),
		SessionAutoPauseGrace:    getEnvAsDurationOrDefault("SESSION_AUTO_PAUSE_GRACE", time.Minute),
		SessionFlushInterval:     getEnvAsDurationOrDefault("SESSION_FLUSH_INTERVAL", 5*time.Second),

		StorageType: getEnvOrDefault("STORAGE_TYPE", "local"),
		StoragePath: getEnvOrDefault("STORAGE_PATH", "./uploads"),
		SMTPHost:    getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:    getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUser:    getEnvOrDefault("SMTP_USER", ""),
		SMTPPass:    getEnvOrDefault("SMTP_PASS", ""),
		SMTPFrom:    getEnvOrDefault("SMTP_FROM", "noreply@studyhub.app"),
		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
