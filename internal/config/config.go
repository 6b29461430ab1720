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

	// Gemini AI
	GeminiAPIKey         string
	GeminiConcurrentReqs int

	// Storage
	ClipsDir   string
	ScratchDir string

	// Pipeline limits
	MemoryLimitMB     int
	MaxVideoDuration  time.Duration
	MaxVideoSizeBytes int64
	CreditCost        int
	WorkerCount       int
	MaxTasksPerWorker int
	SoftTimeLimit     time.Duration
	HardTimeLimit     time.Duration
	ClipRetentionDays int

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
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),
		JWTSecret:   mustGetEnv("JWT_SECRET"),

		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),

		ClipsDir:   getEnvOrDefault("CLIPS_DIR", "./static/clips"),
		ScratchDir: getEnvOrDefault("SCRATCH_DIR", os.TempDir()),

		MemoryLimitMB:     getEnvAsIntOrDefault("MEMORY_LIMIT_MB", 2048),
		MaxVideoDuration:  time.Duration(getEnvAsIntOrDefault("MAX_VIDEO_DURATION_SECONDS", 10800)) * time.Second,
		MaxVideoSizeBytes: int64(getEnvAsIntOrDefault("MAX_VIDEO_SIZE_MB", 500)) * 1024 * 1024,
		CreditCost:        getEnvAsIntOrDefault("VIDEO_CREDIT_COST", 10),
		WorkerCount:       getEnvAsIntOrDefault("WORKER_COUNT", 3),
		MaxTasksPerWorker: getEnvAsIntOrDefault("MAX_TASKS_PER_WORKER", 100),
		SoftTimeLimit:     time.Duration(getEnvAsIntOrDefault("TASK_SOFT_TIME_LIMIT_SECONDS", 3600)) * time.Second,
		HardTimeLimit:     time.Duration(getEnvAsIntOrDefault("TASK_HARD_TIME_LIMIT_SECONDS", 4200)) * time.Second,
		ClipRetentionDays: getEnvAsIntOrDefault("CLIP_RETENTION_DAYS", 7),

		SMTPHost: getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort: getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUser: getEnvOrDefault("SMTP_USER", ""),
		SMTPPass: getEnvOrDefault("SMTP_PASS", ""),
		SMTPFrom: getEnvOrDefault("SMTP_FROM", "noreply@askaraai.com"),

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
