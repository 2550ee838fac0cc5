package config

import (
	"os"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	PostgresUrl     string
	JwtKey          string
	TokenAge        time.Duration
	AllowedOrigins  []string
	QuestionsApiUrl string
	QuestionsApiKey string
	QuestionsModel  string
	Debug           bool
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ServerPort:      getEnv("PORT", "5000"),
		PostgresUrl:     os.Getenv("POSTGRES_URL"),
		JwtKey:          os.Getenv("JWT_KEY"),
		TokenAge:        time.Hour * 24 * 7,
		AllowedOrigins:  strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		QuestionsApiUrl: getEnv("QUESTIONS_API_URL", "https://api.deepseek.com/chat/completions"),
		QuestionsApiKey: os.Getenv("QUESTIONS_API_KEY"),
		QuestionsModel:  getEnv("QUESTIONS_MODEL", "deepseek-chat"),
		Debug:           os.Getenv("DEBUG") == "true",
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
