package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	SupabaseURL string
	AppEnv      string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	OllamaHost       string
	OllamaEmbedModel string
	OllamaGenModel   string
	AIMaxRetries     int

	EmailService string // console, smtp
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	CORSOrigins       []string
	ChatRetentionDays int
}

// Load reads .env when present and builds the Config from the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	return FromEnv()
}

// FromEnv builds the Config from the current environment only.
func FromEnv() Config {
	cfg := Config{
		Port:        getEnv("PORT", "8081"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SupabaseURL: getEnv("SUPABASE_URL", getEnv("NEXT_PUBLIC_SUPABASE_URL", "")),
		AppEnv:      getEnv("APP_ENV", getEnv("NODE_ENV", "development")),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:       getEnv("OLLAMA_HOST", ""),
		OllamaEmbedModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaGenModel:   getEnv("OLLAMA_GEN_MODEL", ""),
		AIMaxRetries:     getEnvAsInt("AI_MAX_RETRIES", 2),

		EmailService: strings.ToLower(getEnv("EMAIL_SERVICE", "console")),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "WALI-OS <no-reply@wali-os.local>"),

		ChatRetentionDays: getEnvAsInt("CHAT_RETENTION_DAYS", 30),
	}

	cfg.CORSOrigins = []string{"http://localhost:3000"}
	for _, o := range strings.Split(getEnv("CORS_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if cfg.AIMaxRetries < 1 {
		cfg.AIMaxRetries = 2
	}
	if cfg.ChatRetentionDays < 1 {
		cfg.ChatRetentionDays = 30
	}
	return cfg
}

// IsProduction reports whether the service runs with APP_ENV (or NODE_ENV) set to production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
