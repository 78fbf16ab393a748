package config

import "testing"

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "AI_MAX_RETRIES", "EMAIL_SERVICE", "CHAT_RETENTION_DAYS", "APP_ENV", "NODE_ENV", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	if cfg.Port != "8081" || cfg.AIMaxRetries != 2 || cfg.EmailService != "console" || cfg.ChatRetentionDays != 30 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.IsProduction() {
		t.Fatal("development should be the default environment")
	}
	if len(cfg.CORSOrigins) != 1 {
		t.Fatalf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("AI_MAX_RETRIES", "4")
	t.Setenv("EMAIL_SERVICE", "SMTP")
	t.Setenv("CHAT_RETENTION_DAYS", "not-a-number")
	t.Setenv("CORS_ORIGINS", "https://app.example.org, ,https://admin.example.org")

	cfg := FromEnv()
	if !cfg.IsProduction() {
		t.Fatal("NODE_ENV should be honoured when APP_ENV is empty")
	}
	if cfg.AIMaxRetries != 4 || cfg.EmailService != "smtp" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ChatRetentionDays != 30 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.ChatRetentionDays)
	}
	if len(cfg.CORSOrigins) != 3 || cfg.CORSOrigins[2] != "https://admin.example.org" {
		t.Fatalf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
}
