package main

import (
	"context"
	"log"

	"github.com/wali-os/wali/internal/ai"
	"github.com/wali-os/wali/internal/api"
	"github.com/wali-os/wali/internal/config"
	"github.com/wali-os/wali/internal/db"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	ollama := ai.NewOllamaClient(cfg.OllamaHost, cfg.OllamaEmbedModel, cfg.OllamaGenModel)
	providers := map[ai.Vendor]ai.Provider{ai.VendorOllama: ollama}
	if cfg.OpenAIAPIKey != "" {
		providers[ai.VendorOpenAI] = ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	} else {
		log.Print("OPENAI_API_KEY is not set; OpenAI tasks will fall back")
	}
	if cfg.AnthropicAPIKey != "" {
		providers[ai.VendorAnthropic] = ai.NewAnthropicClient(cfg.AnthropicAPIKey)
	} else {
		log.Print("ANTHROPIC_API_KEY is not set; Anthropic tasks will fall back")
	}

	router, err := ai.NewRouter(providers, cfg.AIMaxRetries)
	if err != nil {
		log.Fatalf("Failed to load AI provider table: %v", err)
	}

	srv := api.NewServer(cfg, pool, router, ollama)
	log.Printf("Server starting on port %s (%s, %d AI tasks)...", cfg.Port, cfg.AppEnv, len(router.Tasks()))
	if err := srv.Start(cfg.Port); err != nil {
		log.Fatal(err)
	}
}
