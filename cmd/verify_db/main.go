package main

import (
	"context"
	"fmt"
	"log"

	"github.com/wali-os/wali/internal/config"
	"github.com/wali-os/wali/internal/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	var vectorVersion string
	if err := pool.QueryRow(ctx, `SELECT extversion FROM pg_extension WHERE extname = 'vector'`).Scan(&vectorVersion); err != nil {
		log.Fatalf("pgvector extension missing: %v", err)
	}

	var opportunities, embedded, scored, sessions, turns, summaries int
	err = pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM opportunities),
			(SELECT count(embedding) FROM opportunities),
			(SELECT count(fit_score) FROM opportunities),
			(SELECT count(*) FROM assistant_sessions),
			(SELECT count(*) FROM assistant_conversations),
			(SELECT count(*) FROM assistant_session_summaries)
	`).Scan(&opportunities, &embedded, &scored, &sessions, &turns, &summaries)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("pgvector: %s\n", vectorVersion)
	fmt.Printf("Opportunities: %d\n", opportunities)
	fmt.Printf("With Embedding: %d\n", embedded)
	fmt.Printf("With Fit Score: %d\n", scored)
	fmt.Printf("Assistant Sessions: %d\n", sessions)
	fmt.Printf("Conversation Turns: %d\n", turns)
	fmt.Printf("Session Summaries: %d\n", summaries)
}
