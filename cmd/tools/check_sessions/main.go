package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/wali-os/wali/internal/config"
	"github.com/wali-os/wali/internal/db"
)

// Lists the most recently idle assistant sessions and marks the ones the next cleanup pass would remove.
func main() {
	limit := flag.Int("limit", 20, "Sessions to list")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
		SELECT s.id::text, COALESCE(u.email, ''), COALESCE(s.title, ''), s.last_activity_at,
			(SELECT count(*) FROM assistant_conversations c WHERE c.session_id = s.id),
			(SELECT count(*) FROM assistant_conversations c WHERE c.session_id = s.id AND NOT c.summarized),
			(SELECT count(*) FROM assistant_session_summaries m WHERE m.session_id = s.id)
		FROM assistant_sessions s
		LEFT JOIN users u ON u.id = s.user_id
		ORDER BY s.last_activity_at ASC
		LIMIT $1`, *limit)
	if err != nil {
		log.Fatal(err)
	}
	defer rows.Close()

	cutoff := time.Now().AddDate(0, 0, -cfg.ChatRetentionDays)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Session", "Owner", "Title", "Turns", "Unsummarized", "Summaries", "Idle", "Cleanup"})

	var stale int
	for rows.Next() {
		var id, email, title string
		var lastActivity time.Time
		var turns, unsummarized, summaries int

		if err := rows.Scan(&id, &email, &title, &lastActivity, &turns, &unsummarized, &summaries); err != nil {
			log.Printf("Scan error: %v", err)
			continue
		}

		due := ""
		if lastActivity.Before(cutoff) {
			stale++
			due = "due"
			if email == "" {
				due = "kept (no email)"
			}
		}
		idle := time.Since(lastActivity).Round(time.Hour).String()
		t.AppendRow(table.Row{id[:8], email, title, turns, unsummarized, summaries, idle, due})
	}
	if err := rows.Err(); err != nil {
		log.Fatal(err)
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Retention", cfg.ChatRetentionDays})
	t.Render()
	log.Printf("%d sessions idle longer than %d days", stale, cfg.ChatRetentionDays)
}
