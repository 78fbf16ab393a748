package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/ai"
	"github.com/wali-os/wali/internal/analysis"
	"github.com/wali-os/wali/internal/config"
	"github.com/wali-os/wali/internal/db"
	"github.com/wali-os/wali/internal/scoring"
)

type projectResult struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Scored    int    `json:"scored"`
	Failed    int    `json:"failed"`
	Eligible  int    `json:"eligible"`
	Best      int    `json:"best_score"`
}

type userResult struct {
	Email    string          `json:"email"`
	Projects []projectResult `json:"projects"`
	Indexed  int             `json:"indexed"`
	Error    string          `json:"error,omitempty"`
}

// Recomputes rule-based fit scores for every project of the given users and optionally
// refreshes opportunity embeddings. No chat model is called.
func main() {
	emailsCSV := flag.String("emails", "", "comma-separated user emails")
	reindex := flag.Bool("reindex", false, "regenerate opportunity embeddings through Ollama")
	concurrency := flag.Int("concurrency", 4, "parallel scoring workers")
	perUserTimeoutSec := flag.Int("user-timeout-sec", 180, "timeout per user")
	flag.Parse()

	if strings.TrimSpace(*emailsCSV) == "" {
		log.Fatal("Please provide user emails using -emails flag")
	}

	cfg := config.Load()
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	store := db.NewStore(pool)
	scorer := scoring.NewService(store, nil)
	scorer.Concurrency = *concurrency
	var indexer *analysis.Service
	if *reindex {
		indexer = analysis.NewService(store, nil, ai.NewOllamaClient(cfg.OllamaHost, cfg.OllamaEmbedModel, cfg.OllamaGenModel))
	}

	var results []userResult
	for _, raw := range strings.Split(*emailsCSV, ",") {
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" {
			continue
		}
		userCtx, cancel := context.WithTimeout(ctx, time.Duration(*perUserTimeoutSec)*time.Second)
		res, err := rescoreUser(userCtx, store, scorer, indexer, email)
		cancel()
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func rescoreUser(ctx context.Context, store *db.Store, scorer *scoring.Service, indexer *analysis.Service, email string) (userResult, error) {
	res := userResult{Email: email, Projects: []projectResult{}}

	var uid uuid.UUID
	if err := store.Pool().QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&uid); err != nil {
		return res, fmt.Errorf("lookup user: %w", err)
	}

	if indexer != nil {
		n, err := indexer.IndexOpportunities(ctx, uid)
		res.Indexed = n
		if err != nil {
			return res, fmt.Errorf("index opportunities: %w", err)
		}
	}

	projects, err := store.ListProjects(ctx, uid)
	if err != nil {
		return res, err
	}
	for _, p := range projects {
		resp, err := scorer.Run(ctx, uid, scoring.Request{Action: scoring.ActionBatchScore, ProjectID: p.ID.String()})
		if err != nil {
			return res, fmt.Errorf("project %s: %w", p.ID, err)
		}
		pr := projectResult{ProjectID: p.ID.String(), Name: p.Name, Scored: resp.Scored, Failed: resp.Failed}
		for _, r := range resp.Results {
			if r.Eligible {
				pr.Eligible++
			}
			if r.OverallScore > pr.Best {
				pr.Best = r.OverallScore
			}
		}
		res.Projects = append(res.Projects, pr)
	}
	return res, nil
}
