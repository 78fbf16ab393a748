package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

type cleanupReport struct {
	Cutoff   time.Time `json:"cutoff"`
	Found    int       `json:"found"`
	Emailed  int       `json:"emailed"`
	Deleted  int       `json:"deleted"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Errors   []string  `json:"errors"`
	DryRun   bool      `json:"dryRun"`
	Duration string    `json:"duration"`
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8081", "API base URL")
	adminSecretFlag := flag.String("admin-secret", "", "Admin secret (or use ADMIN_SECRET env)")
	days := flag.Int("days", 0, "Idle days before a session is removed (0 uses the server's CHAT_RETENTION_DAYS)")
	dryRun := flag.Bool("dry-run", false, "Report what would be removed without emailing or deleting")
	timeout := flag.Duration("timeout", 10*time.Minute, "HTTP timeout")
	flag.Parse()

	adminSecret := strings.TrimSpace(*adminSecretFlag)
	if adminSecret == "" {
		adminSecret = strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	}
	if adminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]interface{}{"days": *days, "dryRun": *dryRun})
	url := strings.TrimRight(*baseURL, "/") + "/api/chat-cleanup"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Secret", adminSecret)

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	fmt.Printf("Response Status: %s\n", resp.Status)
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}

	var report cleanupReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		fmt.Printf("Error decoding report: %v\n", err)
		os.Exit(1)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Cutoff", "Found", "Emailed", "Deleted", "Skipped", "Failed", "Dry Run", "Duration"})
	t.AppendRow(table.Row{report.Cutoff.Format("2006-01-02 15:04"), report.Found, report.Emailed, report.Deleted,
		report.Skipped, report.Failed, report.DryRun, report.Duration})
	t.Render()

	for _, e := range report.Errors {
		fmt.Println("  error:", e)
	}
	if report.Failed > 0 {
		os.Exit(2)
	}
}
