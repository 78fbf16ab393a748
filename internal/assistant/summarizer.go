package assistant

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/ai"
	"github.com/wali-os/wali/internal/models"
)

const (
	// SummaryThreshold is the unsummarized turn count a session must exceed before it is compacted.
	SummaryThreshold = 24
	// RecencyWindow is how many of the newest turns are never summarized.
	RecencyWindow = 10
)

// ConversationStore is the slice of db.Store the summarizer needs.
type ConversationStore interface {
	CountUnsummarizedTurns(ctx context.Context, userID, sessionID uuid.UUID) (int, error)
	ListUnsummarizedTurns(ctx context.Context, userID, sessionID uuid.UUID) ([]models.ConversationTurn, error)
	InsertSessionSummary(ctx context.Context, sum *models.SessionSummary) error
	MarkTurnsSummarized(ctx context.Context, userID, sessionID uuid.UUID, turnIDs []uuid.UUID) error
}

type SummaryResult struct {
	Skipped      bool                   `json:"skipped"`
	Reason       string                 `json:"reason,omitempty"`
	Unsummarized int                    `json:"unsummarized"`
	Summary      *models.SessionSummary `json:"summary,omitempty"`
}

// Summarizer rolls older turns of a session into one summary row, leaving the recency window alone.
type Summarizer struct {
	Store ConversationStore
	AI    ai.Completer
}

// SummarizeSessionIfNeeded compacts the session when it holds more than SummaryThreshold
// unsummarized turns. Otherwise it writes nothing and reports Skipped.
func (s *Summarizer) SummarizeSessionIfNeeded(ctx context.Context, sessionID, userID uuid.UUID) (*SummaryResult, error) {
	count, err := s.Store.CountUnsummarizedTurns(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count unsummarized: %w", err)
	}
	if count <= SummaryThreshold {
		return &SummaryResult{Skipped: true, Reason: "below threshold", Unsummarized: count}, nil
	}

	turns, err := s.Store.ListUnsummarizedTurns(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list unsummarized: %w", err)
	}
	if len(turns) <= RecencyWindow {
		return &SummaryResult{Skipped: true, Reason: "nothing outside the recency window", Unsummarized: len(turns)}, nil
	}

	older := turns[:len(turns)-RecencyWindow]
	transcript := RenderTranscript(older)

	method := "llm"
	text, err := s.summarizeWithModel(ctx, transcript)
	if err != nil {
		log.Printf("[assistant] summary model failed for session %s, using heuristic: %v", sessionID, err)
		method = "heuristic"
		text = HeuristicSummary(older)
	}

	sum := &models.SessionSummary{
		SessionID:    sessionID,
		UserID:       userID,
		Summary:      text,
		TurnCount:    len(older),
		CoveredFrom:  older[0].CreatedAt,
		CoveredUntil: older[len(older)-1].CreatedAt,
		Method:       method,
	}
	if err := s.Store.InsertSessionSummary(ctx, sum); err != nil {
		return nil, fmt.Errorf("insert summary: %w", err)
	}

	ids := make([]uuid.UUID, len(older))
	for i, t := range older {
		ids[i] = t.ID
	}
	if err := s.Store.MarkTurnsSummarized(ctx, userID, sessionID, ids); err != nil {
		return nil, fmt.Errorf("mark summarized: %w", err)
	}

	log.Printf("[assistant] summarized %d turns of session %s (%s)", len(older), sessionID, method)
	return &SummaryResult{Summary: sum, Unsummarized: len(turns) - len(older)}, nil
}

const summarySystemPrompt = `You condense conversations between a nonprofit and its grants assistant.
Write a summary with exactly these three sections, each a short bullet list:

## Key Facts
## Decisions & Actions
## Open Questions

Keep identifiers, amounts, dates and names exactly as written. Do not invent anything.`

func (s *Summarizer) summarizeWithModel(ctx context.Context, transcript string) (string, error) {
	if s.AI == nil {
		return "", ai.ErrNoProvider
	}
	comp, err := s.AI.GenerateCompletion(ctx, "summarization",
		[]ai.Message{ai.System(summarySystemPrompt), ai.User("Conversation:\n\n" + transcript)},
		ai.Options{MaxTokens: 800, Temperature: 0.2})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(comp.Content)
	if text == "" {
		return "", fmt.Errorf("empty summary")
	}
	return text, nil
}

const maxTurnChars = 1000

// clip shortens s to at most limit runes, ending in "..." when anything was cut.
func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-3]) + "..."
}

// RenderTranscript formats turns as ROLE: content lines for prompts and exports.
func RenderTranscript(turns []models.ConversationTurn) string {
	var b strings.Builder
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		content = clip(content, maxTurnChars)
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(t.Role), content)
	}
	return strings.TrimSpace(b.String())
}

var (
	factPattern     = regexp.MustCompile(`(?i)\$[\d,]+|\b\d{2}-\d{7}\b|\b(ein|uei|duns|cage|sam|deadline|budget|awarded|requested|due)\b`)
	decisionPattern = regexp.MustCompile(`(?i)\b(will|decided|plan(ning)? to|let'?s|going to|next step|submit|apply|draft)\b`)
	sentenceSplit   = regexp.MustCompile(`[.!\n]+`)
)

// HeuristicSummary builds the three-section summary without a model.
func HeuristicSummary(turns []models.ConversationTurn) string {
	var facts, decisions, questions []string
	seen := map[string]bool{}
	add := func(list *[]string, s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] || len(*list) >= 5 {
			return
		}
		s = clip(s, 160)
		seen[s] = true
		*list = append(*list, s)
	}

	for _, t := range turns {
		for _, sentence := range sentenceSplit.Split(t.Content, -1) {
			sentence = strings.TrimSpace(sentence)
			switch {
			case t.Role == models.RoleUser && strings.Contains(sentence, "?"):
				add(&questions, sentence)
			case factPattern.MatchString(sentence):
				add(&facts, sentence)
			case decisionPattern.MatchString(sentence):
				add(&decisions, sentence)
			}
		}
	}

	section := func(title string, items []string) string {
		if len(items) == 0 {
			return "## " + title + "\n- None noted"
		}
		return "## " + title + "\n- " + strings.Join(items, "\n- ")
	}
	return strings.Join([]string{
		section("Key Facts", facts),
		section("Decisions & Actions", decisions),
		section("Open Questions", questions),
	}, "\n\n")
}
