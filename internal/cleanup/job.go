// Package cleanup exports idle assistant sessions to their owners by email and then deletes them.
package cleanup

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/db"
	"github.com/wali-os/wali/internal/models"
)

type Store interface {
	ListStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]db.StaleSession, error)
	ListTurns(ctx context.Context, userID, sessionID uuid.UUID) ([]models.ConversationTurn, error)
	ListSessionSummaries(ctx context.Context, userID, sessionID uuid.UUID) ([]models.SessionSummary, error)
	DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error
}

// Job runs one cleanup pass. A session is deleted only after its transcript was emailed;
// sessions whose owner has no address are left alone.
type Job struct {
	Store  Store
	Mailer Mailer
	Now    func() time.Time
	Limit  int
	DryRun bool
}

type Report struct {
	Cutoff   time.Time `json:"cutoff"`
	Found    int       `json:"found"`
	Emailed  int       `json:"emailed"`
	Deleted  int       `json:"deleted"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Errors   []string  `json:"errors,omitempty"`
	DryRun   bool      `json:"dryRun"`
	Duration string    `json:"duration"`
}

func (r *Report) fail(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[cleanup] %s", msg)
	r.Failed++
	r.Errors = append(r.Errors, msg)
}

// Run processes sessions idle for longer than olderThan.
func (j *Job) Run(ctx context.Context, olderThan time.Duration) (*Report, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	start := now()
	report := &Report{Cutoff: start.Add(-olderThan), DryRun: j.DryRun}

	sessions, err := j.Store.ListStaleSessions(ctx, report.Cutoff, j.Limit)
	if err != nil {
		return nil, fmt.Errorf("list stale sessions: %w", err)
	}
	report.Found = len(sessions)
	log.Printf("[cleanup] %d sessions idle since before %s", len(sessions), report.Cutoff.Format(time.RFC3339))

	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if strings.TrimSpace(s.Email) == "" {
			report.Skipped++
			continue
		}

		turns, err := j.Store.ListTurns(ctx, s.UserID, s.ID)
		if err != nil {
			report.fail("session %s: load turns: %v", s.ID, err)
			continue
		}
		summaries, err := j.Store.ListSessionSummaries(ctx, s.UserID, s.ID)
		if err != nil {
			report.fail("session %s: load summaries: %v", s.ID, err)
			continue
		}
		if j.DryRun {
			report.Skipped++
			continue
		}

		if len(turns) > 0 {
			if err := j.Mailer.Send(ctx, TranscriptEmail(s, turns, summaries)); err != nil {
				report.fail("session %s: email: %v", s.ID, err)
				continue
			}
			report.Emailed++
		}

		if err := j.Store.DeleteSession(ctx, s.UserID, s.ID); err != nil {
			report.fail("session %s: delete: %v", s.ID, err)
			continue
		}
		report.Deleted++
	}

	report.Duration = now().Sub(start).String()
	log.Printf("[cleanup] done: emailed=%d deleted=%d skipped=%d failed=%d", report.Emailed, report.Deleted, report.Skipped, report.Failed)
	return report, nil
}

// TranscriptEmail renders the export sent before a session is deleted.
func TranscriptEmail(s db.StaleSession, turns []models.ConversationTurn, summaries []models.SessionSummary) Email {
	title := s.Title
	if title == "" {
		title = "Assistant conversation"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here is the transcript of your WALI-OS assistant conversation %q.\n", title)
	fmt.Fprintf(&b, "Started %s, last active %s.\n", s.CreatedAt.Format("Jan 2, 2006"), s.LastActivityAt.Format("Jan 2, 2006"))
	b.WriteString("The conversation has been idle and is being removed from your workspace.\n\n")
	for _, sum := range summaries {
		fmt.Fprintf(&b, "--- Summary of %d earlier messages ---\n%s\n\n", sum.TurnCount, strings.TrimSpace(sum.Summary))
	}
	b.WriteString("--- Transcript ---\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "[%s] %s: %s\n\n", t.CreatedAt.Format("2006-01-02 15:04"), strings.ToUpper(t.Role), strings.TrimSpace(t.Content))
	}
	return Email{
		To:      s.Email,
		Subject: "Your WALI-OS conversation: " + title,
		Body:    b.String(),
	}
}
