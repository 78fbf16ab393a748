package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wali-os/wali/internal/models"
)

func (s *Store) CreateSession(ctx context.Context, userID uuid.UUID, title string) (*models.AssistantSession, error) {
	sess := &models.AssistantSession{UserID: userID, Title: title}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO assistant_sessions (user_id, title)
		VALUES ($1, $2)
		RETURNING id, created_at, last_activity_at
	`, userID, title).Scan(&sess.ID, &sess.CreatedAt, &sess.LastActivityAt)
	if err != nil {
		return nil, fmt.Errorf("create session failed: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.AssistantSession, error) {
	var sess models.AssistantSession
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, COALESCE(title, ''), created_at, last_activity_at
		FROM assistant_sessions
		WHERE user_id = $1 AND id = $2
	`, userID, sessionID).Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.LastActivityAt)
	if err != nil {
		return nil, notFound(err, "session")
	}
	return &sess, nil
}

func (s *Store) TouchSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE assistant_sessions SET last_activity_at = NOW()
		WHERE user_id = $1 AND id = $2
	`, userID, sessionID)
	if err != nil {
		return fmt.Errorf("touch session failed: %w", err)
	}
	return nil
}

func (s *Store) ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.AssistantSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, COALESCE(title, ''), created_at, last_activity_at
		FROM assistant_sessions
		WHERE user_id = $1
		ORDER BY last_activity_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	defer rows.Close()

	sessions := []models.AssistantSession{}
	for rows.Next() {
		var sess models.AssistantSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.LastActivityAt); err != nil {
			return nil, fmt.Errorf("scan session failed: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// InsertTurn stores one message and fills in its id and timestamp.
func (s *Store) InsertTurn(ctx context.Context, turn *models.ConversationTurn) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO assistant_conversations (session_id, user_id, role, content, intent)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, created_at
	`, turn.SessionID, turn.UserID, turn.Role, turn.Content, turn.Intent).Scan(&turn.ID, &turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert turn failed: %w", err)
	}
	return nil
}

func (s *Store) queryTurns(ctx context.Context, sql string, args ...interface{}) ([]models.ConversationTurn, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query turns failed: %w", err)
	}
	defer rows.Close()

	turns := []models.ConversationTurn{}
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserID, &t.Role, &t.Content, &t.Intent, &t.Summarized, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn failed: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

const turnCols = `id, session_id, user_id, role, content, COALESCE(intent, ''), summarized, created_at`

// ListTurns returns the whole transcript of a session, oldest first.
func (s *Store) ListTurns(ctx context.Context, userID, sessionID uuid.UUID) ([]models.ConversationTurn, error) {
	return s.queryTurns(ctx, `
		SELECT `+turnCols+`
		FROM assistant_conversations
		WHERE user_id = $1 AND session_id = $2
		ORDER BY created_at ASC, id ASC
	`, userID, sessionID)
}

// ListRecentTurns returns the last limit unsummarized turns, oldest first.
func (s *Store) ListRecentTurns(ctx context.Context, userID, sessionID uuid.UUID, limit int) ([]models.ConversationTurn, error) {
	return s.queryTurns(ctx, `
		SELECT * FROM (
			SELECT `+turnCols+`
			FROM assistant_conversations
			WHERE user_id = $1 AND session_id = $2 AND summarized = FALSE
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC, id ASC
	`, userID, sessionID, limit)
}

func (s *Store) CountUnsummarizedTurns(ctx context.Context, userID, sessionID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM assistant_conversations
		WHERE user_id = $1 AND session_id = $2 AND summarized = FALSE
	`, userID, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count turns failed: %w", err)
	}
	return n, nil
}

func (s *Store) ListUnsummarizedTurns(ctx context.Context, userID, sessionID uuid.UUID) ([]models.ConversationTurn, error) {
	return s.queryTurns(ctx, `
		SELECT `+turnCols+`
		FROM assistant_conversations
		WHERE user_id = $1 AND session_id = $2 AND summarized = FALSE
		ORDER BY created_at ASC, id ASC
	`, userID, sessionID)
}

// MarkTurnsSummarized flips the summarized flag. The flag never goes back to false.
func (s *Store) MarkTurnsSummarized(ctx context.Context, userID, sessionID uuid.UUID, turnIDs []uuid.UUID) error {
	if len(turnIDs) == 0 {
		return nil
	}
	ids := make([]string, len(turnIDs))
	for i, id := range turnIDs {
		ids[i] = id.String()
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE assistant_conversations SET summarized = TRUE
		WHERE user_id = $1 AND session_id = $2 AND id = ANY($3::uuid[])
	`, userID, sessionID, ids)
	if err != nil {
		return fmt.Errorf("mark summarized failed: %w", err)
	}
	return nil
}

func (s *Store) InsertSessionSummary(ctx context.Context, sum *models.SessionSummary) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO assistant_session_summaries (session_id, user_id, summary, turn_count, covered_from, covered_until, method)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, sum.SessionID, sum.UserID, sum.Summary, sum.TurnCount, sum.CoveredFrom, sum.CoveredUntil, sum.Method,
	).Scan(&sum.ID, &sum.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert summary failed: %w", err)
	}
	return nil
}

// ListSessionSummaries returns summaries oldest first so they read as a running history.
func (s *Store) ListSessionSummaries(ctx context.Context, userID, sessionID uuid.UUID) ([]models.SessionSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, user_id, summary, turn_count, covered_from, covered_until, method, created_at
		FROM assistant_session_summaries
		WHERE user_id = $1 AND session_id = $2
		ORDER BY created_at ASC
	`, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list summaries failed: %w", err)
	}
	defer rows.Close()

	out := []models.SessionSummary{}
	for rows.Next() {
		var sum models.SessionSummary
		if err := rows.Scan(&sum.ID, &sum.SessionID, &sum.UserID, &sum.Summary, &sum.TurnCount,
			&sum.CoveredFrom, &sum.CoveredUntil, &sum.Method, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary failed: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// StaleSession is an idle session together with the owner's address for the transcript email.
type StaleSession struct {
	models.AssistantSession
	Email string `json:"email"`
}

// ListStaleSessions finds sessions idle since before cutoff. Used only by the admin cleanup job.
// Sessions whose owner row is gone come back with an empty Email so the job can skip them.
func (s *Store) ListStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]StaleSession, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.user_id, COALESCE(s.title, ''), s.created_at, s.last_activity_at, COALESCE(u.email, '')
		FROM assistant_sessions s
		LEFT JOIN users u ON u.id = s.user_id
		WHERE s.last_activity_at < $1
		ORDER BY s.last_activity_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale sessions failed: %w", err)
	}
	defer rows.Close()

	out := []StaleSession{}
	for rows.Next() {
		var ss StaleSession
		if err := rows.Scan(&ss.ID, &ss.UserID, &ss.Title, &ss.CreatedAt, &ss.LastActivityAt, &ss.Email); err != nil {
			return nil, fmt.Errorf("scan stale session failed: %w", err)
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// DeleteSession removes a session with its turns and summaries in one transaction.
func (s *Store) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, q := range []string{
		"DELETE FROM assistant_session_summaries WHERE user_id = $1 AND session_id = $2",
		"DELETE FROM assistant_conversations WHERE user_id = $1 AND session_id = $2",
	} {
		if _, err := tx.Exec(ctx, q, userID, sessionID); err != nil {
			return fmt.Errorf("delete session data failed: %w", err)
		}
	}
	tag, err := tx.Exec(ctx, "DELETE FROM assistant_sessions WHERE user_id = $1 AND id = $2", userID, sessionID)
	if err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session: %w", ErrNotFound)
	}
	return tx.Commit(ctx)
}
