package models

import (
	"time"

	"github.com/google/uuid"
)

// AssistantSession groups the turns of one assistant conversation.
type AssistantSession struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationTurn is one stored chat message. Summarized only ever moves false -> true.
type ConversationTurn struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	UserID     uuid.UUID `json:"user_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Intent     string    `json:"intent,omitempty"`
	Summarized bool      `json:"summarized"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionSummary condenses a block of older turns.
type SessionSummary struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	UserID       uuid.UUID `json:"user_id"`
	Summary      string    `json:"summary"`
	TurnCount    int       `json:"turn_count"`
	CoveredFrom  time.Time `json:"covered_from"`
	CoveredUntil time.Time `json:"covered_until"`
	Method       string    `json:"method"` // llm, heuristic
	CreatedAt    time.Time `json:"created_at"`
}
