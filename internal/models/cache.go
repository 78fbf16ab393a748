package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	FieldDefinitionTTL     = 7 * 24 * time.Hour
	ProjectAnalysisTTL     = 24 * time.Hour
	OpportunityAnalysisTTL = 24 * time.Hour
)

// CachedAnalysis is a stored AI result keyed by a project or opportunity.
type CachedAnalysis struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"user_id"`
	SubjectID uuid.UUID              `json:"subject_id"`
	Analysis  map[string]interface{} `json:"analysis"`
	Provider  string                 `json:"provider"`
	Model     string                 `json:"model"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// FieldDefinition is a cached explanation of a grant form field.
type FieldDefinition struct {
	UserID     uuid.UUID              `json:"user_id"`
	FieldName  string                 `json:"field_name"`
	Definition map[string]interface{} `json:"definition"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// IsStale reports whether a cached row written at updatedAt has outlived ttl.
func IsStale(updatedAt time.Time, ttl time.Duration, now time.Time) bool {
	if updatedAt.IsZero() {
		return true
	}
	return now.Sub(updatedAt) > ttl
}
