package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/wali-os/wali/internal/models"
)

// analysisTable maps a cache kind to its table and subject column.
var analysisTable = map[string][2]string{
	"project":     {"project_ai_analysis", "project_id"},
	"opportunity": {"opportunity_ai_analysis", "opportunity_id"},
}

func (s *Store) getAnalysis(ctx context.Context, kind string, userID, subjectID uuid.UUID) (*models.CachedAnalysis, error) {
	t := analysisTable[kind]
	var (
		a   models.CachedAnalysis
		raw []byte
	)
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, user_id, %[2]s, analysis, COALESCE(provider, ''), COALESCE(model, ''), updated_at
		FROM %[1]s
		WHERE user_id = $1 AND %[2]s = $2
	`, t[0], t[1]), userID, subjectID).Scan(&a.ID, &a.UserID, &a.SubjectID, &raw, &a.Provider, &a.Model, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err, kind+" analysis")
	}
	if err := json.Unmarshal(raw, &a.Analysis); err != nil {
		return nil, fmt.Errorf("decode %s analysis failed: %w", kind, err)
	}
	return &a, nil
}

func (s *Store) upsertAnalysis(ctx context.Context, kind string, a *models.CachedAnalysis) error {
	t := analysisTable[kind]
	raw, err := json.Marshal(a.Analysis)
	if err != nil {
		return fmt.Errorf("encode %s analysis failed: %w", kind, err)
	}
	err = s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %[1]s (user_id, %[2]s, analysis, provider, model, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, %[2]s) DO UPDATE SET
			analysis = EXCLUDED.analysis,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			updated_at = NOW()
		RETURNING id, updated_at
	`, t[0], t[1]), a.UserID, a.SubjectID, raw, a.Provider, a.Model).Scan(&a.ID, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert %s analysis failed: %w", kind, err)
	}
	return nil
}

func (s *Store) GetProjectAnalysis(ctx context.Context, userID, projectID uuid.UUID) (*models.CachedAnalysis, error) {
	return s.getAnalysis(ctx, "project", userID, projectID)
}

func (s *Store) UpsertProjectAnalysis(ctx context.Context, a *models.CachedAnalysis) error {
	return s.upsertAnalysis(ctx, "project", a)
}

func (s *Store) GetOpportunityAnalysis(ctx context.Context, userID, opportunityID uuid.UUID) (*models.CachedAnalysis, error) {
	return s.getAnalysis(ctx, "opportunity", userID, opportunityID)
}

func (s *Store) UpsertOpportunityAnalysis(ctx context.Context, a *models.CachedAnalysis) error {
	return s.upsertAnalysis(ctx, "opportunity", a)
}

// GetFieldDefinitions returns cached definitions keyed by field name. Missing names are absent.
func (s *Store) GetFieldDefinitions(ctx context.Context, userID uuid.UUID, names []string) (map[string]models.FieldDefinition, error) {
	out := map[string]models.FieldDefinition{}
	if len(names) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, field_name, definition, updated_at
		FROM field_definitions_cache
		WHERE user_id = $1 AND field_name = ANY($2)
	`, userID, names)
	if err != nil {
		return nil, fmt.Errorf("query field definitions failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d   models.FieldDefinition
			raw []byte
		)
		if err := rows.Scan(&d.UserID, &d.FieldName, &raw, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan field definition failed: %w", err)
		}
		if err := json.Unmarshal(raw, &d.Definition); err != nil {
			continue
		}
		out[d.FieldName] = d
	}
	return out, rows.Err()
}

func (s *Store) UpsertFieldDefinition(ctx context.Context, d *models.FieldDefinition) error {
	raw, err := json.Marshal(d.Definition)
	if err != nil {
		return fmt.Errorf("encode field definition failed: %w", err)
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO field_definitions_cache (user_id, field_name, definition, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, field_name) DO UPDATE SET
			definition = EXCLUDED.definition,
			updated_at = NOW()
		RETURNING updated_at
	`, d.UserID, d.FieldName, raw).Scan(&d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert field definition failed: %w", err)
	}
	return nil
}
