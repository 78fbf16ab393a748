package forms

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/ai"
	"github.com/wali-os/wali/internal/models"
)

// DefinitionStore is the cache table behind Definitions.
type DefinitionStore interface {
	GetFieldDefinitions(ctx context.Context, userID uuid.UUID, names []string) (map[string]models.FieldDefinition, error)
	UpsertFieldDefinition(ctx context.Context, d *models.FieldDefinition) error
}

// Definitions explains form fields, caching each answer per user for models.FieldDefinitionTTL.
type Definitions struct {
	Store DefinitionStore
	AI    ai.Completer
	Now   func() time.Time
}

type DefinitionsResult struct {
	Definitions map[string]map[string]interface{} `json:"definitions"`
	Cached      int                               `json:"cached"`
	Generated   int                               `json:"generated"`
}

const definitionsPrompt = `Explain these grant application form fields for a small nonprofit applicant.

FIELDS:
%s

Return ONLY JSON keyed by the exact field name:
{"field name": {"definition": "plain-language meaning", "example": "a realistic sample answer", "tips": "how to answer well", "required_documents": ["documents that back the answer"]}}`

// Get returns a definition for every name. Fresh cache rows are reused unless force is set;
// the rest come from one model call and are written back to the cache.
func (d *Definitions) Get(ctx context.Context, userID uuid.UUID, names []string, force bool) (*DefinitionsResult, error) {
	names = uniqueNames(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: fieldNames are required", ErrValidation)
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	res := &DefinitionsResult{Definitions: map[string]map[string]interface{}{}}
	var missing []string
	if force {
		missing = names
	} else {
		cached, err := d.Store.GetFieldDefinitions(ctx, userID, names)
		if err != nil {
			return nil, fmt.Errorf("load field definitions: %w", err)
		}
		for _, name := range names {
			row, ok := cached[name]
			if ok && !models.IsStale(row.UpdatedAt, models.FieldDefinitionTTL, now()) {
				res.Definitions[name] = row.Definition
				res.Cached++
				continue
			}
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return res, nil
	}

	comp, err := d.AI.GenerateCompletion(ctx, "field-definitions",
		[]ai.Message{
			ai.System("You are a patient grants coach."),
			ai.User(fmt.Sprintf(definitionsPrompt, "- "+strings.Join(missing, "\n- "))),
		},
		ai.Options{MaxTokens: 2500, Temperature: 0.3, ResponseFormat: ai.ResponseFormatJSON})
	if err != nil {
		return nil, fmt.Errorf("field definitions: %w", err)
	}
	generated, err := ai.ParseJSONMap(comp.Content)
	if err != nil {
		return nil, fmt.Errorf("field definitions: %w", err)
	}

	for _, name := range missing {
		def, ok := lookupFold(generated, name).(map[string]interface{})
		if !ok {
			continue
		}
		res.Definitions[name] = def
		res.Generated++
		row := &models.FieldDefinition{UserID: userID, FieldName: name, Definition: def}
		if err := d.Store.UpsertFieldDefinition(ctx, row); err != nil {
			log.Printf("[forms] cache field definition %q failed: %v", name, err)
		}
	}
	return res, nil
}

func uniqueNames(names []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func lookupFold(m map[string]interface{}, key string) interface{} {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}
