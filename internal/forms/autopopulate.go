package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/wali-os/wali/internal/ai"
)

// Value sources, in resolution order.
const (
	SourceAIPath        = "ai_path"
	SourceFallbackPath  = "fallback_path"
	SourceFallbackValue = "fallback_value"
	SourcePattern       = "pattern_match"
	SourceNone          = "none"
)

// FieldMapping is the model's suggestion for where a field's value lives in UserData.
type FieldMapping struct {
	FieldID       string   `json:"fieldId"`
	DataPath      string   `json:"dataPath"`
	FallbackPaths []string `json:"fallbackPaths"`
	FallbackValue string   `json:"fallbackValue"`
	Confidence    float64  `json:"confidence"`
}

type PopulatedField struct {
	FieldID    string  `json:"fieldId"`
	Label      string  `json:"label"`
	Value      string  `json:"value"`
	Source     string  `json:"source"`
	Path       string  `json:"path,omitempty"`
	Confidence float64 `json:"confidence"`
}

type PopulateResult struct {
	Fields     []PopulatedField  `json:"fields"`
	Values     map[string]string `json:"values"`
	Filled     int               `json:"filled"`
	Total      int               `json:"total"`
	AIMappings bool              `json:"aiMappings"`
}

const mappingPrompt = `Map each grant form field to the applicant data that answers it.

FORM FIELDS:
%s

AVAILABLE DATA (JSON, address values with dotted paths such as "profile.ein" or "project.name"):
%s

Return ONLY JSON:
{"mappings": [{"fieldId": "id", "dataPath": "profile.ein", "fallbackPaths": ["other.path"], "fallbackValue": "literal to use when no path resolves, or empty", "confidence": 0.0}]}

Only use paths that exist in the data. Leave dataPath empty when nothing fits.`

// AutoPopulate fills fields from data. With useAI the model proposes data paths first;
// every field still falls through to the label matcher when no path resolves.
func (a *Analyzer) AutoPopulate(ctx context.Context, fields []Field, data UserData, useAI bool) (*PopulateResult, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: fields are required", ErrValidation)
	}
	tree := data.Map()

	var mappings map[string]FieldMapping
	if useAI && a.AI != nil {
		var err error
		mappings, err = a.mapFields(ctx, fields, tree)
		if err != nil {
			log.Printf("[forms] field mapping failed, using pattern matching only: %v", err)
		}
	}

	res := &PopulateResult{Values: map[string]string{}, Total: len(fields), AIMappings: len(mappings) > 0}
	for _, f := range fields {
		pf := resolveField(f, mappings[f.ID], tree, data)
		if pf.Source != SourceNone {
			res.Filled++
			res.Values[f.ID] = pf.Value
		}
		res.Fields = append(res.Fields, pf)
	}
	return res, nil
}

func resolveField(f Field, m FieldMapping, tree map[string]interface{}, data UserData) PopulatedField {
	pf := PopulatedField{FieldID: f.ID, Label: f.Label, Source: SourceNone}

	if v, ok := ResolvePath(tree, m.DataPath); ok {
		pf.Value, pf.Source, pf.Path, pf.Confidence = v, SourceAIPath, m.DataPath, confidenceOr(m.Confidence, 0.8)
		return pf
	}
	for _, p := range m.FallbackPaths {
		if v, ok := ResolvePath(tree, p); ok {
			pf.Value, pf.Source, pf.Path, pf.Confidence = v, SourceFallbackPath, p, 0.6
			return pf
		}
	}
	if v := strings.TrimSpace(m.FallbackValue); v != "" {
		pf.Value, pf.Source, pf.Confidence = v, SourceFallbackValue, 0.4
		return pf
	}

	label := f.Label
	if label == "" {
		label = f.ID
	}
	if v, rule, ok := ComprehensiveFieldMatch(label, data); ok {
		pf.Value, pf.Source, pf.Path, pf.Confidence = v, SourcePattern, rule, 0.5
	}
	return pf
}

func confidenceOr(c, def float64) float64 {
	if c <= 0 || c > 1 {
		return def
	}
	return c
}

func (a *Analyzer) mapFields(ctx context.Context, fields []Field, tree map[string]interface{}) (map[string]FieldMapping, error) {
	fieldsJSON, _ := json.Marshal(fields)
	dataJSON, _ := json.Marshal(tree)

	comp, err := a.AI.GenerateCompletion(ctx, "field-mapping",
		[]ai.Message{
			ai.System("You map grant application fields to structured applicant data."),
			ai.User(fmt.Sprintf(mappingPrompt, fieldsJSON, TruncateText(string(dataJSON), maxDocumentChars))),
		},
		ai.Options{MaxTokens: 3000, Temperature: 0.1, ResponseFormat: ai.ResponseFormatJSON})
	if err != nil {
		return nil, err
	}

	var out struct {
		Mappings []FieldMapping `json:"mappings"`
	}
	if err := ai.SafeParseJSON(comp.Content, &out); err != nil {
		return nil, err
	}
	byID := make(map[string]FieldMapping, len(out.Mappings))
	for _, m := range out.Mappings {
		byID[m.FieldID] = m
	}
	return byID, nil
}
