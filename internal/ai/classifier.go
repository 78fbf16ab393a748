package ai

import (
	"context"
	"fmt"
	"strings"
)

// Categories is the canonical grant category vocabulary.
var Categories = []string{
	"Arts & Culture", "Community Development", "Economic Development", "Education",
	"Environment", "Food Security", "Health", "Housing", "Human Services", "Infrastructure",
	"Research", "Technology", "Workforce Development", "Youth", "Agriculture", "Public Safety",
}

// Eligibility is the canonical applicant-type vocabulary.
var Eligibility = []string{
	"Nonprofit", "Small Business", "Government", "Education", "Tribal", "Individual", "For-profit Business",
}

var categorizePrompts = map[string]string{
	"research": `You are a grant research analyst. Study the request and return JSON:
{"summary": "string", "categories": ["Category"], "keywords": ["string"], "suggested_searches": ["string"], "funder_types": ["string"]}`,
	"project": `You are a grant strategist. Categorize the project described and return JSON:
{"categories": ["Category"], "eligibility": ["Eligibility"], "project_type": "string", "target_population": "string", "keywords": ["string"]}`,
	"opportunity": `You are an expert grant classifier. Categorize the funding opportunity and return JSON:
{"categories": ["Category"], "eligibility": ["Eligibility"], "funder_type": "string", "keywords": ["string"]}`,
	"organization": `You are a nonprofit sector analyst. Classify the organization and return JSON:
{"organization_type": "string", "categories": ["Category"], "focus_areas": ["string"], "keywords": ["string"]}`,
}

// CategorizeKinds lists the supported request types.
func CategorizeKinds() []string {
	return []string{"research", "project", "opportunity", "organization"}
}

// Categorize classifies free text for the given kind. Unknown kinds use the research prompt.
// The model's JSON is returned as parsed, objects and arrays alike; callers that store tags
// filter them with FilterValid.
func Categorize(ctx context.Context, c Completer, kind, prompt string) (interface{}, error) {
	system, ok := categorizePrompts[strings.ToLower(kind)]
	if !ok {
		system = categorizePrompts["research"]
	}
	system += fmt.Sprintf(`

AVAILABLE CATEGORIES: %s
AVAILABLE ELIGIBILITY: %s
Select only tags that strongly apply. Do not invent new tags. RESPOND ONLY WITH JSON.`,
		strings.Join(Categories, ", "), strings.Join(Eligibility, ", "))

	comp, err := c.GenerateCompletion(ctx, "categorization", []Message{System(system), User(prompt)},
		Options{MaxTokens: 1200, Temperature: 0.2, ResponseFormat: ResponseFormatJSON})
	if err != nil {
		return nil, err
	}

	var result interface{}
	if err := SafeParseJSON(comp.Content, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("null result: %w", ErrInvalidJSON)
	}
	return result, nil
}
