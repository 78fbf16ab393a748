package ai

import (
	"context"
	"fmt"
	"strings"
)

// AnalyzeStatus asks the model whether an opportunity is open, closed or forthcoming.
// Used when an opportunity carries no deadline to reason from.
func AnalyzeStatus(ctx context.Context, c Completer, title, description string) (string, error) {
	prompt := fmt.Sprintf(`Determine the status of this funding opportunity based on the text below.

TITLE: %s
DESCRIPTION: %s

Is this opportunity currently open for applications?
- If the text explicitly says "closed", "expired", "past", "no longer accepting", or similar, return "closed".
- If the text mentions a past year and no future year, return "closed".
- If the text says "coming soon", "future", "anticipated", return "forthcoming".
- If it seems active, open, or rolling, return "open".

Return ONLY a JSON object:
{"status": "open" | "closed" | "forthcoming", "reason": "brief explanation"}`, title, description)

	comp, err := c.GenerateCompletion(ctx, "opportunity-analysis",
		[]Message{System("You are an expert grant analyst."), User(prompt)},
		Options{MaxTokens: 200, ResponseFormat: ResponseFormatJSON})
	if err != nil {
		return "open", err
	}

	var result struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := SafeParseJSON(comp.Content, &result); err != nil {
		return "open", fmt.Errorf("failed to parse status json: %w", err)
	}

	return NormalizeStatus(result.Status), nil
}

// NormalizeStatus folds status synonyms into open, closed or forthcoming.
func NormalizeStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "closed", "expired", "archived":
		return "closed"
	case "forthcoming", "upcoming":
		return "forthcoming"
	}
	return "open"
}
