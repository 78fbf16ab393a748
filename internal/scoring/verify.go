package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/wali-os/wali/internal/ai"
)

// VerifyThreshold is the rule score at which a second opinion from the model is requested.
const VerifyThreshold = 70

// Verifier asks a model to double-check strong rule-based matches.
type Verifier struct {
	AI ai.Completer
}

type verification struct {
	Score     int      `json:"score"`
	Eligible  *bool    `json:"eligible"`
	Reasoning string   `json:"reasoning"`
	Concerns  []string `json:"concerns"`
}

const verifyPrompt = `A rule-based matcher scored this grant opportunity %d/100 for the project below.
Review the match and give your own score.

PROJECT:
%s

ORGANIZATION:
%s

OPPORTUNITY:
%s

RULE BREAKDOWN:
%s

Return ONLY JSON:
{"score": 0-100, "eligible": true|false, "reasoning": "one or two sentences", "concerns": ["eligibility or fit risks"]}`

// Verify blends the model's score into res when the rule score reaches VerifyThreshold.
// Below the threshold, or if the model fails, res is returned unchanged.
func (v *Verifier) Verify(ctx context.Context, in Input, res Result) (Result, error) {
	if v == nil || v.AI == nil || !res.Eligible || res.RuleScore < VerifyThreshold {
		return res, nil
	}

	project, _ := json.MarshalIndent(in.Project, "", "  ")
	profile, _ := json.MarshalIndent(in.Profile, "", "  ")
	opp, _ := json.MarshalIndent(in.Opportunity, "", "  ")
	breakdown, _ := json.Marshal(res.Breakdown)

	comp, err := v.AI.GenerateCompletion(ctx, "ai-verification",
		[]ai.Message{
			ai.System("You are a meticulous grant eligibility reviewer."),
			ai.User(fmt.Sprintf(verifyPrompt, res.RuleScore, project, profile, opp, breakdown)),
		},
		ai.Options{MaxTokens: 600, Temperature: 0.2, ResponseFormat: ai.ResponseFormatJSON})
	if err != nil {
		return res, fmt.Errorf("ai verification: %w", err)
	}
	var out verification
	if err := ai.SafeParseJSON(comp.Content, &out); err != nil {
		return res, fmt.Errorf("ai verification: %w", err)
	}

	aiScore := clamp(out.Score, 0, 100)
	res.AIScore = &aiScore
	res.AIVerified = true
	res.AIReasoning = out.Reasoning
	res.Concerns = out.Concerns
	res.OverallScore = Blend(res.RuleScore, aiScore)
	if out.Eligible != nil && !*out.Eligible {
		res.Eligible = false
	}
	return res, nil
}

// Blend weighs the rule score at 40% and the model score at 60%.
func Blend(rule, aiScore int) int {
	return int(math.Round(0.4*float64(rule) + 0.6*float64(aiScore)))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
