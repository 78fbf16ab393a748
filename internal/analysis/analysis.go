// Package analysis produces cached AI assessments of projects and opportunities and ranks
// opportunities against a project.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/ai"
	"github.com/wali-os/wali/internal/db"
	"github.com/wali-os/wali/internal/forms"
	"github.com/wali-os/wali/internal/models"
)

// Store is the slice of db.Store used by analysis and matching.
type Store interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	GetProject(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error)
	GetOpportunity(ctx context.Context, userID, opportunityID uuid.UUID) (*models.Opportunity, error)
	ListOpportunities(ctx context.Context, userID uuid.UUID) ([]models.Opportunity, error)
	GetProjectAnalysis(ctx context.Context, userID, projectID uuid.UUID) (*models.CachedAnalysis, error)
	UpsertProjectAnalysis(ctx context.Context, a *models.CachedAnalysis) error
	GetOpportunityAnalysis(ctx context.Context, userID, opportunityID uuid.UUID) (*models.CachedAnalysis, error)
	UpsertOpportunityAnalysis(ctx context.Context, a *models.CachedAnalysis) error
	SetOpportunityEmbedding(ctx context.Context, userID, opportunityID uuid.UUID, embedding []float32) error
	SimilarOpportunities(ctx context.Context, userID uuid.UUID, embedding []float32, limit int) ([]db.OpportunityMatch, error)
}

// ErrValidation marks a request the caller must fix.
var ErrValidation = errors.New("invalid analysis request")

// thinDescription is the length under which the opportunity page is fetched for more text.
const thinDescription = 400

type Service struct {
	Store    Store
	AI       ai.Completer
	Fetcher  PageFetcher
	Embedder ai.Embedder
	Now      func() time.Time
}

func NewService(store Store, completer ai.Completer, embedder ai.Embedder) *Service {
	return &Service{Store: store, AI: completer, Fetcher: NewCollyFetcher(), Embedder: embedder, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Result is a cached or freshly generated analysis.
type Result struct {
	Analysis  map[string]interface{} `json:"analysis"`
	Cached    bool                   `json:"cached"`
	Provider  string                 `json:"provider,omitempty"`
	Model     string                 `json:"model,omitempty"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	return id, nil
}

func cachedResult(a *models.CachedAnalysis) *Result {
	return &Result{Analysis: a.Analysis, Cached: true, Provider: a.Provider, Model: a.Model, UpdatedAt: a.UpdatedAt}
}

const projectPrompt = `Assess this project's readiness to seek grant funding.

ORGANIZATION:
%s

PROJECT:
%s

Return ONLY JSON:
{
  "summary": "two sentence overview",
  "strengths": ["..."],
  "gaps": ["missing information or weak points"],
  "recommended_categories": ["..."],
  "funding_readiness": 0-100,
  "suggested_funders": ["types of funders to target"],
  "next_steps": ["..."]
}`

// AnalyzeProject returns the project's analysis, reusing a cached one younger than
// models.ProjectAnalysisTTL unless force is set.
func (s *Service) AnalyzeProject(ctx context.Context, userID uuid.UUID, rawProjectID string, force bool) (*Result, error) {
	projectID, err := parseID(rawProjectID, "projectId")
	if err != nil {
		return nil, err
	}
	project, err := s.Store.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if !force {
		if cached, err := s.Store.GetProjectAnalysis(ctx, userID, projectID); err == nil {
			if !models.IsStale(cached.UpdatedAt, models.ProjectAnalysisTTL, s.now()) {
				return cachedResult(cached), nil
			}
		} else if !errors.Is(err, db.ErrNotFound) {
			log.Printf("[analysis] read project cache %s: %v", projectID, err)
		}
	}

	profile := s.profile(ctx, userID)
	projectJSON, _ := json.MarshalIndent(project, "", "  ")
	profileJSON, _ := json.MarshalIndent(profile, "", "  ")

	comp, err := s.AI.GenerateCompletion(ctx, "project-analysis",
		[]ai.Message{
			ai.System("You are a senior grant strategist reviewing a client's project."),
			ai.User(fmt.Sprintf(projectPrompt, profileJSON, projectJSON)),
		},
		ai.Options{MaxTokens: 2000, Temperature: 0.3, ResponseFormat: ai.ResponseFormatJSON})
	if err != nil {
		return nil, fmt.Errorf("project analysis: %w", err)
	}
	analysis, err := ai.ParseJSONMap(comp.Content)
	if err != nil {
		return nil, fmt.Errorf("project analysis: %w", err)
	}
	if cats, ok := analysis["recommended_categories"].([]interface{}); ok {
		analysis["recommended_categories"] = ai.FilterValid(toStrings(cats), ai.Categories)
	}

	row := &models.CachedAnalysis{UserID: userID, SubjectID: projectID, Analysis: analysis, Provider: string(comp.Provider), Model: comp.Model}
	if err := s.Store.UpsertProjectAnalysis(ctx, row); err != nil {
		log.Printf("[analysis] cache project analysis %s: %v", projectID, err)
		row.UpdatedAt = s.now()
	}
	return &Result{Analysis: analysis, Provider: row.Provider, Model: row.Model, UpdatedAt: row.UpdatedAt}, nil
}

const opportunityPrompt = `Analyze this funding opportunity for the organization below.

ORGANIZATION:
%s

OPPORTUNITY:
%s

PAGE TEXT:
%s

Return ONLY JSON:
{
  "summary": "two sentence overview",
  "eligibility_requirements": ["..."],
  "key_requirements": ["documents, match, registrations"],
  "fit_assessment": "how well the organization fits",
  "fit_score": 0-100,
  "red_flags": ["..."],
  "application_tips": ["..."],
  "estimated_effort": "low" | "medium" | "high"
}`

var effortLevels = []string{"low", "medium", "high"}

// AnalyzeOpportunity returns the opportunity's analysis, reusing a cached one younger than
// models.OpportunityAnalysisTTL unless force is set. Thin descriptions are supplemented
// with the text of the opportunity page.
func (s *Service) AnalyzeOpportunity(ctx context.Context, userID uuid.UUID, rawOpportunityID string, force bool) (*Result, error) {
	oppID, err := parseID(rawOpportunityID, "opportunityId")
	if err != nil {
		return nil, err
	}
	opp, err := s.Store.GetOpportunity(ctx, userID, oppID)
	if err != nil {
		return nil, err
	}

	if !force {
		if cached, err := s.Store.GetOpportunityAnalysis(ctx, userID, oppID); err == nil {
			if !models.IsStale(cached.UpdatedAt, models.OpportunityAnalysisTTL, s.now()) {
				return cachedResult(cached), nil
			}
		} else if !errors.Is(err, db.ErrNotFound) {
			log.Printf("[analysis] read opportunity cache %s: %v", oppID, err)
		}
	}

	pageText := ""
	if len(opp.Description) < thinDescription && opp.URL != "" && s.Fetcher != nil {
		if pageText, err = s.Fetcher.FetchText(ctx, opp.URL); err != nil {
			log.Printf("[analysis] fetch %s: %v", opp.URL, err)
			pageText = ""
		}
	}

	profile := s.profile(ctx, userID)
	oppJSON, _ := json.MarshalIndent(opp, "", "  ")
	profileJSON, _ := json.MarshalIndent(profile, "", "  ")
	if pageText == "" {
		pageText = "(not available)"
	}

	comp, err := s.AI.GenerateCompletion(ctx, "opportunity-analysis",
		[]ai.Message{
			ai.System("You are an expert grant analyst."),
			ai.User(fmt.Sprintf(opportunityPrompt, profileJSON, oppJSON, pageText)),
		},
		ai.Options{MaxTokens: 2000, Temperature: 0.2, ResponseFormat: ai.ResponseFormatJSON})
	if err != nil {
		return nil, fmt.Errorf("opportunity analysis: %w", err)
	}
	analysis, err := ai.ParseJSONMap(comp.Content)
	if err != nil {
		return nil, fmt.Errorf("opportunity analysis: %w", err)
	}
	if effort, ok := analysis["estimated_effort"].(string); ok {
		if v, ok := ai.ValidateChoice(effort, effortLevels); ok {
			analysis["estimated_effort"] = v
		} else {
			delete(analysis, "estimated_effort")
		}
	}

	// Without a deadline the text is the only evidence of whether it is still open.
	if opp.Deadline == nil && !opp.IsRolling {
		desc := opp.Description
		if pageText != "(not available)" {
			desc += "\n" + pageText
		}
		status, err := ai.AnalyzeStatus(ctx, s.AI, opp.Title, forms.TruncateText(desc, 4000))
		if err != nil {
			log.Printf("[analysis] status check %s: %v", oppID, err)
		}
		analysis["status"] = status
	} else {
		analysis["status"] = ai.NormalizeStatus(opp.Status)
	}

	row := &models.CachedAnalysis{UserID: userID, SubjectID: oppID, Analysis: analysis, Provider: string(comp.Provider), Model: comp.Model}
	if err := s.Store.UpsertOpportunityAnalysis(ctx, row); err != nil {
		log.Printf("[analysis] cache opportunity analysis %s: %v", oppID, err)
		row.UpdatedAt = s.now()
	}
	return &Result{Analysis: analysis, Provider: row.Provider, Model: row.Model, UpdatedAt: row.UpdatedAt}, nil
}

func (s *Service) profile(ctx context.Context, userID uuid.UUID) *models.UserProfile {
	p, err := s.Store.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.Printf("[analysis] load profile %s: %v", userID, err)
		}
		return nil
	}
	return p
}

func toStrings(v []interface{}) []string {
	out := make([]string, 0, len(v))
	for _, x := range v {
		if s, ok := x.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
