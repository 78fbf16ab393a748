package analysis

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/models"
	"github.com/wali-os/wali/internal/scoring"
)

const (
	MatchMethodEmbedding = "embedding"
	MatchMethodRules     = "rules"
)

type Match struct {
	Opportunity models.Opportunity `json:"opportunity"`
	Similarity  *float64           `json:"similarity,omitempty"`
	Score       scoring.Result     `json:"score"`
}

type MatchResult struct {
	Method  string  `json:"method"`
	Matches []Match `json:"matches"`
	Indexed int     `json:"indexed,omitempty"`
}

// ProjectText is the text embedded for a project.
func ProjectText(p *models.Project) string {
	return strings.Join([]string{p.Name, p.Description, p.TargetPopulation, strings.Join(p.Categories, ", ")}, "\n")
}

// OpportunityText is the text embedded for an opportunity.
func OpportunityText(o *models.Opportunity) string {
	return strings.Join([]string{o.Title, o.Sponsor, o.Description, strings.Join(o.Categories, ", "), strings.Join(o.Eligibility, ", ")}, "\n")
}

// MatchOpportunities ranks the user's opportunities for a project by embedding similarity.
// When no embedder is configured or no opportunity can be embedded, it falls back to the
// rule-based score. Ineligible opportunities are dropped either way.
func (s *Service) MatchOpportunities(ctx context.Context, userID uuid.UUID, rawProjectID string, limit int) (*MatchResult, error) {
	projectID, err := parseID(rawProjectID, "projectId")
	if err != nil {
		return nil, err
	}
	project, err := s.Store.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	profile := s.profile(ctx, userID)

	if s.Embedder != nil {
		res, err := s.matchByEmbedding(ctx, userID, project, profile, limit)
		if err == nil && len(res.Matches) > 0 {
			return res, nil
		}
		if err != nil {
			log.Printf("[analysis] embedding match failed, using rules: %v", err)
		}
	}
	return s.matchByRules(ctx, userID, project, profile, limit)
}

func (s *Service) matchByEmbedding(ctx context.Context, userID uuid.UUID, project *models.Project, profile *models.UserProfile, limit int) (*MatchResult, error) {
	vec, err := s.Embedder.GenerateEmbedding(ctx, ProjectText(project))
	if err != nil {
		return nil, fmt.Errorf("embed project: %w", err)
	}

	res := &MatchResult{Method: MatchMethodEmbedding}
	similar, err := s.Store.SimilarOpportunities(ctx, userID, vec, limit)
	if err != nil {
		return nil, err
	}
	if len(similar) == 0 {
		// Nothing embedded yet: index the user's opportunities once and retry.
		if res.Indexed, err = s.IndexOpportunities(ctx, userID); err != nil {
			return nil, err
		}
		if res.Indexed == 0 {
			return res, nil
		}
		if similar, err = s.Store.SimilarOpportunities(ctx, userID, vec, limit); err != nil {
			return nil, err
		}
	}

	now := s.now()
	for _, m := range similar {
		opp := m.Opportunity
		score := scoring.Score(scoring.Input{Project: project, Opportunity: &opp, Profile: profile}, now)
		if !score.Eligible && score.OverallScore == 0 {
			continue
		}
		sim := m.Similarity
		res.Matches = append(res.Matches, Match{Opportunity: opp, Similarity: &sim, Score: score})
	}
	return res, nil
}

// IndexOpportunities embeds every opportunity of the user and stores the vectors.
// It returns how many were stored.
func (s *Service) IndexOpportunities(ctx context.Context, userID uuid.UUID) (int, error) {
	opps, err := s.Store.ListOpportunities(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list opportunities: %w", err)
	}
	indexed := 0
	for i := range opps {
		vec, err := s.Embedder.GenerateEmbedding(ctx, OpportunityText(&opps[i]))
		if err != nil {
			log.Printf("[analysis] embed opportunity %s: %v", opps[i].ID, err)
			continue
		}
		if err := s.Store.SetOpportunityEmbedding(ctx, userID, opps[i].ID, vec); err != nil {
			log.Printf("[analysis] store embedding %s: %v", opps[i].ID, err)
			continue
		}
		indexed++
	}
	return indexed, nil
}

func (s *Service) matchByRules(ctx context.Context, userID uuid.UUID, project *models.Project, profile *models.UserProfile, limit int) (*MatchResult, error) {
	opps, err := s.Store.ListOpportunities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	now := s.now()
	res := &MatchResult{Method: MatchMethodRules, Matches: []Match{}}
	for i := range opps {
		score := scoring.Score(scoring.Input{Project: project, Opportunity: &opps[i], Profile: profile}, now)
		if !score.Eligible && score.OverallScore == 0 {
			continue
		}
		res.Matches = append(res.Matches, Match{Opportunity: opps[i], Score: score})
	}
	sort.SliceStable(res.Matches, func(i, j int) bool {
		return res.Matches[i].Score.OverallScore > res.Matches[j].Score.OverallScore
	})
	if len(res.Matches) > limit {
		res.Matches = res.Matches[:limit]
	}
	return res, nil
}
