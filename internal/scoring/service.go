package scoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wali-os/wali/internal/ai"
	"github.com/wali-os/wali/internal/db"
	"github.com/wali-os/wali/internal/models"
)

// Actions accepted by Service.Run.
const (
	ActionFastScore  = "fast-score"
	ActionFullScore  = "full-score"
	ActionBatchScore = "batch-score"
)

// ErrValidation marks a request the caller must fix.
var ErrValidation = errors.New("invalid scoring request")

// Store is the slice of db.Store the scoring actions read and write.
type Store interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	GetProject(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error)
	GetOpportunity(ctx context.Context, userID, opportunityID uuid.UUID) (*models.Opportunity, error)
	ListOpportunities(ctx context.Context, userID uuid.UUID) ([]models.Opportunity, error)
	UpdateFitScore(ctx context.Context, userID, opportunityID uuid.UUID, score int) error
}

// Request is the body of /api/ai/enhanced-scoring. Inline project and opportunity
// objects take precedence over the IDs.
type Request struct {
	Action         string              `json:"action"`
	ProjectID      string              `json:"projectId"`
	OpportunityID  string              `json:"opportunityId"`
	OpportunityIDs []string            `json:"opportunityIds"`
	Project        *models.Project     `json:"project"`
	Opportunity    *models.Opportunity `json:"opportunity"`
}

type Response struct {
	Action  string   `json:"action"`
	Results []Result `json:"results"`
	Scored  int      `json:"scored"`
	Failed  int      `json:"failed"`
}

// Service runs the scoring actions for one user.
type Service struct {
	Store       Store
	Verifier    *Verifier
	Now         func() time.Time
	Concurrency int
}

func NewService(store Store, completer ai.Completer) *Service {
	return &Service{Store: store, Verifier: &Verifier{AI: completer}, Now: time.Now, Concurrency: 4}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run dispatches a request. fast-score is rules only; full-score adds the model check;
// batch-score rules-scores many opportunities in parallel and stores each fit score.
func (s *Service) Run(ctx context.Context, userID uuid.UUID, req Request) (*Response, error) {
	if req.Action == "" {
		req.Action = ActionFastScore
	}
	switch req.Action {
	case ActionFastScore, ActionFullScore:
		in, err := s.loadInput(ctx, userID, req)
		if err != nil {
			return nil, err
		}
		res := Score(in, s.now())
		if req.Action == ActionFullScore {
			if res, err = s.Verifier.Verify(ctx, in, res); err != nil {
				log.Printf("[scoring] verification skipped: %v", err)
			}
		}
		s.persist(ctx, userID, in.Opportunity, res)
		return &Response{Action: req.Action, Results: []Result{res}, Scored: 1}, nil
	case ActionBatchScore:
		return s.batch(ctx, userID, req)
	}
	return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, req.Action)
}

func (s *Service) loadInput(ctx context.Context, userID uuid.UUID, req Request) (Input, error) {
	var in Input
	var err error

	in.Project = req.Project
	if in.Project == nil {
		if in.Project, err = s.project(ctx, userID, req.ProjectID); err != nil {
			return in, err
		}
	}
	in.Opportunity = req.Opportunity
	if in.Opportunity == nil {
		id, perr := uuid.Parse(req.OpportunityID)
		if perr != nil {
			return in, fmt.Errorf("%w: opportunityId is required", ErrValidation)
		}
		if in.Opportunity, err = s.Store.GetOpportunity(ctx, userID, id); err != nil {
			return in, err
		}
	}
	in.Profile = s.profile(ctx, userID)
	return in, nil
}

func (s *Service) project(ctx context.Context, userID uuid.UUID, raw string) (*models.Project, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: projectId is required", ErrValidation)
	}
	return s.Store.GetProject(ctx, userID, id)
}

// A missing profile only weakens the org type and geography checks.
func (s *Service) profile(ctx context.Context, userID uuid.UUID) *models.UserProfile {
	p, err := s.Store.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.Printf("[scoring] load profile for %s: %v", userID, err)
		}
		return nil
	}
	return p
}

func (s *Service) persist(ctx context.Context, userID uuid.UUID, opp *models.Opportunity, res Result) {
	if opp == nil || opp.ID == uuid.Nil {
		return
	}
	if err := s.Store.UpdateFitScore(ctx, userID, opp.ID, res.OverallScore); err != nil && !errors.Is(err, db.ErrNotFound) {
		log.Printf("[scoring] store fit score for %s: %v", opp.ID, err)
	}
}

func (s *Service) batch(ctx context.Context, userID uuid.UUID, req Request) (*Response, error) {
	project := req.Project
	if project == nil {
		var err error
		if project, err = s.project(ctx, userID, req.ProjectID); err != nil {
			return nil, err
		}
	}

	var opps []models.Opportunity
	if len(req.OpportunityIDs) == 0 {
		all, err := s.Store.ListOpportunities(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list opportunities: %w", err)
		}
		opps = all
	} else {
		for _, raw := range req.OpportunityIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: bad opportunity id %q", ErrValidation, raw)
			}
			opps = append(opps, models.Opportunity{ID: id})
		}
	}

	profile := s.profile(ctx, userID)
	now := s.now()
	results := make([]Result, len(opps))
	ok := make([]bool, len(opps))

	limit := s.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range opps {
		i := i
		g.Go(func() error {
			opp := &opps[i]
			if opp.Title == "" {
				loaded, err := s.Store.GetOpportunity(gctx, userID, opp.ID)
				if err != nil {
					log.Printf("[scoring] batch: load opportunity %s: %v", opp.ID, err)
					return nil
				}
				opp = loaded
			}
			res := Score(Input{Project: project, Opportunity: opp, Profile: profile}, now)
			s.persist(gctx, userID, opp, res)
			results[i], ok[i] = res, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &Response{Action: ActionBatchScore}
	for i, r := range results {
		if !ok[i] {
			resp.Failed++
			continue
		}
		resp.Results = append(resp.Results, r)
	}
	sort.SliceStable(resp.Results, func(i, j int) bool {
		return resp.Results[i].OverallScore > resp.Results[j].OverallScore
	})
	resp.Scored = len(resp.Results)
	return resp, nil
}
