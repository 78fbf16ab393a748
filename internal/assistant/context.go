package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wali-os/wali/internal/db"
	"github.com/wali-os/wali/internal/models"
)

// OrgStore is the slice of db.Store the context builder reads.
type OrgStore interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	ListApplications(ctx context.Context, userID uuid.UUID) ([]models.Application, error)
	ListOpportunities(ctx context.Context, userID uuid.UUID) ([]models.Opportunity, error)
	ListCampaigns(ctx context.Context, userID uuid.UUID) ([]models.Campaign, error)
}

// BuildOrgContext loads the user's five data sets in parallel and sums the funding figures.
// A missing profile is not an error; any other query failure is.
func BuildOrgContext(ctx context.Context, store OrgStore, userID uuid.UUID, now time.Time) (*models.OrgContext, error) {
	oc := &models.OrgContext{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := store.GetProfile(gctx, userID)
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}
		oc.Profile = p
		return nil
	})
	g.Go(func() (err error) {
		oc.Projects, err = store.ListProjects(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		oc.Applications, err = store.ListApplications(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		oc.Opportunities, err = store.ListOpportunities(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		oc.Campaigns, err = store.ListCampaigns(gctx, userID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build org context: %w", err)
	}

	oc.Funding = SumFunding(oc.Applications, oc.Campaigns, oc.Opportunities)
	oc.Meta = models.ContextMeta{
		UserID:      userID,
		GeneratedAt: now.UTC(),
		HasProfile:  oc.Profile != nil,
		Counts: map[string]int{
			"projects":      len(oc.Projects),
			"applications":  len(oc.Applications),
			"opportunities": len(oc.Opportunities),
			"campaigns":     len(oc.Campaigns),
		},
	}
	return oc, nil
}

// SumFunding totals money across sources. Opportunity potential counts only open opportunities
// and uses the maximum award, falling back to the minimum.
func SumFunding(apps []models.Application, campaigns []models.Campaign, opps []models.Opportunity) models.FundingTotals {
	var requested, awarded, goal, raised, potential decimal.Decimal

	for _, a := range apps {
		requested = requested.Add(decimal.NewFromFloat(a.AmountRequested))
		awarded = awarded.Add(decimal.NewFromFloat(a.AmountAwarded))
	}
	for _, c := range campaigns {
		goal = goal.Add(decimal.NewFromFloat(c.GoalAmount))
		raised = raised.Add(decimal.NewFromFloat(c.RaisedAmount))
	}
	for _, o := range opps {
		if strings.EqualFold(o.Status, "closed") {
			continue
		}
		amount := o.AmountMax
		if amount <= 0 {
			amount = o.AmountMin
		}
		potential = potential.Add(decimal.NewFromFloat(amount))
	}

	money := func(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }
	return models.FundingTotals{
		Requested:            money(requested),
		Awarded:              money(awarded),
		CampaignGoal:         money(goal),
		CampaignRaised:       money(raised),
		OpportunityPotential: money(potential),
		TotalSecured:         money(awarded.Add(raised)),
	}
}
