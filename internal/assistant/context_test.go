package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/models"
)

func TestSumFunding(t *testing.T) {
	apps := []models.Application{
		{AmountRequested: 25000, AmountAwarded: 0},
		{AmountRequested: 10000.10, AmountAwarded: 7500.20},
	}
	campaigns := []models.Campaign{{GoalAmount: 5000, RaisedAmount: 1200.5}}
	opps := []models.Opportunity{
		{AmountMax: 100000, AmountMin: 5000, Status: "open"},
		{AmountMin: 2000, Status: "forthcoming"},
		{AmountMax: 999999, Status: "Closed"},
	}

	got := SumFunding(apps, campaigns, opps)
	want := models.FundingTotals{
		Requested:            35000.10,
		Awarded:              7500.20,
		CampaignGoal:         5000,
		CampaignRaised:       1200.5,
		OpportunityPotential: 102000,
		TotalSecured:         8700.70,
	}
	if got != want {
		t.Fatalf("SumFunding = %+v, want %+v", got, want)
	}
}

func TestBuildOrgContext(t *testing.T) {
	store := newMemStore()
	userID, otherID := uuid.New(), uuid.New()
	store.projects = []models.Project{
		{UserID: userID, Name: "Food Pantry Expansion"},
		{UserID: otherID, Name: "Not mine"},
	}
	store.campaigns = []models.Campaign{{UserID: userID, GoalAmount: 1000, RaisedAmount: 250}}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	oc, err := BuildOrgContext(context.Background(), store, userID, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oc.Profile != nil || oc.Meta.HasProfile {
		t.Fatalf("missing profile must yield nil profile")
	}
	if len(oc.Projects) != 1 || oc.Meta.Counts["projects"] != 1 {
		t.Fatalf("expected only the user's project, got %+v", oc.Projects)
	}
	if oc.Funding.TotalSecured != 250 || !oc.Meta.GeneratedAt.Equal(now) {
		t.Fatalf("unexpected funding/meta %+v %+v", oc.Funding, oc.Meta)
	}

	store.failLists = true
	if _, err := BuildOrgContext(context.Background(), store, userID, now); !errors.Is(err, errBoom) {
		t.Fatalf("expected store error, got %v", err)
	}
}
