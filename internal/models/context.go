package models

import (
	"time"

	"github.com/google/uuid"
)

// OrgContext aggregates everything known about a user's organization for prompts and replies.
type OrgContext struct {
	Profile       *UserProfile  `json:"profile"`
	Projects      []Project     `json:"projects"`
	Applications  []Application `json:"applications"`
	Opportunities []Opportunity `json:"opportunities"`
	Campaigns     []Campaign    `json:"campaigns"`
	Funding       FundingTotals `json:"funding"`
	Meta          ContextMeta   `json:"meta"`
}

// FundingTotals sums money across applications, campaigns and tracked opportunities.
type FundingTotals struct {
	Requested            float64 `json:"requested"`
	Awarded              float64 `json:"awarded"`
	CampaignGoal         float64 `json:"campaign_goal"`
	CampaignRaised       float64 `json:"campaign_raised"`
	OpportunityPotential float64 `json:"opportunity_potential"`
	TotalSecured         float64 `json:"total_secured"`
}

type ContextMeta struct {
	UserID      uuid.UUID      `json:"user_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Counts      map[string]int `json:"counts"`
	HasProfile  bool           `json:"has_profile"`
}
