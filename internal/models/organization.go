package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrganizationTypes are the applicant classes the fit scorer knows how to match.
var OrganizationTypes = []string{"nonprofit", "small_business", "government", "education", "tribal"}

// NormalizeOrganizationType maps input like "Small Business" or "non-profit" onto an
// OrganizationTypes value. ok is false for anything outside the set.
func NormalizeOrganizationType(raw string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.NewReplacer(" ", "_", "-", "").Replace(t)
	for _, known := range OrganizationTypes {
		if t == known || t == strings.ReplaceAll(known, "_", "") {
			return known, true
		}
	}
	return "", false
}

// UserProfile is the organization identity record that backs every prompt and form fill.
type UserProfile struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	OrganizationName string     `json:"organization_name"`
	OrganizationType string     `json:"organization_type"` // nonprofit, small_business, government, education, tribal
	EIN              string     `json:"ein"`
	DUNS             string     `json:"duns"`
	UEI              string     `json:"uei"`
	CageCode         string     `json:"cage_code"`
	SAMStatus        string     `json:"sam_status"`
	SAMExpiration    *time.Time `json:"sam_expiration"`
	Website          string     `json:"website"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	ContactName      string     `json:"contact_name"`
	ContactTitle     string     `json:"contact_title"`
	AddressLine1     string     `json:"address_line1"`
	AddressLine2     string     `json:"address_line2"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	ZipCode          string     `json:"zip_code"`
	Country          string     `json:"country"`
	MissionStatement string     `json:"mission_statement"`
	YearEstablished  int        `json:"year_established"`
	MinorityOwned    bool       `json:"minority_owned"`
	WomanOwned       bool       `json:"woman_owned"`
	VeteranOwned     bool       `json:"veteran_owned"`
	SmallBusiness    bool       `json:"small_business"`
	EightA           bool       `json:"eight_a"`
	HUBZone          bool       `json:"hubzone"`
	AnnualBudget     float64    `json:"annual_budget"`
	AnnualRevenue    float64    `json:"annual_revenue"`
	StaffCount       int        `json:"staff_count"`
	FocusAreas       []string   `json:"focus_areas"`
	ServiceArea      string     `json:"service_area"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Certifications lists the human-readable certifications the organization holds.
func (p *UserProfile) Certifications() []string {
	if p == nil {
		return nil
	}
	var certs []string
	if p.MinorityOwned {
		certs = append(certs, "Minority-Owned")
	}
	if p.WomanOwned {
		certs = append(certs, "Woman-Owned")
	}
	if p.VeteranOwned {
		certs = append(certs, "Veteran-Owned")
	}
	if p.SmallBusiness {
		certs = append(certs, "Small Business")
	}
	if p.EightA {
		certs = append(certs, "8(a)")
	}
	if p.HUBZone {
		certs = append(certs, "HUBZone")
	}
	return certs
}

// FullAddress joins the address parts that are present.
func (p *UserProfile) FullAddress() string {
	if p == nil {
		return ""
	}
	line := p.AddressLine1
	if p.AddressLine2 != "" {
		line = joinNonEmpty(", ", line, p.AddressLine2)
	}
	cityState := joinNonEmpty(", ", p.City, p.State)
	if p.ZipCode != "" {
		cityState = joinNonEmpty(" ", cityState, p.ZipCode)
	}
	return joinNonEmpty(", ", line, cityState)
}

func joinNonEmpty(sep string, parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}

// Project is a funding-seeking initiative.
type Project struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	ProjectType      string     `json:"project_type"`
	Budget           float64    `json:"budget"`
	FundingNeeded    float64    `json:"funding_needed"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	Timeline         string     `json:"timeline"`
	TargetPopulation string     `json:"target_population"`
	Location         string     `json:"location"`
	Status           string     `json:"status"`
	Categories       []string   `json:"categories"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// RequestedAmount is what the project asks a funder for: the stated need, else the budget.
func (p *Project) RequestedAmount() float64 {
	if p == nil {
		return 0
	}
	if p.FundingNeeded > 0 {
		return p.FundingNeeded
	}
	return p.Budget
}

// Application is a drafted or submitted grant application.
type Application struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	ProjectID       *uuid.UUID `json:"project_id"`
	OpportunityID   *uuid.UUID `json:"opportunity_id"`
	Title           string     `json:"title"`
	Status          string     `json:"status"` // draft, submitted, under_review, awarded, rejected
	AmountRequested float64    `json:"amount_requested"`
	AmountAwarded   float64    `json:"amount_awarded"`
	Deadline        *time.Time `json:"deadline"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	Notes           string     `json:"notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Opportunity is a funding opportunity tracked by a user.
type Opportunity struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	ProjectID       *uuid.UUID `json:"project_id"`
	Title           string     `json:"title"`
	Sponsor         string     `json:"sponsor"`
	Description     string     `json:"description"`
	URL             string     `json:"url"`
	AmountMin       float64    `json:"amount_min"`
	AmountMax       float64    `json:"amount_max"`
	AmountText      string     `json:"amount_text"`
	Deadline        *time.Time `json:"deadline"`
	IsRolling       bool       `json:"is_rolling"`
	Eligibility     []string   `json:"eligibility"`
	GeographicFocus string     `json:"geographic_focus"`
	Categories      []string   `json:"categories"`
	FitScore        *int       `json:"fit_score"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Campaign is a crowdfunding campaign linked to a project.
type Campaign struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	ProjectID    *uuid.UUID `json:"project_id"`
	Title        string     `json:"title"`
	Platform     string     `json:"platform"`
	GoalAmount   float64    `json:"goal_amount"`
	RaisedAmount float64    `json:"raised_amount"`
	DonorCount   int        `json:"donor_count"`
	Status       string     `json:"status"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	URL          string     `json:"url"`
	CreatedAt    time.Time  `json:"created_at"`
}
