package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/wali-os/wali/internal/models"
)

// ErrNotFound is returned when a user-scoped lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store is the only path to the database. Every method that touches organization data
// takes the caller's user id and filters on it.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for tools that run ad-hoc reports.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s lookup failed: %w", what, err)
}

const profileCols = `id, user_id, COALESCE(organization_name, ''), COALESCE(organization_type, ''),
	COALESCE(ein, ''), COALESCE(duns, ''), COALESCE(uei, ''), COALESCE(cage_code, ''),
	COALESCE(sam_status, ''), sam_expiration, COALESCE(website, ''), COALESCE(email, ''),
	COALESCE(phone, ''), COALESCE(contact_name, ''), COALESCE(contact_title, ''),
	COALESCE(address_line1, ''), COALESCE(address_line2, ''), COALESCE(city, ''),
	COALESCE(state, ''), COALESCE(zip_code, ''), COALESCE(country, ''),
	COALESCE(mission_statement, ''), COALESCE(year_established, 0),
	minority_owned, woman_owned, veteran_owned, small_business, eight_a, hubzone,
	COALESCE(annual_budget, 0), COALESCE(annual_revenue, 0), COALESCE(staff_count, 0),
	focus_areas, COALESCE(service_area, ''), created_at, updated_at`

func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.pool.QueryRow(ctx, "SELECT "+profileCols+" FROM user_profiles WHERE user_id = $1", userID).Scan(
		&p.ID, &p.UserID, &p.OrganizationName, &p.OrganizationType,
		&p.EIN, &p.DUNS, &p.UEI, &p.CageCode,
		&p.SAMStatus, &p.SAMExpiration, &p.Website, &p.Email,
		&p.Phone, &p.ContactName, &p.ContactTitle,
		&p.AddressLine1, &p.AddressLine2, &p.City,
		&p.State, &p.ZipCode, &p.Country,
		&p.MissionStatement, &p.YearEstablished,
		&p.MinorityOwned, &p.WomanOwned, &p.VeteranOwned, &p.SmallBusiness, &p.EightA, &p.HUBZone,
		&p.AnnualBudget, &p.AnnualRevenue, &p.StaffCount,
		&p.FocusAreas, &p.ServiceArea, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "profile")
	}
	return &p, nil
}

// UpsertProfile writes the single profile row for p.UserID.
func (s *Store) UpsertProfile(ctx context.Context, p *models.UserProfile) error {
	if p.FocusAreas == nil {
		p.FocusAreas = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_profiles (
			user_id, organization_name, organization_type, ein, duns, uei, cage_code,
			sam_status, sam_expiration, website, email, phone, contact_name, contact_title,
			address_line1, address_line2, city, state, zip_code, country, mission_statement,
			year_established, minority_owned, woman_owned, veteran_owned, small_business,
			eight_a, hubzone, annual_budget, annual_revenue, staff_count, focus_areas, service_area
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33
		)
		ON CONFLICT (user_id) DO UPDATE SET
			organization_name = EXCLUDED.organization_name,
			organization_type = EXCLUDED.organization_type,
			ein = EXCLUDED.ein,
			duns = EXCLUDED.duns,
			uei = EXCLUDED.uei,
			cage_code = EXCLUDED.cage_code,
			sam_status = EXCLUDED.sam_status,
			sam_expiration = EXCLUDED.sam_expiration,
			website = EXCLUDED.website,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			contact_name = EXCLUDED.contact_name,
			contact_title = EXCLUDED.contact_title,
			address_line1 = EXCLUDED.address_line1,
			address_line2 = EXCLUDED.address_line2,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip_code = EXCLUDED.zip_code,
			country = EXCLUDED.country,
			mission_statement = EXCLUDED.mission_statement,
			year_established = EXCLUDED.year_established,
			minority_owned = EXCLUDED.minority_owned,
			woman_owned = EXCLUDED.woman_owned,
			veteran_owned = EXCLUDED.veteran_owned,
			small_business = EXCLUDED.small_business,
			eight_a = EXCLUDED.eight_a,
			hubzone = EXCLUDED.hubzone,
			annual_budget = EXCLUDED.annual_budget,
			annual_revenue = EXCLUDED.annual_revenue,
			staff_count = EXCLUDED.staff_count,
			focus_areas = EXCLUDED.focus_areas,
			service_area = EXCLUDED.service_area,
			updated_at = NOW()
	`,
		p.UserID, p.OrganizationName, p.OrganizationType, p.EIN, p.DUNS, p.UEI, p.CageCode,
		p.SAMStatus, p.SAMExpiration, p.Website, p.Email, p.Phone, p.ContactName, p.ContactTitle,
		p.AddressLine1, p.AddressLine2, p.City, p.State, p.ZipCode, p.Country, p.MissionStatement,
		p.YearEstablished, p.MinorityOwned, p.WomanOwned, p.VeteranOwned, p.SmallBusiness,
		p.EightA, p.HUBZone, p.AnnualBudget, p.AnnualRevenue, p.StaffCount, p.FocusAreas, p.ServiceArea,
	)
	if err != nil {
		return fmt.Errorf("upsert profile failed: %w", err)
	}
	return nil
}

const projectCols = `id, user_id, name, COALESCE(description, ''), COALESCE(project_type, ''),
	COALESCE(budget, 0), COALESCE(funding_needed, 0), start_date, end_date,
	COALESCE(timeline, ''), COALESCE(target_population, ''), COALESCE(location, ''),
	status, categories, created_at, updated_at`

func scanProject(scan func(dest ...interface{}) error) (models.Project, error) {
	var p models.Project
	err := scan(
		&p.ID, &p.UserID, &p.Name, &p.Description, &p.ProjectType,
		&p.Budget, &p.FundingNeeded, &p.StartDate, &p.EndDate,
		&p.Timeline, &p.TargetPopulation, &p.Location,
		&p.Status, &p.Categories, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (s *Store) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+projectCols+" FROM projects WHERE user_id = $1 ORDER BY updated_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list projects failed: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan project failed: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+projectCols+" FROM projects WHERE user_id = $1 AND id = $2", userID, projectID)
	p, err := scanProject(row.Scan)
	if err != nil {
		return nil, notFound(err, "project")
	}
	return &p, nil
}

func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	if p.Categories == nil {
		p.Categories = []string{}
	}
	if p.Status == "" {
		p.Status = "active"
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO projects (user_id, name, description, project_type, budget, funding_needed,
			start_date, end_date, timeline, target_population, location, status, categories)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`, p.UserID, p.Name, p.Description, p.ProjectType, p.Budget, p.FundingNeeded,
		p.StartDate, p.EndDate, p.Timeline, p.TargetPopulation, p.Location, p.Status, p.Categories,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

const applicationCols = `id, user_id, project_id, opportunity_id, title, status,
	COALESCE(amount_requested, 0), COALESCE(amount_awarded, 0), deadline, submitted_at,
	COALESCE(notes, ''), created_at, updated_at`

func (s *Store) ListApplications(ctx context.Context, userID uuid.UUID) ([]models.Application, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+applicationCols+" FROM applications WHERE user_id = $1 ORDER BY updated_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list applications failed: %w", err)
	}
	defer rows.Close()

	apps := []models.Application{}
	for rows.Next() {
		var a models.Application
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.ProjectID, &a.OpportunityID, &a.Title, &a.Status,
			&a.AmountRequested, &a.AmountAwarded, &a.Deadline, &a.SubmittedAt,
			&a.Notes, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan application failed: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s *Store) CreateApplication(ctx context.Context, a *models.Application) error {
	if a.Status == "" {
		a.Status = "draft"
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO applications (user_id, project_id, opportunity_id, title, status,
			amount_requested, amount_awarded, deadline, submitted_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, a.UserID, a.ProjectID, a.OpportunityID, a.Title, a.Status,
		a.AmountRequested, a.AmountAwarded, a.Deadline, a.SubmittedAt, a.Notes,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

const opportunityCols = `id, user_id, project_id, title, COALESCE(sponsor, ''), COALESCE(description, ''),
	COALESCE(url, ''), COALESCE(amount_min, 0), COALESCE(amount_max, 0), COALESCE(amount_text, ''),
	deadline, is_rolling, eligibility, COALESCE(geographic_focus, ''), categories, fit_score,
	status, created_at, updated_at`

func scanOpportunity(scan func(dest ...interface{}) error) (models.Opportunity, error) {
	var o models.Opportunity
	err := scan(
		&o.ID, &o.UserID, &o.ProjectID, &o.Title, &o.Sponsor, &o.Description,
		&o.URL, &o.AmountMin, &o.AmountMax, &o.AmountText,
		&o.Deadline, &o.IsRolling, &o.Eligibility, &o.GeographicFocus, &o.Categories, &o.FitScore,
		&o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func (s *Store) collectOpportunities(rows pgx.Rows) ([]models.Opportunity, error) {
	defer rows.Close()
	opps := []models.Opportunity{}
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity failed: %w", err)
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

func (s *Store) ListOpportunities(ctx context.Context, userID uuid.UUID) ([]models.Opportunity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+opportunityCols+`
		FROM opportunities
		WHERE user_id = $1
		ORDER BY deadline ASC NULLS LAST, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list opportunities failed: %w", err)
	}
	return s.collectOpportunities(rows)
}

func (s *Store) GetOpportunity(ctx context.Context, userID, opportunityID uuid.UUID) (*models.Opportunity, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+opportunityCols+" FROM opportunities WHERE user_id = $1 AND id = $2", userID, opportunityID)
	o, err := scanOpportunity(row.Scan)
	if err != nil {
		return nil, notFound(err, "opportunity")
	}
	return &o, nil
}

func (s *Store) CreateOpportunity(ctx context.Context, o *models.Opportunity) error {
	if o.Eligibility == nil {
		o.Eligibility = []string{}
	}
	if o.Categories == nil {
		o.Categories = []string{}
	}
	if o.Status == "" {
		o.Status = "open"
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO opportunities (user_id, project_id, title, sponsor, description, url,
			amount_min, amount_max, amount_text, deadline, is_rolling, eligibility,
			geographic_focus, categories, fit_score, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`, o.UserID, o.ProjectID, o.Title, o.Sponsor, o.Description, o.URL,
		o.AmountMin, o.AmountMax, o.AmountText, o.Deadline, o.IsRolling, o.Eligibility,
		o.GeographicFocus, o.Categories, o.FitScore, o.Status,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

// UpdateFitScore stores the latest 0-100 fit score for an opportunity.
func (s *Store) UpdateFitScore(ctx context.Context, userID, opportunityID uuid.UUID, score int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE opportunities SET fit_score = $3, updated_at = NOW()
		WHERE user_id = $1 AND id = $2
	`, userID, opportunityID, score)
	if err != nil {
		return fmt.Errorf("update fit score failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("opportunity: %w", ErrNotFound)
	}
	return nil
}

func (s *Store) SetOpportunityEmbedding(ctx context.Context, userID, opportunityID uuid.UUID, embedding []float32) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE opportunities SET embedding = $3
		WHERE user_id = $1 AND id = $2
	`, userID, opportunityID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("set embedding failed: %w", err)
	}
	return nil
}

// OpportunityMatch pairs an opportunity with its cosine similarity to a query vector.
type OpportunityMatch struct {
	Opportunity models.Opportunity `json:"opportunity"`
	Similarity  float64            `json:"similarity"`
}

// SimilarOpportunities ranks the user's embedded opportunities by cosine similarity.
func (s *Store) SimilarOpportunities(ctx context.Context, userID uuid.UUID, embedding []float32, limit int) ([]OpportunityMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+opportunityCols+`, 1 - (embedding <=> $2) AS similarity
		FROM opportunities
		WHERE user_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2 ASC
		LIMIT $3
	`, userID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	defer rows.Close()

	matches := []OpportunityMatch{}
	for rows.Next() {
		var m OpportunityMatch
		o := &m.Opportunity
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.ProjectID, &o.Title, &o.Sponsor, &o.Description,
			&o.URL, &o.AmountMin, &o.AmountMax, &o.AmountText,
			&o.Deadline, &o.IsRolling, &o.Eligibility, &o.GeographicFocus, &o.Categories, &o.FitScore,
			&o.Status, &o.CreatedAt, &o.UpdatedAt, &m.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scan match failed: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

const campaignCols = `id, user_id, project_id, title, COALESCE(platform, ''),
	COALESCE(goal_amount, 0), COALESCE(raised_amount, 0), COALESCE(donor_count, 0),
	status, start_date, end_date, COALESCE(url, ''), created_at`

func (s *Store) ListCampaigns(ctx context.Context, userID uuid.UUID) ([]models.Campaign, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+campaignCols+" FROM campaigns WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns failed: %w", err)
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.ProjectID, &c.Title, &c.Platform,
			&c.GoalAmount, &c.RaisedAmount, &c.DonorCount,
			&c.Status, &c.StartDate, &c.EndDate, &c.URL, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan campaign failed: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (s *Store) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	if c.Status == "" {
		c.Status = "active"
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO campaigns (user_id, project_id, title, platform, goal_amount, raised_amount,
			donor_count, status, start_date, end_date, url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, c.UserID, c.ProjectID, c.Title, c.Platform, c.GoalAmount, c.RaisedAmount,
		c.DonorCount, c.Status, c.StartDate, c.EndDate, c.URL,
	).Scan(&c.ID, &c.CreatedAt)
}
