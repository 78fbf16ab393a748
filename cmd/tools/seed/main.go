package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/auth"
	"github.com/wali-os/wali/internal/config"
	"github.com/wali-os/wali/internal/db"
	"github.com/wali-os/wali/internal/models"
)

var (
	projectTypes = []string{"program", "capital", "research", "operating", "technology"}
	orgTypes     = models.OrganizationTypes
	focusAreas   = []string{"Education", "Health", "Housing", "Youth", "Food Security", "Environment", "Workforce Development"}
	eligibility  = []string{"Nonprofit", "Small Business", "Government", "Education", "Tribal"}
	sponsors     = []string{"Department of Education", "USDA Rural Development", "Walton Family Foundation", "Kresge Foundation", "State Arts Council"}
	appStatuses  = []string{"draft", "submitted", "under_review", "awarded", "rejected"}
	chatLines    = []string{
		"What deadlines are coming up this month?",
		"Draft a short need statement for our literacy program.",
		"Which opportunities fit a $50,000 request?",
		"Do we qualify as a small business for the USDA grant?",
	}
)

func main() {
	email := flag.String("email", "", "Demo user email (random when empty)")
	password := flag.String("password", "demo-password", "Demo user password")
	projects := flag.Int("projects", 3, "Projects to create")
	opportunities := flag.Int("opportunities", 12, "Opportunities to create")
	staleDays := flag.Int("stale-days", 45, "Backdate the demo chat session by this many days (0 keeps it fresh)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Faker seed")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()
	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	f := gofakeit.New(*seed)
	store := db.NewStore(pool)
	now := time.Now()

	if *email == "" {
		*email = f.Email()
	}
	signup, err := auth.NewService(pool).Signup(ctx, auth.SignupRequest{Email: *email, Password: *password})
	if err != nil {
		log.Fatalf("Signup failed: %v", err)
	}
	uid := signup.User.ID

	established := now.AddDate(-f.Number(2, 40), 0, 0)
	profile := &models.UserProfile{
		UserID:           uid,
		OrganizationName: f.Company(),
		OrganizationType: f.RandomString(orgTypes),
		EIN:              fmt.Sprintf("%02d-%07d", f.Number(10, 99), f.Number(0, 9999999)),
		UEI:              f.LetterN(12),
		SAMStatus:        "active",
		Website:          f.URL(),
		Email:            *email,
		Phone:            f.Phone(),
		ContactName:      f.Name(),
		ContactTitle:     f.JobTitle(),
		AddressLine1:     f.Street(),
		City:             f.City(),
		State:            f.StateAbr(),
		ZipCode:          f.Zip(),
		Country:          "US",
		MissionStatement: f.Sentence(18),
		YearEstablished:  established.Year(),
		SmallBusiness:    f.Bool(),
		AnnualBudget:     float64(f.Number(50, 5000) * 1000),
		StaffCount:       f.Number(1, 120),
		FocusAreas:       []string{f.RandomString(focusAreas), f.RandomString(focusAreas)},
		ServiceArea:      "statewide",
	}
	if err := store.UpsertProfile(ctx, profile); err != nil {
		log.Fatalf("Profile failed: %v", err)
	}

	var projectIDs []uuid.UUID
	for i := 0; i < *projects; i++ {
		need := float64(f.Number(10, 500) * 1000)
		p := &models.Project{
			UserID:           uid,
			Name:             f.RandomString(focusAreas) + " " + f.BuzzWord() + " initiative",
			Description:      f.Paragraph(1, 4, 14, " "),
			ProjectType:      f.RandomString(projectTypes),
			Budget:           need * 1.4,
			FundingNeeded:    need,
			TargetPopulation: f.RandomString([]string{"youth", "seniors", "rural families", "veterans", "students"}),
			Location:         profile.City + ", " + profile.State,
			Categories:       []string{f.RandomString(focusAreas)},
		}
		if err := store.CreateProject(ctx, p); err != nil {
			log.Fatalf("Project failed: %v", err)
		}
		projectIDs = append(projectIDs, p.ID)
	}

	for i := 0; i < *opportunities; i++ {
		o := &models.Opportunity{
			UserID:          uid,
			Title:           f.RandomString(focusAreas) + " " + f.RandomString([]string{"Grant", "Fund", "Challenge", "Fellowship"}),
			Sponsor:         f.RandomString(sponsors),
			Description:     f.Paragraph(1, 3, 16, " "),
			URL:             f.URL(),
			AmountMin:       float64(f.Number(5, 50) * 1000),
			Eligibility:     []string{f.RandomString(eligibility)},
			GeographicFocus: f.RandomString([]string{"national", profile.State, "rural communities"}),
			Categories:      []string{f.RandomString(focusAreas)},
		}
		o.AmountMax = o.AmountMin * float64(f.Number(2, 10))
		o.AmountText = fmt.Sprintf("$%.0f - $%.0f", o.AmountMin, o.AmountMax)
		switch f.Number(0, 4) {
		case 0:
			o.IsRolling = true
		case 1:
			past := now.AddDate(0, 0, -f.Number(1, 60))
			o.Deadline = &past
		default:
			next := now.AddDate(0, 0, f.Number(3, 120))
			o.Deadline = &next
		}
		if len(projectIDs) > 0 {
			pid := projectIDs[f.Number(0, len(projectIDs)-1)]
			o.ProjectID = &pid
		}
		if err := store.CreateOpportunity(ctx, o); err != nil {
			log.Fatalf("Opportunity failed: %v", err)
		}

		if i%3 == 0 {
			a := &models.Application{
				UserID:          uid,
				ProjectID:       o.ProjectID,
				OpportunityID:   &o.ID,
				Title:           o.Title,
				Status:          f.RandomString(appStatuses),
				AmountRequested: o.AmountMax,
				Deadline:        o.Deadline,
			}
			if a.Status == "awarded" {
				a.AmountAwarded = o.AmountMin
			}
			if err := store.CreateApplication(ctx, a); err != nil {
				log.Fatalf("Application failed: %v", err)
			}
		}
	}

	if len(projectIDs) > 0 {
		goal := float64(f.Number(5, 50) * 1000)
		c := &models.Campaign{
			UserID:       uid,
			ProjectID:    &projectIDs[0],
			Title:        "Community drive for " + profile.OrganizationName,
			Platform:     f.RandomString([]string{"GoFundMe", "GiveButter", "Kickstarter"}),
			GoalAmount:   goal,
			RaisedAmount: goal * f.Float64Range(0.1, 0.9),
			DonorCount:   f.Number(5, 300),
			Status:       "active",
			URL:          f.URL(),
		}
		if err := store.CreateCampaign(ctx, c); err != nil {
			log.Fatalf("Campaign failed: %v", err)
		}
	}

	session, err := store.CreateSession(ctx, uid, "Demo conversation")
	if err != nil {
		log.Fatalf("Session failed: %v", err)
	}
	for _, line := range chatLines {
		for _, turn := range []models.ConversationTurn{
			{SessionID: session.ID, UserID: uid, Role: models.RoleUser, Content: line},
			{SessionID: session.ID, UserID: uid, Role: models.RoleAssistant, Content: f.Sentence(20)},
		} {
			if err := store.InsertTurn(ctx, &turn); err != nil {
				log.Fatalf("Turn failed: %v", err)
			}
		}
	}
	if *staleDays > 0 {
		if _, err := pool.Exec(ctx, `UPDATE assistant_sessions SET last_activity_at = NOW() - make_interval(days => $2) WHERE id = $1`,
			session.ID, *staleDays); err != nil {
			log.Fatalf("Backdate failed: %v", err)
		}
	}

	fmt.Printf("Seeded %s (%s)\n", profile.OrganizationName, *email)
	fmt.Printf("  user:          %s\n", uid)
	fmt.Printf("  projects:      %d\n", len(projectIDs))
	fmt.Printf("  opportunities: %d\n", *opportunities)
	fmt.Printf("  chat session:  %s (idle %d days)\n", session.ID, *staleDays)
	fmt.Printf("  token:         %s\n", signup.Token)
}
