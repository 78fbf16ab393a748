package assistant

import (
	"strings"
	"testing"
	"time"

	"github.com/wali-os/wali/internal/models"
)

func ptrTime(t time.Time) *time.Time { return &t }

func ptrInt(i int) *int { return &i }

func TestBuildReply_ProfileLookups(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &models.UserProfile{
		OrganizationName: "Harbor Food Bank",
		EIN:              "12-3456789",
		UEI:              "ZQGGHJH74DW7",
		SAMExpiration:    ptrTime(now.AddDate(0, 0, 30)),
		AddressLine1:     "1 Main St",
		City:             "Portland",
		State:            "ME",
		ZipCode:          "04101",
		WomanOwned:       true,
		AnnualBudget:     1250000,
	}
	oc := &models.OrgContext{Profile: p}

	tests := []struct {
		intent string
		want   []string
	}{
		{IntentEINLookup, []string{"12-3456789", "Harbor Food Bank"}},
		{IntentRegistrationLookup, []string{"ZQGGHJH74DW7", "expires in 30 days"}},
		{IntentAddressLookup, []string{"1 Main St, Portland, ME 04101"}},
		{IntentCertifications, []string{"Woman-Owned"}},
		{IntentFinancials, []string{"$1,250,000"}},
		{IntentGreeting, []string{"Hi, Harbor Food Bank!"}},
	}
	for _, tt := range tests {
		r := BuildReply(tt.intent, "", oc, now)
		if r.NeedsModel {
			t.Fatalf("%s: rule reply should not need the model", tt.intent)
		}
		for _, w := range tt.want {
			if !strings.Contains(r.Text, w) {
				t.Fatalf("%s: reply %q missing %q", tt.intent, r.Text, w)
			}
		}
	}
}

func TestBuildReply_NoProfile(t *testing.T) {
	for _, intent := range []string{IntentEINLookup, IntentAddressLookup, IntentProfileSummary, IntentFinancials} {
		if r := BuildReply(intent, "", &models.OrgContext{}, time.Now()); r.Text != noProfileText {
			t.Fatalf("%s: expected no-profile text, got %q", intent, r.Text)
		}
	}
}

func TestBuildReply_Definitions(t *testing.T) {
	r := BuildReply(IntentTermDefinition, "What does EIN mean?", nil, time.Now())
	if !strings.Contains(r.Text, "Employer Identification Number") || r.NeedsModel {
		t.Fatalf("unexpected glossary reply %+v", r)
	}

	r = BuildReply(IntentTermDefinition, "What does SF-424 mean?", nil, time.Now())
	if !r.NeedsModel || !strings.Contains(r.Text, "sf-424") {
		t.Fatalf("unknown term should defer to the model, got %+v", r)
	}

	if r := BuildReply(IntentGeneral, "tell me a joke", nil, time.Now()); !r.NeedsModel {
		t.Fatalf("general intent should need the model")
	}
}

func TestBuildReply_Deadlines(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	oc := &models.OrgContext{
		Opportunities: []models.Opportunity{
			{Title: "Later Grant", Deadline: ptrTime(now.AddDate(0, 0, 40))},
			{Title: "Soon Grant", Deadline: ptrTime(now.AddDate(0, 0, 5))},
			{Title: "Past Grant", Deadline: ptrTime(now.AddDate(0, 0, -1))},
			{Title: "Closed Grant", Deadline: ptrTime(now.AddDate(0, 0, 3)), Status: "closed"},
		},
		Applications: []models.Application{
			{Title: "Submitted App", Deadline: ptrTime(now.AddDate(0, 0, 2)), SubmittedAt: ptrTime(now)},
		},
	}
	text := BuildReply(IntentDeadlines, "", oc, now).Text

	soon, later := strings.Index(text, "Soon Grant"), strings.Index(text, "Later Grant")
	if soon < 0 || later < 0 || soon > later {
		t.Fatalf("expected soonest first:\n%s", text)
	}
	if !strings.Contains(text, "5 days left ⚠️") {
		t.Fatalf("expected warning for deadline within a week:\n%s", text)
	}
	for _, absent := range []string{"Past Grant", "Closed Grant", "Submitted App"} {
		if strings.Contains(text, absent) {
			t.Fatalf("%s should not be listed:\n%s", absent, text)
		}
	}
}

func TestBuildReply_OpportunitiesRankedByFit(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	oc := &models.OrgContext{Opportunities: []models.Opportunity{
		{Title: "Low", FitScore: ptrInt(40)},
		{Title: "Unscored"},
		{Title: "High", FitScore: ptrInt(90), AmountMax: 50000},
		{Title: "Expired", FitScore: ptrInt(99), Deadline: ptrTime(now.AddDate(0, 0, -2))},
	}}
	text := BuildReply(IntentOpportunityList, "", oc, now).Text
	if strings.Contains(text, "Expired") {
		t.Fatalf("expired opportunity listed:\n%s", text)
	}
	if strings.Index(text, "High") > strings.Index(text, "Low") || !strings.Contains(text, "up to $50,000 (fit 90/100)") {
		t.Fatalf("unexpected ranking:\n%s", text)
	}
}

func TestFormatMoney(t *testing.T) {
	tests := map[float64]string{
		0:       "$0",
		1500:    "$1,500",
		2500000: "$2,500,000",
		1234.5:  "$1,234.50",
		99.99:   "$99.99",
	}
	for in, want := range tests {
		if got := formatMoney(in); got != want {
			t.Fatalf("formatMoney(%v) = %q, want %q", in, got, want)
		}
	}
}
