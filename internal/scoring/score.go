package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/models"
)

// Maximum points per dimension; they sum to 100.
const (
	WeightKeywords  = 30
	WeightFunding   = 25
	WeightOrgType   = 15
	WeightDeadline  = 15
	WeightGeography = 15
)

// Input is one project/opportunity pair. Profile may be nil.
type Input struct {
	Project     *models.Project     `json:"project"`
	Opportunity *models.Opportunity `json:"opportunity"`
	Profile     *models.UserProfile `json:"profile"`
}

type Breakdown struct {
	Keywords  int `json:"keywords"`
	Funding   int `json:"funding"`
	OrgType   int `json:"orgType"`
	Deadline  int `json:"deadline"`
	Geography int `json:"geography"`
}

func (b Breakdown) Total() int {
	return b.Keywords + b.Funding + b.OrgType + b.Deadline + b.Geography
}

type Result struct {
	OpportunityID   string    `json:"opportunityId,omitempty"`
	OverallScore    int       `json:"overallScore"`
	RuleScore       int       `json:"ruleScore"`
	Eligible        bool      `json:"eligible"`
	Breakdown       Breakdown `json:"breakdown"`
	Reasons         []string  `json:"reasons"`
	MatchedKeywords []string  `json:"matchedKeywords,omitempty"`
	AIVerified      bool      `json:"aiVerified"`
	AIScore         *int      `json:"aiScore,omitempty"`
	AIReasoning     string    `json:"aiReasoning,omitempty"`
	Concerns        []string  `json:"concerns,omitempty"`
}

// Score rates how well an opportunity fits a project on a 0-100 scale. A past deadline
// or a closed opportunity is ineligible and scores 0.
func Score(in Input, now time.Time) Result {
	opp := in.Opportunity
	if opp == nil {
		return Result{Reasons: []string{"no opportunity to score"}}
	}
	res := Result{Eligible: true}
	if opp.ID != uuid.Nil {
		res.OpportunityID = opp.ID.String()
	}

	if strings.EqualFold(opp.Status, "closed") {
		res.Eligible = false
		res.Reasons = append(res.Reasons, "opportunity is closed")
		return res
	}
	if opp.Deadline != nil && !opp.IsRolling && opp.Deadline.Before(now) {
		res.Eligible = false
		res.Reasons = append(res.Reasons, fmt.Sprintf("deadline passed on %s", opp.Deadline.Format("Jan 2, 2006")))
		return res
	}

	var reason string
	res.Breakdown.Keywords, res.MatchedKeywords, reason = keywordScore(in)
	res.Reasons = append(res.Reasons, reason)
	res.Breakdown.Funding, reason = fundingScore(in.Project, opp)
	res.Reasons = append(res.Reasons, reason)
	res.Breakdown.OrgType, reason = orgTypeScore(in.Profile, opp)
	res.Reasons = append(res.Reasons, reason)
	res.Breakdown.Deadline, reason = deadlineScore(opp, now)
	res.Reasons = append(res.Reasons, reason)
	res.Breakdown.Geography, reason = geographyScore(in.Profile, in.Project, opp)
	res.Reasons = append(res.Reasons, reason)

	if res.Breakdown.OrgType == 0 {
		res.Eligible = false
	}
	res.RuleScore = res.Breakdown.Total()
	res.OverallScore = res.RuleScore
	return res
}

var (
	wordSplit = regexp.MustCompile(`[^a-z0-9]+`)
	stopwords = map[string]bool{
		"the": true, "and": true, "for": true, "with": true, "that": true, "this": true, "from": true,
		"will": true, "are": true, "our": true, "your": true, "their": true, "have": true, "has": true,
		"into": true, "who": true, "which": true, "other": true, "more": true, "than": true, "also": true,
		"grant": true, "grants": true, "funding": true, "fund": true, "program": true, "programs": true,
		"project": true, "projects": true, "organization": true, "organizations": true, "support": true,
		"provide": true, "through": true, "such": true, "each": true, "these": true, "those": true,
	}
)

// Keywords returns the distinct significant words of the given texts, in first-seen order.
func Keywords(texts ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range texts {
		for _, w := range wordSplit.Split(strings.ToLower(t), -1) {
			if len(w) < 4 || stopwords[w] || seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func keywordScore(in Input) (int, []string, string) {
	var projectTexts []string
	if p := in.Project; p != nil {
		projectTexts = append(projectTexts, p.Name, p.Description, p.TargetPopulation, p.ProjectType, strings.Join(p.Categories, " "))
	}
	if in.Profile != nil {
		projectTexts = append(projectTexts, strings.Join(in.Profile.FocusAreas, " "))
	}
	projectWords := Keywords(projectTexts...)
	if len(projectWords) == 0 {
		return 0, nil, "no project keywords to compare"
	}

	o := in.Opportunity
	oppWords := map[string]bool{}
	for _, w := range Keywords(o.Title, o.Description, strings.Join(o.Categories, " "), strings.Join(o.Eligibility, " ")) {
		oppWords[w] = true
	}

	var matched []string
	for _, w := range projectWords {
		if oppWords[w] {
			matched = append(matched, w)
		}
	}
	ratio := float64(len(matched)) / float64(len(projectWords))
	score := int(math.Round(WeightKeywords * math.Min(1, ratio*2)))
	return score, matched, fmt.Sprintf("%d of %d project keywords appear in the opportunity", len(matched), len(projectWords))
}

// OpportunityMax is the largest award, from the stored amount or the amount text.
func OpportunityMax(o *models.Opportunity) float64 {
	if o.AmountMax > 0 {
		return o.AmountMax
	}
	if o.AmountText != "" {
		if min, max, _ := ParseAmount(o.AmountText); max > 0 {
			return max
		} else if min > 0 {
			return min
		}
	}
	return o.AmountMin
}

func fundingScore(p *models.Project, o *models.Opportunity) (int, string) {
	requested := p.RequestedAmount()
	max := OpportunityMax(o)
	if requested <= 0 || max <= 0 {
		return 12, "funding fit unknown"
	}
	ratio := requested / max
	switch {
	case ratio >= 0.25 && ratio <= 1:
		return WeightFunding, "request fits within the award range"
	case ratio < 0.25:
		return 15, "request is small relative to the maximum award"
	case ratio <= 1.5:
		return 10, "request slightly exceeds the maximum award"
	}
	return 0, "request far exceeds the maximum award"
}

var openToAll = regexp.MustCompile(`^\s*(any|all)\s*$|\b(any|all)\s+(eligible\s+)?(applicants?|entities|organizations?|types?)\b`)

var orgTypeAliases = map[string][]string{
	"nonprofit":      {"nonprofit", "non-profit", "501(c)(3)", "501c3", "charit", "ngo", "community-based"},
	"small_business": {"small business", "for-profit", "business", "sbir", "company", "companies"},
	"government":     {"government", "state agenc", "local agenc", "municipal", "county", "city", "public agenc"},
	"education":      {"education", "school", "universit", "college", "institution of higher", "academic"},
	"tribal":         {"tribal", "tribe", "native american", "indian"},
}

func orgTypeScore(profile *models.UserProfile, o *models.Opportunity) (int, string) {
	if len(o.Eligibility) == 0 {
		return 10, "no eligibility restrictions listed"
	}
	if profile == nil || profile.OrganizationType == "" {
		return 10, "organization type unknown"
	}
	orgType := strings.ToLower(profile.OrganizationType)
	aliases, ok := orgTypeAliases[orgType]
	if !ok {
		aliases = []string{strings.ReplaceAll(orgType, "_", " ")}
	}
	for _, e := range o.Eligibility {
		el := strings.ToLower(e)
		if openToAll.MatchString(el) {
			return WeightOrgType, "open to all applicant types"
		}
		for _, a := range aliases {
			if strings.Contains(el, a) {
				return WeightOrgType, fmt.Sprintf("%s organizations are eligible", strings.ReplaceAll(orgType, "_", " "))
			}
		}
	}
	return 0, fmt.Sprintf("%s organizations are not listed as eligible", strings.ReplaceAll(orgType, "_", " "))
}

func deadlineScore(o *models.Opportunity, now time.Time) (int, string) {
	if o.IsRolling || o.Deadline == nil {
		return 10, "rolling or no deadline"
	}
	days := o.Deadline.Sub(now).Hours() / 24
	switch {
	case days < 7:
		return 5, fmt.Sprintf("deadline in %.0f days is very tight", days)
	case days < 14:
		return 10, fmt.Sprintf("deadline in %.0f days", days)
	case days <= 90:
		return WeightDeadline, fmt.Sprintf("deadline in %.0f days leaves time to prepare", days)
	}
	return 12, "deadline is more than 90 days away"
}

var nationalScopes = []string{"national", "nationwide", "united states", "usa", "u.s.", "us-wide", "all states"}

func geographyScore(profile *models.UserProfile, p *models.Project, o *models.Opportunity) (int, string) {
	focus := strings.ToLower(strings.TrimSpace(o.GeographicFocus))
	if focus == "" {
		return 10, "no geographic restriction"
	}
	for _, n := range nationalScopes {
		if strings.Contains(focus, n) {
			return 10, "national opportunity"
		}
	}

	var places []string
	if profile != nil {
		places = append(places, profile.State, profile.City, profile.ServiceArea)
	}
	if p != nil {
		places = append(places, p.Location)
	}
	var focusWords map[string]bool
	for _, place := range places {
		place = strings.ToLower(strings.TrimSpace(place))
		if len(place) < 2 {
			continue
		}
		if len(place) == 2 {
			// state codes only count as whole words
			if focusWords == nil {
				focusWords = wordSet(focus)
			}
			if focusWords[place] {
				return WeightGeography, "located in the funder's focus area"
			}
			continue
		}
		if strings.Contains(focus, place) || strings.Contains(place, focus) {
			return WeightGeography, "located in the funder's focus area"
		}
	}
	return 3, "outside the funder's stated geography"
}

func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range wordSplit.Split(s, -1) {
		if w != "" {
			set[w] = true
		}
	}
	return set
}
