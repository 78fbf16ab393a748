package forms

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wali-os/wali/internal/models"
)

// UserData is everything a form can be filled from.
type UserData struct {
	Profile *models.UserProfile    `json:"profile"`
	Project *models.Project        `json:"project"`
	Extra   map[string]interface{} `json:"extra,omitempty"`
}

// Map flattens UserData into the JSON tree that data paths like "profile.ein" address.
func (d UserData) Map() map[string]interface{} {
	raw, err := json.Marshal(d)
	if err != nil {
		return map[string]interface{}{}
	}
	out := map[string]interface{}{}
	_ = json.Unmarshal(raw, &out)
	return out
}

// ResolvePath walks a dotted path through nested maps. Numeric segments index arrays.
func ResolvePath(data map[string]interface{}, path string) (string, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", false
	}
	var cur interface{} = data
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[part]
			if !ok {
				return "", false
			}
			cur = next
		case []interface{}:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return "", false
			}
			cur = node[i]
		default:
			return "", false
		}
	}
	return stringify(cur)
}

func stringify(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, strings.TrimSpace(x) != ""
	case bool:
		if x {
			return "Yes", true
		}
		return "No", true
	case float64:
		if x == 0 {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case []interface{}:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := stringify(item); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), len(parts) > 0
	}
	return "", false
}

type fieldRule struct {
	name    string
	match   *regexp.Regexp
	extract func(d UserData) string
}

func profile(f func(p *models.UserProfile) string) func(UserData) string {
	return func(d UserData) string {
		if d.Profile == nil {
			return ""
		}
		return f(d.Profile)
	}
}

func project(f func(p *models.Project) string) func(UserData) string {
	return func(d UserData) string {
		if d.Project == nil {
			return ""
		}
		return f(d.Project)
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func money(v float64) string {
	if v <= 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// fieldRules is checked top to bottom; the first rule whose pattern matches the label wins,
// so specific labels ("contact email") sit above generic ones ("name").
var fieldRules = []fieldRule{
	{"ein", regexp.MustCompile(`\b(ein|fein|employer identification|tax[\s_-]*(id|identification)|tin|federal tax)\b`), profile(func(p *models.UserProfile) string { return p.EIN })},
	{"uei", regexp.MustCompile(`\b(uei|unique entity)\b`), profile(func(p *models.UserProfile) string { return p.UEI })},
	{"duns", regexp.MustCompile(`\b(duns|d-u-n-s)\b`), profile(func(p *models.UserProfile) string { return p.DUNS })},
	{"cage", regexp.MustCompile(`\bcage\b`), profile(func(p *models.UserProfile) string { return p.CageCode })},
	{"sam_expiration", regexp.MustCompile(`\bsam\b.*\b(expir|renew)`), profile(func(p *models.UserProfile) string { return date(p.SAMExpiration) })},
	{"sam_status", regexp.MustCompile(`\bsam(\.gov)?\b`), profile(func(p *models.UserProfile) string { return p.SAMStatus })},

	{"contact_email", regexp.MustCompile(`e-?mail`), profile(func(p *models.UserProfile) string { return p.Email })},
	{"phone", regexp.MustCompile(`\b(phone|telephone|tel|mobile|cell)\b`), profile(func(p *models.UserProfile) string { return p.Phone })},
	{"website", regexp.MustCompile(`\b(website|web site|url|homepage)\b`), profile(func(p *models.UserProfile) string { return p.Website })},
	{"contact_title", regexp.MustCompile(`\b(contact|authorized|signatory|representative|your|job)\b.*\b(title|position|role)\b|^\s*(title|position)\s*$`), profile(func(p *models.UserProfile) string { return p.ContactTitle })},
	{"contact_name", regexp.MustCompile(`\b(contact|authorized|signatory|representative|director|executive|first and last|full name|your name|prepared by)\b`), profile(func(p *models.UserProfile) string { return p.ContactName })},

	{"address_line2", regexp.MustCompile(`\b(address\s*(line)?\s*2|suite|apt|unit)\b`), profile(func(p *models.UserProfile) string { return p.AddressLine2 })},
	{"city", regexp.MustCompile(`\b(city|town|municipality)\b`), profile(func(p *models.UserProfile) string { return p.City })},
	{"state", regexp.MustCompile(`\b(state|province)\b`), profile(func(p *models.UserProfile) string { return p.State })},
	{"zip", regexp.MustCompile(`\b(zip|postal)\b`), profile(func(p *models.UserProfile) string { return p.ZipCode })},
	{"country", regexp.MustCompile(`\bcountry\b`), profile(func(p *models.UserProfile) string { return p.Country })},
	{"full_address", regexp.MustCompile(`\b(full|mailing|physical|organization'?s?)\s+address\b`), profile(func(p *models.UserProfile) string { return p.FullAddress() })},
	{"street", regexp.MustCompile(`\b(street|address)\b`), profile(func(p *models.UserProfile) string { return p.AddressLine1 })},

	{"minority_owned", regexp.MustCompile(`\bminority\b`), profile(func(p *models.UserProfile) string { return yesNo(p.MinorityOwned) })},
	{"woman_owned", regexp.MustCompile(`\bwom[ae]n\b`), profile(func(p *models.UserProfile) string { return yesNo(p.WomanOwned) })},
	{"veteran_owned", regexp.MustCompile(`\bveteran\b`), profile(func(p *models.UserProfile) string { return yesNo(p.VeteranOwned) })},
	{"eight_a", regexp.MustCompile(`\b8\s*\(?a\)?\b`), profile(func(p *models.UserProfile) string { return yesNo(p.EightA) })},
	{"hubzone", regexp.MustCompile(`\bhub\s*zone\b`), profile(func(p *models.UserProfile) string { return yesNo(p.HUBZone) })},
	{"small_business", regexp.MustCompile(`\bsmall business\b`), profile(func(p *models.UserProfile) string { return yesNo(p.SmallBusiness) })},
	{"certifications", regexp.MustCompile(`\bcertifi`), profile(func(p *models.UserProfile) string { return strings.Join(p.Certifications(), ", ") })},

	{"annual_revenue", regexp.MustCompile(`\b(annual|total|gross)?\s*(revenue|income)\b`), profile(func(p *models.UserProfile) string { return money(p.AnnualRevenue) })},
	{"annual_budget", regexp.MustCompile(`\b(annual|operating|organization'?s?)\s+budget\b`), profile(func(p *models.UserProfile) string { return money(p.AnnualBudget) })},
	{"staff_count", regexp.MustCompile(`\b(staff|employees|fte|full[\s-]time)\b`), profile(func(p *models.UserProfile) string {
		if p.StaffCount == 0 {
			return ""
		}
		return strconv.Itoa(p.StaffCount)
	})},
	{"year_established", regexp.MustCompile(`\b(year|date)\s+(established|founded|incorporated)|\bfounded\b`), profile(func(p *models.UserProfile) string {
		if p.YearEstablished == 0 {
			return ""
		}
		return strconv.Itoa(p.YearEstablished)
	})},
	{"organization_type", regexp.MustCompile(`\b(organization|entity|applicant)\s+type\b|\blegal status\b`), profile(func(p *models.UserProfile) string { return strings.ReplaceAll(p.OrganizationType, "_", " ") })},
	{"mission", regexp.MustCompile(`\bmission\b`), profile(func(p *models.UserProfile) string { return p.MissionStatement })},
	{"service_area", regexp.MustCompile(`\b(service|geographic)\s+(area|region)|\bareas? served\b`), profile(func(p *models.UserProfile) string { return p.ServiceArea })},
	{"focus_areas", regexp.MustCompile(`\b(focus|program)\s+areas?\b`), profile(func(p *models.UserProfile) string { return strings.Join(p.FocusAreas, ", ") })},

	{"project_title", regexp.MustCompile(`\b(project|program|proposal)\s+(title|name)\b`), project(func(p *models.Project) string { return p.Name })},
	{"project_description", regexp.MustCompile(`\b(project|program)\s+(description|summary|narrative|overview)\b|\babstract\b`), project(func(p *models.Project) string { return p.Description })},
	{"amount_requested", regexp.MustCompile(`\b(amount|funding|funds|grant)\s+(requested|request|needed)\b|\brequest(ed)? amount\b`), project(func(p *models.Project) string { return money(p.RequestedAmount()) })},
	{"project_budget", regexp.MustCompile(`\b(project|program|total)\s+(budget|cost)\b`), project(func(p *models.Project) string { return money(p.Budget) })},
	{"target_population", regexp.MustCompile(`\b(target|beneficiar|population|who will benefit|participants)`), project(func(p *models.Project) string { return p.TargetPopulation })},
	{"project_start", regexp.MustCompile(`\b(start|begin)(ning)?\s+date\b`), project(func(p *models.Project) string { return date(p.StartDate) })},
	{"project_end", regexp.MustCompile(`\b(end|completion)\s+date\b`), project(func(p *models.Project) string { return date(p.EndDate) })},
	{"timeline", regexp.MustCompile(`\b(timeline|duration|project period|schedule)\b`), project(func(p *models.Project) string { return p.Timeline })},
	{"project_location", regexp.MustCompile(`\b(project|program)\s+(location|site)\b`), project(func(p *models.Project) string { return p.Location })},

	{"organization_name", regexp.MustCompile(`\b(organization|organisation|agency|applicant|legal|company|entity|nonprofit)\b.*\bname\b|\bname of (the )?(organization|applicant)\b`), profile(func(p *models.UserProfile) string { return p.OrganizationName })},
	{"name", regexp.MustCompile(`\bname\b`), profile(func(p *models.UserProfile) string { return p.OrganizationName })},
}

// ComprehensiveFieldMatch guesses a value for a form label from the user's data.
// It returns the rule name that produced the value.
func ComprehensiveFieldMatch(label string, d UserData) (value, rule string, ok bool) {
	l := strings.ToLower(strings.ReplaceAll(label, "_", " "))
	for _, r := range fieldRules {
		if !r.match.MatchString(l) {
			continue
		}
		if v := strings.TrimSpace(r.extract(d)); v != "" {
			return v, r.name, true
		}
		return "", r.name, false
	}
	return "", "", false
}
