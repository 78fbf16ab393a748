package assistant

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wali-os/wali/internal/models"
)

// Reply is a rule-built answer. NeedsModel marks replies that only make sense after LLM refinement.
type Reply struct {
	Text       string
	NeedsModel bool
}

const noProfileText = "📝 I couldn't find an organization profile for you yet. Complete your profile so I can answer questions about your organization and fill forms for you."

// DataUnavailableText is shown when the user's data cannot be loaded.
const DataUnavailableText = "I'm having trouble accessing your data right now. Please try again in a moment."

var printer = message.NewPrinter(language.English)

func formatMoney(v float64) string {
	if v == float64(int64(v)) {
		return printer.Sprintf("$%d", int64(v))
	}
	return printer.Sprintf("$%.2f", v)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "no date"
	}
	return t.Format("Jan 2, 2006")
}

func orgName(p *models.UserProfile) string {
	if p == nil || p.OrganizationName == "" {
		return "your organization"
	}
	return p.OrganizationName
}

func daysUntil(t time.Time, now time.Time) int {
	return int(t.Sub(now).Hours() / 24)
}

// BuildReply formats a reply for intent from the user's org context.
func BuildReply(intent, msg string, oc *models.OrgContext, now time.Time) Reply {
	if oc == nil {
		oc = &models.OrgContext{}
	}
	switch intent {
	case IntentGreeting:
		name := ""
		if oc.Profile != nil && oc.Profile.OrganizationName != "" {
			name = ", " + oc.Profile.OrganizationName
		}
		return Reply{Text: fmt.Sprintf("👋 Hi%s! I'm WALI, your grants assistant. Ask me about your EIN, projects, deadlines, applications or funding.", name)}
	case IntentEINLookup:
		return einReply(oc.Profile)
	case IntentRegistrationLookup:
		return registrationReply(oc.Profile, now)
	case IntentTermDefinition:
		return definitionReply(msg)
	case IntentProfileSummary:
		return profileReply(oc.Profile)
	case IntentAddressLookup:
		return addressReply(oc.Profile)
	case IntentCertifications:
		return certificationsReply(oc.Profile)
	case IntentFinancials:
		return financialsReply(oc.Profile)
	case IntentProjectList:
		return projectsReply(oc.Projects)
	case IntentApplicationStatus:
		return applicationsReply(oc.Applications)
	case IntentDeadlines:
		return deadlinesReply(oc, now)
	case IntentOpportunityList:
		return opportunitiesReply(oc.Opportunities, now)
	case IntentFundingSummary:
		return fundingReply(oc.Funding)
	case IntentCampaignStatus:
		return campaignsReply(oc.Campaigns)
	case IntentHelp:
		return Reply{Text: helpText}
	}
	return Reply{
		Text:       "🤔 I'm not sure about that one yet. " + helpText,
		NeedsModel: true,
	}
}

const helpText = `💡 Here's what I can help with:
• Your EIN, UEI, DUNS, CAGE code and SAM.gov status
• Your address, certifications and financials
• Your projects, applications and campaigns
• Upcoming deadlines and open opportunities
• Funding totals
• Grant terms like "What does NOFO mean?"`

func einReply(p *models.UserProfile) Reply {
	if p == nil {
		return Reply{Text: noProfileText}
	}
	if p.EIN == "" {
		return Reply{Text: fmt.Sprintf("🆔 I don't have an EIN on file for %s. Add it to your profile; almost every grant application asks for it.", orgName(p))}
	}
	return Reply{Text: fmt.Sprintf("🆔 **Your EIN**\n%s's EIN is **%s**.", orgName(p), p.EIN)}
}

func registrationReply(p *models.UserProfile, now time.Time) Reply {
	if p == nil {
		return Reply{Text: noProfileText}
	}
	var b strings.Builder
	b.WriteString("🏛️ **Federal registrations**\n")
	rows := []struct{ label, value string }{
		{"UEI", p.UEI}, {"DUNS", p.DUNS}, {"CAGE code", p.CageCode}, {"SAM.gov status", p.SAMStatus},
	}
	found := false
	for _, r := range rows {
		if r.value == "" {
			continue
		}
		found = true
		fmt.Fprintf(&b, "• %s: **%s**\n", r.label, r.value)
	}
	if p.SAMExpiration != nil {
		found = true
		fmt.Fprintf(&b, "• SAM.gov expires: %s\n", formatDate(p.SAMExpiration))
		if d := daysUntil(*p.SAMExpiration, now); d < 0 {
			b.WriteString("⚠️ Your SAM.gov registration has expired. Renew it before applying for federal grants.\n")
		} else if d <= 60 {
			fmt.Fprintf(&b, "⚠️ Your SAM.gov registration expires in %d days. Start the renewal now.\n", d)
		}
	}
	if !found {
		return Reply{Text: "🏛️ I don't have any federal registration numbers (UEI, DUNS, CAGE, SAM.gov) on file. Add them to your profile."}
	}
	return Reply{Text: strings.TrimSpace(b.String())}
}

func definitionReply(msg string) Reply {
	term := ExtractTerm(msg)
	if e, ok := LookupTerm(term); ok {
		return Reply{Text: fmt.Sprintf("📖 **%s**\n%s", e.Term, e.Definition)}
	}
	if term == "" {
		term = "that term"
	}
	return Reply{
		Text:       fmt.Sprintf("📖 I don't have a definition for %q in my glossary yet.", term),
		NeedsModel: true,
	}
}

func profileReply(p *models.UserProfile) Reply {
	if p == nil {
		return Reply{Text: noProfileText}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏢 **%s**\n", orgName(p))
	if p.OrganizationType != "" {
		fmt.Fprintf(&b, "• Type: %s\n", strings.ReplaceAll(p.OrganizationType, "_", " "))
	}
	if p.MissionStatement != "" {
		fmt.Fprintf(&b, "• Mission: %s\n", p.MissionStatement)
	}
	if p.YearEstablished > 0 {
		fmt.Fprintf(&b, "• Established: %d\n", p.YearEstablished)
	}
	if addr := p.FullAddress(); addr != "" {
		fmt.Fprintf(&b, "• Location: %s\n", addr)
	}
	if len(p.FocusAreas) > 0 {
		fmt.Fprintf(&b, "• Focus areas: %s\n", strings.Join(p.FocusAreas, ", "))
	}
	if p.ServiceArea != "" {
		fmt.Fprintf(&b, "• Service area: %s\n", p.ServiceArea)
	}
	if p.StaffCount > 0 {
		fmt.Fprintf(&b, "• Staff: %d\n", p.StaffCount)
	}
	return Reply{Text: strings.TrimSpace(b.String())}
}

func addressReply(p *models.UserProfile) Reply {
	if p == nil {
		return Reply{Text: noProfileText}
	}
	addr := p.FullAddress()
	if addr == "" {
		return Reply{Text: "📍 I don't have an address on file. Add it to your profile."}
	}
	return Reply{Text: fmt.Sprintf("📍 **Address**\n%s", addr)}
}

func certificationsReply(p *models.UserProfile) Reply {
	if p == nil {
		return Reply{Text: noProfileText}
	}
	certs := p.Certifications()
	if len(certs) == 0 {
		return Reply{Text: fmt.Sprintf("🏅 %s has no certifications on file (Minority-Owned, Woman-Owned, Veteran-Owned, Small Business, 8(a), HUBZone).", orgName(p))}
	}
	return Reply{Text: fmt.Sprintf("🏅 **Certifications**\n• %s", strings.Join(certs, "\n• "))}
}

func financialsReply(p *models.UserProfile) Reply {
	if p == nil {
		return Reply{Text: noProfileText}
	}
	if p.AnnualBudget == 0 && p.AnnualRevenue == 0 && p.StaffCount == 0 {
		return Reply{Text: "💰 I don't have financial details on file. Add your annual budget, revenue and staff count to your profile."}
	}
	var b strings.Builder
	b.WriteString("💰 **Financials**\n")
	if p.AnnualBudget > 0 {
		fmt.Fprintf(&b, "• Annual budget: %s\n", formatMoney(p.AnnualBudget))
	}
	if p.AnnualRevenue > 0 {
		fmt.Fprintf(&b, "• Annual revenue: %s\n", formatMoney(p.AnnualRevenue))
	}
	if p.StaffCount > 0 {
		fmt.Fprintf(&b, "• Staff: %d\n", p.StaffCount)
	}
	return Reply{Text: strings.TrimSpace(b.String())}
}

func projectsReply(projects []models.Project) Reply {
	if len(projects) == 0 {
		return Reply{Text: "📁 You don't have any projects yet. Create one to start matching opportunities."}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📁 **Your projects (%d)**\n", len(projects))
	for _, p := range projects {
		fmt.Fprintf(&b, "• **%s** (%s)", p.Name, p.Status)
		if amt := p.RequestedAmount(); amt > 0 {
			fmt.Fprintf(&b, ": seeking %s", formatMoney(amt))
		}
		b.WriteString("\n")
	}
	return Reply{Text: strings.TrimSpace(b.String())}
}

func applicationsReply(apps []models.Application) Reply {
	if len(apps) == 0 {
		return Reply{Text: "📨 You haven't started any applications yet."}
	}
	counts := map[string]int{}
	for _, a := range apps {
		counts[a.Status]++
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	var b strings.Builder
	fmt.Fprintf(&b, "📨 **Applications (%d)**\n", len(apps))
	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, fmt.Sprintf("%d %s", counts[s], strings.ReplaceAll(s, "_", " ")))
	}
	b.WriteString(strings.Join(parts, ", ") + "\n")
	for _, a := range apps {
		fmt.Fprintf(&b, "• **%s**: %s", a.Title, strings.ReplaceAll(a.Status, "_", " "))
		if a.AmountRequested > 0 {
			fmt.Fprintf(&b, ", requested %s", formatMoney(a.AmountRequested))
		}
		if a.AmountAwarded > 0 {
			fmt.Fprintf(&b, ", awarded %s", formatMoney(a.AmountAwarded))
		}
		b.WriteString("\n")
	}
	return Reply{Text: strings.TrimSpace(b.String())}
}

type deadlineItem struct {
	title string
	kind  string
	at    time.Time
}

// upcomingDeadlines merges future opportunity and unsubmitted application deadlines, soonest first.
func upcomingDeadlines(oc *models.OrgContext, now time.Time) []deadlineItem {
	var items []deadlineItem
	for _, o := range oc.Opportunities {
		if o.Deadline != nil && !o.Deadline.Before(now) && !strings.EqualFold(o.Status, "closed") {
			items = append(items, deadlineItem{o.Title, "opportunity", *o.Deadline})
		}
	}
	for _, a := range oc.Applications {
		if a.Deadline != nil && !a.Deadline.Before(now) && a.SubmittedAt == nil {
			items = append(items, deadlineItem{a.Title, "application", *a.Deadline})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].at.Before(items[j].at) })
	return items
}

func deadlinesReply(oc *models.OrgContext, now time.Time) Reply {
	items := upcomingDeadlines(oc, now)
	if len(items) == 0 {
		return Reply{Text: "📅 You have no upcoming deadlines on file."}
	}
	if len(items) > 10 {
		items = items[:10]
	}
	var b strings.Builder
	b.WriteString("📅 **Upcoming deadlines**\n")
	for _, it := range items {
		d := daysUntil(it.at, now)
		flag := ""
		if d <= 7 {
			flag = " ⚠️"
		}
		fmt.Fprintf(&b, "• %s (%s): %s, %d days left%s\n", it.title, it.kind, it.at.Format("Jan 2, 2006"), d, flag)
	}
	return Reply{Text: strings.TrimSpace(b.String())}
}

func opportunitiesReply(opps []models.Opportunity, now time.Time) Reply {
	open := make([]models.Opportunity, 0, len(opps))
	for _, o := range opps {
		if strings.EqualFold(o.Status, "closed") {
			continue
		}
		if o.Deadline != nil && o.Deadline.Before(now) && !o.IsRolling {
			continue
		}
		open = append(open, o)
	}
	if len(open) == 0 {
		return Reply{Text: "🔎 You have no open opportunities saved. Try the opportunity matcher to find some."}
	}
	score := func(o models.Opportunity) int {
		if o.FitScore == nil {
			return -1
		}
		return *o.FitScore
	}
	sort.SliceStable(open, func(i, j int) bool { return score(open[i]) > score(open[j]) })
	if len(open) > 5 {
		open = open[:5]
	}

	var b strings.Builder
	b.WriteString("🔎 **Top open opportunities**\n")
	for _, o := range open {
		fmt.Fprintf(&b, "• **%s**", o.Title)
		if o.Sponsor != "" {
			fmt.Fprintf(&b, " from %s", o.Sponsor)
		}
		if o.AmountMax > 0 {
			fmt.Fprintf(&b, ", up to %s", formatMoney(o.AmountMax))
		}
		if o.IsRolling {
			b.WriteString(", rolling")
		} else if o.Deadline != nil {
			fmt.Fprintf(&b, ", due %s", formatDate(o.Deadline))
		}
		if o.FitScore != nil {
			fmt.Fprintf(&b, " (fit %d/100)", *o.FitScore)
		}
		b.WriteString("\n")
	}
	return Reply{Text: strings.TrimSpace(b.String())}
}

func fundingReply(f models.FundingTotals) Reply {
	return Reply{Text: fmt.Sprintf(`💵 **Funding summary**
• Requested: %s
• Awarded: %s
• Campaigns raised: %s of %s goal
• Open opportunity potential: %s
• Total secured: **%s**`,
		formatMoney(f.Requested), formatMoney(f.Awarded), formatMoney(f.CampaignRaised),
		formatMoney(f.CampaignGoal), formatMoney(f.OpportunityPotential), formatMoney(f.TotalSecured))}
}

func campaignsReply(campaigns []models.Campaign) Reply {
	if len(campaigns) == 0 {
		return Reply{Text: "📣 You don't have any crowdfunding campaigns yet."}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📣 **Campaigns (%d)**\n", len(campaigns))
	for _, c := range campaigns {
		pct := 0
		if c.GoalAmount > 0 {
			pct = int(c.RaisedAmount / c.GoalAmount * 100)
		}
		fmt.Fprintf(&b, "• **%s** (%s): %s of %s (%d%%), %d donors\n",
			c.Title, c.Status, formatMoney(c.RaisedAmount), formatMoney(c.GoalAmount), pct, c.DonorCount)
	}
	return Reply{Text: strings.TrimSpace(b.String())}
}
