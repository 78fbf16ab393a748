package assistant

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/wali-os/wali/internal/ai"
)

const (
	IntentGreeting           = "greeting"
	IntentEINLookup          = "ein_lookup"
	IntentRegistrationLookup = "registration_lookup"
	IntentTermDefinition     = "term_definition"
	IntentProfileSummary     = "profile_summary"
	IntentAddressLookup      = "address_lookup"
	IntentCertifications     = "certifications"
	IntentFinancials         = "financials"
	IntentProjectList        = "project_list"
	IntentApplicationStatus  = "application_status"
	IntentDeadlines          = "deadlines"
	IntentOpportunityList    = "opportunity_list"
	IntentFundingSummary     = "funding_summary"
	IntentCampaignStatus     = "campaign_status"
	IntentHelp               = "help"
	IntentGeneral            = "general"
)

// Intents lists every label the classifier can return.
var Intents = []string{
	IntentGreeting, IntentEINLookup, IntentRegistrationLookup, IntentTermDefinition,
	IntentProfileSummary, IntentAddressLookup, IntentCertifications, IntentFinancials,
	IntentProjectList, IntentApplicationStatus, IntentDeadlines, IntentOpportunityList,
	IntentFundingSummary, IntentCampaignStatus, IntentHelp, IntentGeneral,
}

type intentRule struct {
	intent   string
	patterns []*regexp.Regexp
}

func rx(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

var possessive = regexp.MustCompile(`\b(my|our|we|us)\b`)

// Possessive lookups. Checked before definitional phrasing so "what is my EIN" is a lookup.
var lookupRules = []intentRule{
	{IntentGreeting, rx(`^\s*(hi|hello|hey|howdy|greetings|good (morning|afternoon|evening))\b[\s!.,a-z]{0,12}$`)},
	{IntentEINLookup, rx(
		`\b(my|our)\s+(organization'?s\s+|org'?s\s+)?(ein|tax[\s-]*id|tin|employer identification number|federal tax (id|number))\b`,
	)},
	{IntentRegistrationLookup, rx(
		`\b(my|our)\s+(organization'?s\s+)?(duns|uei|unique entity id(entifier)?|cage(\s+code)?|sam(\.gov)?(\s+(status|registration|expiration))?)\b`,
		`\bare\s+we\s+(registered|active)\s+(in|on|with)\s+sam\b`,
	)},
	{IntentAddressLookup, rx(
		`\b(my|our)\s+(organization'?s\s+)?(mailing\s+|physical\s+|street\s+)?address\b`,
		`\bwhere\s+(are|is)\s+(we|our\s+(organization|office))\s+(located|based)\b`,
	)},
}

// Definitional phrasing, only when the message is not about the user's own data.
var definitionRules = rx(
	`\bwhat\s+(does|do)\s+(an?\s+|the\s+)?(?P<term>.+?)\s+(mean|stand\s+for)\b`,
	`\b(define|definition\s+of|meaning\s+of|explain\s+the\s+term)\s+(?P<term>.+)`,
)

var whatIsRule = regexp.MustCompile(`\bwhat\s+(is|are)\s+(an?\s+|the\s+)?(?P<term>.+?)\s*$`)

var keywordRules = []intentRule{
	{IntentCertifications, rx(`\bcertifi(ed|cations?)\b`, `\b(8\(a\)|8a|hubzone|minority[\s-]owned|wom[ae]n[\s-]owned|veteran[\s-]owned|small business status)\b`)},
	{IntentFinancials, rx(`\b(financials?|annual (budget|revenue)|revenue|operating budget|staff (count|size)|how many (staff|employees)|employees)\b`)},
	{IntentDeadlines, rx(`\bdeadlines?\b`, `\bdue\s+(soon|dates?|this|next)\b`, `\bclosing soon\b`, `\bwhat'?s\s+due\b`)},
	{IntentCampaignStatus, rx(`\bcampaigns?\b`, `\bcrowd\s*fund`, `\bdonors?\b`, `\bfundrais`)},
	{IntentOpportunityList, rx(`\bopportunit(y|ies)\b`, `\b(find|search|recommend|suggest)\b.*\b(grants?|funding|funders?)\b`, `\bgrants?\s+(available|for us|we could|to apply)\b`, `\bfunders?\b`)},
	{IntentApplicationStatus, rx(`\bapplications?\b`, `\b(applied|submitted|pending|awarded|rejected)\b`)},
	{IntentProjectList, rx(`\bprojects?\b`, `\binitiatives?\b`, `\bprograms?\b`)},
	{IntentFundingSummary, rx(`\bfunding\b`, `\bhow much\b`, `\b(raised|secured|totals?)\b`, `\bmoney\b`)},
	{IntentProfileSummary, rx(
		`\b(my|our)\s+(organization|org|profile|nonprofit|company|mission)\b`,
		`\bwho\s+are\s+we\b`, `\babout\s+us\b`, `\bmission\b`,
	)},
	{IntentHelp, rx(`^\s*help\b`, `\bwhat\s+can\s+you\s+do\b`, `\bhow\s+(do|can)\s+(i|you)\s+use\b`, `\bcommands\b`)},
}

func normalizeMessage(message string) string {
	m := strings.ToLower(strings.TrimSpace(message))
	m = strings.ReplaceAll(m, "’", "'")
	return m
}

// ClassifyIntent maps a chat message to an intent using ordered regex rules.
func ClassifyIntent(message string) string {
	m := normalizeMessage(message)
	if m == "" {
		return IntentGeneral
	}

	for _, rule := range lookupRules {
		for _, p := range rule.patterns {
			if p.MatchString(m) {
				return rule.intent
			}
		}
	}

	if !possessive.MatchString(m) {
		if ExtractTerm(message) != "" {
			return IntentTermDefinition
		}
	}

	for _, rule := range keywordRules {
		for _, p := range rule.patterns {
			if p.MatchString(m) {
				return rule.intent
			}
		}
	}
	return IntentGeneral
}

// ExtractTerm returns the term a definitional question asks about, or "".
// "what is/are X" counts only when X is a glossary term.
func ExtractTerm(message string) string {
	m := strings.TrimRight(normalizeMessage(message), "?!. ")
	for _, p := range definitionRules {
		if sub := p.FindStringSubmatch(m); sub != nil {
			return strings.Trim(sub[p.SubexpIndex("term")], `"' `)
		}
	}
	if sub := whatIsRule.FindStringSubmatch(m); sub != nil {
		term := strings.Trim(sub[whatIsRule.SubexpIndex("term")], `"' `)
		if _, ok := LookupTerm(term); ok {
			return term
		}
	}
	return ""
}

// Classifier adds an LLM pass for messages the rules leave as general.
type Classifier struct {
	AI ai.Completer
}

// Classify returns the intent and whether it came from the rules or the model.
func (c *Classifier) Classify(ctx context.Context, message string) (string, string) {
	intent := ClassifyIntent(message)
	if intent != IntentGeneral || c == nil || c.AI == nil {
		return intent, "rules"
	}

	prompt := fmt.Sprintf(`Classify the user's message for a grant-seeking assistant into exactly one intent.

ALLOWED INTENTS: %s

MESSAGE: %s

Return ONLY JSON: {"intent": "one of the allowed intents"}`, strings.Join(Intents, ", "), message)

	comp, err := c.AI.GenerateCompletion(ctx, "intent-classification",
		[]ai.Message{ai.System("You route messages for a nonprofit grants assistant."), ai.User(prompt)},
		ai.Options{MaxTokens: 50, Temperature: 0.1, ResponseFormat: ai.ResponseFormatJSON})
	if err != nil {
		log.Printf("[assistant] intent classification failed: %v", err)
		return IntentGeneral, "rules"
	}

	var out struct {
		Intent string `json:"intent"`
	}
	if err := ai.SafeParseJSON(comp.Content, &out); err != nil {
		return IntentGeneral, "rules"
	}
	label, ok := ai.ValidateChoice(out.Intent, Intents)
	if !ok {
		return IntentGeneral, "rules"
	}
	return label, "llm"
}
