package assistant

import (
	"sort"
	"strings"
)

// GlossaryEntry is a plain-language definition of a grants term.
type GlossaryEntry struct {
	Term       string
	Definition string
	Aliases    []string
}

var glossary = []GlossaryEntry{
	{"EIN", "Employer Identification Number. A nine-digit number the IRS assigns to identify an organization for tax purposes (format XX-XXXXXXX). Nearly every grant application asks for it.",
		[]string{"employer identification number", "tax id", "federal tax id", "tin"}},
	{"DUNS", "Data Universal Numbering System number. A nine-digit identifier from Dun & Bradstreet that federal awards used before April 2022, when it was replaced by the UEI.",
		[]string{"duns number", "d-u-n-s"}},
	{"UEI", "Unique Entity Identifier. The 12-character ID issued through SAM.gov that identifies your organization on federal awards.",
		[]string{"unique entity id", "unique entity identifier"}},
	{"CAGE code", "Commercial and Government Entity code. A five-character ID assigned during SAM.gov registration, used mostly for federal contracts.",
		[]string{"cage"}},
	{"SAM.gov", "System for Award Management. The federal registry every organization must be active in, renewed yearly, before receiving federal grants.",
		[]string{"sam", "system for award management", "sam registration"}},
	{"8(a)", "The SBA 8(a) Business Development Program for small businesses owned by socially and economically disadvantaged individuals.",
		[]string{"8a", "8(a) program", "8(a) certification"}},
	{"HUBZone", "Historically Underutilized Business Zone. An SBA certification giving small businesses in designated areas preference in federal contracting.",
		[]string{"hub zone", "hubzone certification"}},
	{"501(c)(3)", "The IRS designation for tax-exempt charitable organizations. Most private foundations only fund 501(c)(3) organizations.",
		[]string{"501c3", "501 c 3", "tax-exempt status"}},
	{"Indirect costs", "Overhead expenses not tied to one project, such as rent, utilities and administration. Funders often cap them as a percentage of direct costs.",
		[]string{"indirect cost", "overhead", "indirect cost rate", "f&a"}},
	{"Matching funds", "Money or in-kind resources the applicant must contribute alongside the grant, often stated as a ratio like 1:1.",
		[]string{"match", "cost share", "cost sharing", "matching"}},
	{"In-kind", "Non-cash contributions such as donated goods, space or volunteer time, valued in dollars in a budget.",
		[]string{"in-kind contribution", "in kind"}},
	{"LOI", "Letter of Inquiry or Letter of Intent. A short pitch some funders require before inviting a full proposal.",
		[]string{"letter of intent", "letter of inquiry"}},
	{"RFP", "Request for Proposals. A funder's published call describing what it will fund and how to apply.",
		[]string{"request for proposals", "request for proposal"}},
	{"NOFO", "Notice of Funding Opportunity. The federal announcement that defines eligibility, deadlines and evaluation criteria for a grant program.",
		[]string{"notice of funding opportunity", "foa", "funding opportunity announcement"}},
	{"Fiscal sponsor", "An established nonprofit that accepts and manages grant funds on behalf of a project that lacks its own tax-exempt status.",
		[]string{"fiscal sponsorship"}},
	{"Logic model", "A one-page diagram linking a program's inputs and activities to its outputs and outcomes. Many funders require one.",
		[]string{"theory of change"}},
	{"Capacity building", "Funding that strengthens an organization itself, such as staff, systems or training, rather than a specific program.",
		nil},
	{"Fit score", "WALI-OS's 0-100 estimate of how well an opportunity matches your project and organization, based on keywords, funding size, eligibility, deadline and geography.",
		[]string{"match score"}},
	{"Rolling deadline", "The funder accepts applications at any time until funds run out instead of on a fixed date.",
		[]string{"rolling", "rolling basis"}},
	{"Grant", "Money given by a government, foundation or corporation for a specific purpose that does not have to be repaid.",
		[]string{"grants"}},
}

var glossaryIndex = buildGlossaryIndex()

func glossaryKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "?")
	return strings.Join(strings.Fields(s), " ")
}

func buildGlossaryIndex() map[string]GlossaryEntry {
	idx := make(map[string]GlossaryEntry)
	for _, e := range glossary {
		idx[glossaryKey(e.Term)] = e
		for _, a := range e.Aliases {
			idx[glossaryKey(a)] = e
		}
	}
	return idx
}

// LookupTerm finds a glossary entry by term or alias.
func LookupTerm(term string) (GlossaryEntry, bool) {
	e, ok := glossaryIndex[glossaryKey(term)]
	return e, ok
}

// GlossaryTerms returns the canonical terms in alphabetical order.
func GlossaryTerms() []string {
	terms := make([]string, 0, len(glossary))
	for _, e := range glossary {
		terms = append(terms, e.Term)
	}
	sort.Strings(terms)
	return terms
}
