package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/wali-os/wali/internal/ai"
	"github.com/wali-os/wali/internal/models"
)

// ErrValidation marks a request that is missing required input.
var ErrValidation = errors.New("validation failed")

// Field is one fillable input of a grant form.
type Field struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Section     string   `json:"section,omitempty"`
	Options     []string `json:"options,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	HelpText    string   `json:"helpText,omitempty"`
	MaxLength   int      `json:"maxLength,omitempty"`
}

type Section struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// FormSchema is the structured form the model extracts from a document.
type FormSchema struct {
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Funder       string    `json:"funder,omitempty"`
	Sections     []Section `json:"sections"`
	Fields       []Field   `json:"fields"`
	Requirements []string  `json:"requirements,omitempty"`
}

type AnalyzeInput struct {
	Text         string `json:"text"`
	HTML         string `json:"html"`
	DocumentType string `json:"documentType"`
}

type AnalyzeResult struct {
	Schema     FormSchema          `json:"schema"`
	Confidence float64             `json:"confidence"`
	Deadlines  []DeadlineCandidate `json:"deadlines"`
	Provider   string              `json:"provider"`
	Model      string              `json:"model"`
}

// Analyzer turns grant documents into form schemas and generates forms for opportunities.
type Analyzer struct {
	AI ai.Completer
}

const maxDocumentChars = 24000

const analyzePrompt = `Analyze this grant application document and extract its form structure.

DOCUMENT TYPE: %s

Return ONLY a JSON object with this shape:
{
  "title": "form title",
  "description": "one sentence purpose",
  "funder": "organization offering the grant, or empty",
  "sections": [{"id": "section_id", "title": "Section title"}],
  "fields": [{
    "id": "snake_case_id",
    "label": "label exactly as written",
    "type": "text | textarea | number | currency | date | email | phone | select | checkbox | radio | file",
    "required": true,
    "section": "section_id",
    "options": ["for select or radio only"],
    "helpText": "instructions printed near the field",
    "maxLength": 0
  }],
  "requirements": ["attachments or eligibility conditions the applicant must meet"]
}

Rules:
- Include every question the applicant must answer, in document order.
- Do NOT invent fields that are not in the document.
%s
DOCUMENT:
%s`

// AnalyzeDocument extracts a form schema from document text (and optional HTML).
func (a *Analyzer) AnalyzeDocument(ctx context.Context, in AnalyzeInput) (*AnalyzeResult, error) {
	text := PlainText(in.Text)
	var hints []Field
	if strings.TrimSpace(in.HTML) != "" {
		var err error
		if hints, err = ExtractHTMLFields(in.HTML); err != nil {
			log.Printf("[forms] html field extraction failed: %v", err)
		}
		if text == "" {
			text = PlainText(in.HTML)
		}
	}
	if text == "" {
		return nil, fmt.Errorf("%w: text or html is required", ErrValidation)
	}

	docType := in.DocumentType
	if docType == "" {
		docType = "grant application"
	}
	hintBlock := ""
	if len(hints) > 0 {
		raw, _ := json.Marshal(hints)
		hintBlock = "- These inputs were found in the HTML form; use their ids where they match:\n" + string(raw) + "\n"
	}

	comp, err := a.AI.GenerateCompletion(ctx, "document-analysis",
		[]ai.Message{
			ai.System("You are an expert at reading grant applications and turning them into structured forms."),
			ai.User(fmt.Sprintf(analyzePrompt, docType, hintBlock, TruncateText(text, maxDocumentChars))),
		},
		ai.Options{MaxTokens: 4000, Temperature: 0.1, ResponseFormat: ai.ResponseFormatJSON})
	if err != nil {
		return nil, fmt.Errorf("document analysis: %w", err)
	}

	var schema FormSchema
	if err := ai.SafeParseJSON(comp.Content, &schema); err != nil {
		return nil, fmt.Errorf("document analysis: %w", err)
	}
	if len(schema.Fields) == 0 && len(hints) > 0 {
		schema.Fields = hints
	}
	schema.Fields = NormalizeFieldIDs(schema.Fields)

	return &AnalyzeResult{
		Schema:     schema,
		Confidence: Confidence(schema),
		Deadlines:  DeadlineCandidates(text),
		Provider:   string(comp.Provider),
		Model:      comp.Model,
	}, nil
}

var nonIDChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases s and joins its alphanumeric runs with underscores.
func Slugify(s string) string {
	return strings.Trim(nonIDChars.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

// NormalizeFieldIDs slugifies every id (deriving one from the label when empty) and
// suffixes repeats with _2, _3 in order of appearance.
func NormalizeFieldIDs(fields []Field) []Field {
	counts := map[string]int{}
	used := map[string]bool{}
	for i := range fields {
		id := Slugify(fields[i].ID)
		if id == "" {
			id = Slugify(fields[i].Label)
		}
		if id == "" {
			id = "field"
		}

		counts[id]++
		candidate := id
		if counts[id] > 1 {
			candidate = id + "_" + strconv.Itoa(counts[id])
		}
		for used[candidate] {
			counts[id]++
			candidate = id + "_" + strconv.Itoa(counts[id])
		}
		used[candidate] = true
		fields[i].ID = candidate
	}
	return fields
}

// Confidence is a heuristic for how complete an extracted schema looks.
func Confidence(schema FormSchema) float64 {
	if len(schema.Fields) == 0 {
		return 0.1
	}
	c := 0.3
	c += math.Min(0.4, float64(len(schema.Fields))*0.02)
	c += math.Min(0.2, float64(len(schema.Sections))*0.05)
	if strings.TrimSpace(schema.Title) != "" {
		c += 0.1
	}
	c = math.Min(0.95, c)
	return math.Round(c*100) / 100
}

const generatePrompt = `Design a grant application form for this funding opportunity, pre-shaped for the applicant's project.

OPPORTUNITY:
%s

PROJECT:
%s

ORGANIZATION:
%s

Return ONLY a JSON object:
{
  "title": "form title",
  "description": "one sentence purpose",
  "funder": "sponsor name",
  "sections": [{"id": "section_id", "title": "Section title"}],
  "fields": [{"id": "snake_case_id", "label": "question", "type": "text | textarea | number | currency | date | select", "required": true, "section": "section_id", "helpText": "what a strong answer covers", "maxLength": 0}],
  "requirements": ["attachments the funder will expect"]
}

Include sections for organization information, project narrative, budget and evaluation.`

// GenerateForm drafts an application form for an opportunity. Project and profile may be nil.
func (a *Analyzer) GenerateForm(ctx context.Context, opp *models.Opportunity, project *models.Project, profile *models.UserProfile) (*AnalyzeResult, error) {
	if opp == nil {
		return nil, fmt.Errorf("%w: opportunity is required", ErrValidation)
	}
	oppJSON, _ := json.MarshalIndent(opp, "", "  ")
	projectJSON, _ := json.MarshalIndent(project, "", "  ")
	profileJSON, _ := json.MarshalIndent(profile, "", "  ")

	comp, err := a.AI.GenerateCompletion(ctx, "form-generation",
		[]ai.Message{
			ai.System("You are a senior grant writer who designs clear application forms."),
			ai.User(fmt.Sprintf(generatePrompt, oppJSON, projectJSON, profileJSON)),
		},
		ai.Options{MaxTokens: 4000, Temperature: 0.3, ResponseFormat: ai.ResponseFormatJSON})
	if err != nil {
		return nil, fmt.Errorf("form generation: %w", err)
	}

	var schema FormSchema
	if err := ai.SafeParseJSON(comp.Content, &schema); err != nil {
		return nil, fmt.Errorf("form generation: %w", err)
	}
	if schema.Funder == "" {
		schema.Funder = opp.Sponsor
	}
	schema.Fields = NormalizeFieldIDs(schema.Fields)

	var deadlines []DeadlineCandidate
	if opp.Deadline != nil {
		deadlines = []DeadlineCandidate{{Date: *opp.Deadline, Label: "deadline", Snippet: opp.Title}}
	}
	return &AnalyzeResult{
		Schema:     schema,
		Confidence: Confidence(schema),
		Deadlines:  deadlines,
		Provider:   string(comp.Provider),
		Model:      comp.Model,
	}, nil
}
