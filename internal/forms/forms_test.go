package forms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/ai"
	"github.com/wali-os/wali/internal/models"
)

type stubCompleter struct {
	content string
	err     error
	calls   []string
}

func (s *stubCompleter) GenerateCompletion(ctx context.Context, task string, messages []ai.Message, opts ai.Options) (*ai.Completion, error) {
	s.calls = append(s.calls, task)
	if s.err != nil {
		return nil, s.err
	}
	return &ai.Completion{Content: s.content, Provider: ai.VendorAnthropic, Model: "stub"}, nil
}

func TestNormalizeFieldIDs(t *testing.T) {
	fields := NormalizeFieldIDs([]Field{
		{ID: "Organization Name"},
		{ID: "organization_name"},
		{ID: "", Label: "Organization name?"},
		{ID: "EIN"},
		{ID: "", Label: ""},
	})
	want := []string{"organization_name", "organization_name_2", "organization_name_3", "ein", "field"}
	for i, f := range fields {
		if f.ID != want[i] {
			t.Fatalf("field %d id = %q, want %q", i, f.ID, want[i])
		}
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		schema FormSchema
		want   float64
	}{
		{"no fields", FormSchema{Title: "x"}, 0.1},
		{"small", FormSchema{Fields: make([]Field, 5), Sections: make([]Section, 2)}, 0.5},
		{"titled", FormSchema{Title: "Grant", Fields: make([]Field, 10), Sections: make([]Section, 1)}, 0.65},
		{"capped", FormSchema{Title: "Grant", Fields: make([]Field, 40), Sections: make([]Section, 8)}, 0.95},
	}
	for _, tt := range tests {
		if got := Confidence(tt.schema); got != tt.want {
			t.Fatalf("%s: Confidence = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)
	for _, in := range []string{"2026-03-15", "3/15/2026", "03/15/2026", "March 15, 2026", "march 15th 2026", "15 Mar 2026", "Mar. 15, 2026"} {
		got, err := ParseDate(in)
		if err != nil {
			t.Fatalf("ParseDate(%q) error: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseDate("next Tuesday"); err == nil {
		t.Fatalf("expected error for relative date")
	}
}

func TestDeadlineCandidates(t *testing.T) {
	text := `Letters of intent are due February 2, 2026. Full applications close 2026-04-30.
	Awards will be announced 6/15/2026. Reminder: LOI deadline February 2, 2026.`

	got := DeadlineCandidates(text)
	if len(got) != 3 {
		t.Fatalf("expected 3 unique dates, got %d: %+v", len(got), got)
	}
	if got[0].Date.Month() != time.February || got[2].Date.Month() != time.June {
		t.Fatalf("expected soonest first, got %+v", got)
	}
	if got[0].Label == "date" {
		t.Fatalf("expected a deadline label from the snippet, got %q", got[0].Label)
	}
}

func TestExtractHTMLFields(t *testing.T) {
	html := `<form>
	<fieldset><legend>Applicant</legend>
	  <label for="org">Organization Name</label><input id="org" name="org_name" required>
	  <label>EIN <input name="ein" type="text"></label>
	</fieldset>
	<input type="hidden" name="csrf" value="x">
	<select name="org_type" aria-label="Organization type"><option>Nonprofit</option><option>Tribal</option></select>
	<textarea name="narrative" placeholder="Project narrative"></textarea>
	<input type="radio" name="prior" value="yes" aria-label="Prior award"><input type="radio" name="prior" value="no">
	<input type="submit" value="Send">
	</form>`

	fields, err := ExtractHTMLFields(html)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 5 {
		t.Fatalf("expected 5 fields, got %d: %+v", len(fields), fields)
	}
	if fields[0].ID != "org_name" || fields[0].Label != "Organization Name" || !fields[0].Required || fields[0].Section != "Applicant" {
		t.Fatalf("unexpected first field %+v", fields[0])
	}
	if fields[1].Label != "EIN" {
		t.Fatalf("expected wrapping label text, got %q", fields[1].Label)
	}
	if fields[2].Type != "select" || len(fields[2].Options) != 2 {
		t.Fatalf("unexpected select %+v", fields[2])
	}
	if fields[3].Type != "textarea" || fields[3].Label != "Project narrative" {
		t.Fatalf("unexpected textarea %+v", fields[3])
	}
}

func TestPlainText(t *testing.T) {
	got := PlainText("<h1>Arts &amp; Culture</h1>\n<script>alert(1)</script><p>Deadline:   <b>May 1</b></p>")
	if got != "Arts & Culture Deadline: May 1" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractPDFText_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"plain text", []byte("not a pdf")},
		{"empty", nil},
		{"truncated header", []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractPDFText(tt.content)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func testData() UserData {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	return UserData{
		Profile: &models.UserProfile{
			OrganizationName: "Harbor Food Bank",
			EIN:              "12-3456789",
			UEI:              "ZQGGHJH74DW7",
			Email:            "grants@harbor.org",
			Phone:            "207-555-0100",
			ContactName:      "Dana Reyes",
			ContactTitle:     "Executive Director",
			AddressLine1:     "1 Main St",
			City:             "Portland",
			State:            "ME",
			ZipCode:          "04101",
			WomanOwned:       true,
			AnnualBudget:     1250000,
			StaffCount:       14,
			MissionStatement: "End hunger on the coast.",
		},
		Project: &models.Project{
			Name:             "Mobile Pantry",
			Description:      "A refrigerated truck serving rural towns.",
			Budget:           90000,
			FundingNeeded:    60000,
			TargetPopulation: "Rural seniors",
			StartDate:        &start,
		},
	}
}

func TestComprehensiveFieldMatch(t *testing.T) {
	d := testData()
	tests := []struct {
		label string
		want  string
		rule  string
	}{
		{"Employer Identification Number (EIN)", "12-3456789", "ein"},
		{"Federal Tax ID", "12-3456789", "ein"},
		{"Unique Entity ID", "ZQGGHJH74DW7", "uei"},
		{"Contact Email Address", "grants@harbor.org", "contact_email"},
		{"Telephone", "207-555-0100", "phone"},
		{"Contact Person Title", "Executive Director", "contact_title"},
		{"Authorized Representative", "Dana Reyes", "contact_name"},
		{"Mailing Address", "1 Main St, Portland, ME 04101", "full_address"},
		{"Street address", "1 Main St", "street"},
		{"ZIP Code", "04101", "zip"},
		{"Woman-owned business?", "Yes", "woman_owned"},
		{"Veteran owned", "No", "veteran_owned"},
		{"Annual operating budget", "1250000", "annual_budget"},
		{"Number of full-time staff", "14", "staff_count"},
		{"Mission statement", "End hunger on the coast.", "mission"},
		{"Project Title", "Mobile Pantry", "project_title"},
		{"Amount requested", "60000", "amount_requested"},
		{"Total project budget", "90000", "project_budget"},
		{"Target population served", "Rural seniors", "target_population"},
		{"Project start date", "2026-07-01", "project_start"},
		{"Legal name of organization", "Harbor Food Bank", "organization_name"},
	}
	for _, tt := range tests {
		got, rule, ok := ComprehensiveFieldMatch(tt.label, d)
		if !ok || got != tt.want || rule != tt.rule {
			t.Fatalf("ComprehensiveFieldMatch(%q) = %q/%q/%v, want %q/%q", tt.label, got, rule, ok, tt.want, tt.rule)
		}
	}

	if _, _, ok := ComprehensiveFieldMatch("Favorite color", d); ok {
		t.Fatalf("unrelated label should not match")
	}
	if _, rule, ok := ComprehensiveFieldMatch("EIN", UserData{}); ok || rule != "ein" {
		t.Fatalf("missing profile should match the rule but yield no value")
	}
}

func TestResolvePath(t *testing.T) {
	tree := testData().Map()
	if v, ok := ResolvePath(tree, "profile.ein"); !ok || v != "12-3456789" {
		t.Fatalf("unexpected profile.ein %q %v", v, ok)
	}
	if v, ok := ResolvePath(tree, "project.funding_needed"); !ok || v != "60000" {
		t.Fatalf("unexpected funding %q %v", v, ok)
	}
	if v, ok := ResolvePath(tree, "profile.woman_owned"); !ok || v != "Yes" {
		t.Fatalf("unexpected bool %q %v", v, ok)
	}
	for _, p := range []string{"", "profile.nope", "profile.ein.deeper", "project.duns"} {
		if _, ok := ResolvePath(tree, p); ok {
			t.Fatalf("path %q should not resolve", p)
		}
	}
}

func TestAutoPopulate_ResolutionChain(t *testing.T) {
	stub := &stubCompleter{content: "```json\n" + `{"mappings": [
		{"fieldId": "org", "dataPath": "profile.organization_name", "confidence": 0.9},
		{"fieldId": "tax", "dataPath": "profile.missing", "fallbackPaths": ["profile.nope", "profile.ein"]},
		{"fieldId": "country", "dataPath": "", "fallbackValue": "United States"}
	]}` + "\n```"}
	a := &Analyzer{AI: stub}
	fields := []Field{
		{ID: "org", Label: "Applicant"},
		{ID: "tax", Label: "Tax number"},
		{ID: "country", Label: "Country"},
		{ID: "phone", Label: "Phone number"},
		{ID: "color", Label: "Favorite color"},
	}

	res, err := a.AutoPopulate(context.Background(), fields, testData(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []struct{ value, source string }{
		{"Harbor Food Bank", SourceAIPath},
		{"12-3456789", SourceFallbackPath},
		{"United States", SourceFallbackValue},
		{"207-555-0100", SourcePattern},
		{"", SourceNone},
	}
	for i, w := range want {
		got := res.Fields[i]
		if got.Value != w.value || got.Source != w.source {
			t.Fatalf("field %s = %q/%s, want %q/%s", got.FieldID, got.Value, got.Source, w.value, w.source)
		}
	}
	if res.Filled != 4 || res.Total != 5 || !res.AIMappings || stub.calls[0] != "field-mapping" {
		t.Fatalf("unexpected totals %+v calls=%v", res, stub.calls)
	}
}

func TestAutoPopulate_ModelFailureFallsBackToPatterns(t *testing.T) {
	a := &Analyzer{AI: &stubCompleter{err: errors.New("timeout")}}
	res, err := a.AutoPopulate(context.Background(), []Field{{ID: "ein", Label: "EIN"}}, testData(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AIMappings || res.Fields[0].Source != SourcePattern || res.Values["ein"] != "12-3456789" {
		t.Fatalf("unexpected result %+v", res)
	}

	if _, err := a.AutoPopulate(context.Background(), nil, testData(), false); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalyzeDocument(t *testing.T) {
	stub := &stubCompleter{content: `Here is the form:
{"title": "Community Grant", "sections": [{"id": "org", "title": "Organization"}],
 "fields": [{"id": "Org Name", "label": "Organization name", "type": "text", "required": true},
            {"id": "org_name", "label": "Legal name", "type": "text"}]}`}
	a := &Analyzer{AI: stub}

	res, err := a.AnalyzeDocument(context.Background(), AnalyzeInput{Text: "<p>Community Grant. Applications due May 1, 2026.</p>"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Schema.Fields[0].ID != "org_name" || res.Schema.Fields[1].ID != "org_name_2" {
		t.Fatalf("ids not normalized: %+v", res.Schema.Fields)
	}
	if res.Confidence != 0.49 {
		t.Fatalf("unexpected confidence %v", res.Confidence)
	}
	if len(res.Deadlines) != 1 || res.Deadlines[0].Date.Day() != 1 {
		t.Fatalf("unexpected deadlines %+v", res.Deadlines)
	}
	if stub.calls[0] != "document-analysis" || res.Provider != "anthropic" {
		t.Fatalf("unexpected call %v %s", stub.calls, res.Provider)
	}

	if _, err := a.AnalyzeDocument(context.Background(), AnalyzeInput{Text: "  "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	a.AI = &stubCompleter{content: "sorry, I cannot help"}
	if _, err := a.AnalyzeDocument(context.Background(), AnalyzeInput{Text: "form"}); !errors.Is(err, ai.ErrInvalidJSON) {
		t.Fatalf("expected invalid json error, got %v", err)
	}
}

type memDefinitions struct {
	rows    map[string]models.FieldDefinition
	upserts int
}

func (m *memDefinitions) GetFieldDefinitions(ctx context.Context, userID uuid.UUID, names []string) (map[string]models.FieldDefinition, error) {
	out := map[string]models.FieldDefinition{}
	for _, n := range names {
		if r, ok := m.rows[n]; ok && r.UserID == userID {
			out[n] = r
		}
	}
	return out, nil
}

func (m *memDefinitions) UpsertFieldDefinition(ctx context.Context, d *models.FieldDefinition) error {
	m.upserts++
	d.UpdatedAt = time.Now()
	m.rows[d.FieldName] = *d
	return nil
}

func TestDefinitions_CacheTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	userID := uuid.New()
	store := &memDefinitions{rows: map[string]models.FieldDefinition{
		"EIN":      {UserID: userID, FieldName: "EIN", Definition: map[string]interface{}{"definition": "cached"}, UpdatedAt: now.Add(-6 * 24 * time.Hour)},
		"UEI":      {UserID: userID, FieldName: "UEI", Definition: map[string]interface{}{"definition": "old"}, UpdatedAt: now.Add(-8 * 24 * time.Hour)},
		"Abstract": {UserID: uuid.New(), FieldName: "Abstract", Definition: map[string]interface{}{"definition": "someone else"}, UpdatedAt: now},
	}}
	stub := &stubCompleter{content: `{"UEI": {"definition": "fresh uei"}, "abstract": {"definition": "fresh abstract"}}`}
	d := &Definitions{Store: store, AI: stub, Now: func() time.Time { return now }}

	res, err := d.Get(context.Background(), userID, []string{"EIN", "UEI", "Abstract", "EIN"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Cached != 1 || res.Generated != 2 || store.upserts != 2 {
		t.Fatalf("unexpected counts %+v upserts=%d", res, store.upserts)
	}
	if res.Definitions["EIN"]["definition"] != "cached" || res.Definitions["UEI"]["definition"] != "fresh uei" {
		t.Fatalf("unexpected definitions %+v", res.Definitions)
	}

	stub.calls = nil
	res, err = d.Get(context.Background(), userID, []string{"EIN"}, true)
	if err != nil || len(stub.calls) != 1 || res.Cached != 0 {
		t.Fatalf("force must bypass the cache: %+v %v %v", res, stub.calls, err)
	}

	if _, err := d.Get(context.Background(), userID, []string{" "}, false); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
