package ai

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestSafeParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain object", `{"a":1}`, false},
		{"fenced json", "```json\n{\"a\":1}\n```", false},
		{"fenced without tag", "```\n{\"a\":1}\n```", false},
		{"prose around object", "Here you go: {\"a\":1} hope it helps", false},
		{"not json", "not json", true},
		{"empty", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out map[string]interface{}
			err := SafeParseJSON(tt.content, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", out)
				}
				if !errors.Is(err, ErrInvalidJSON) {
					t.Fatalf("expected ErrInvalidJSON, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out["a"] != float64(1) {
				t.Fatalf("expected a=1, got %v", out)
			}
		})
	}
}

func TestExtractFirstJSONObject_IgnoresBracesInStrings(t *testing.T) {
	got, ok := extractFirstJSONObject(`noise {"text":"a } brace","n":{"x":1}} tail {"b":2}`)
	if !ok || got != `{"text":"a } brace","n":{"x":1}}` {
		t.Fatalf("unexpected extraction %q", got)
	}
}

func TestValidateChoice(t *testing.T) {
	allowed := []string{"ein_lookup", "general"}
	if got, ok := ValidateChoice("  EIN_Lookup ", allowed); !ok || got != "ein_lookup" {
		t.Fatalf("expected canonical label, got %q %v", got, ok)
	}
	if _, ok := ValidateChoice("weather", allowed); ok {
		t.Fatal("unknown label should be rejected")
	}
}

type stubCompleter struct {
	content string
	err     error
	task    string
}

func (s *stubCompleter) GenerateCompletion(ctx context.Context, task string, messages []Message, opts Options) (*Completion, error) {
	s.task = task
	if s.err != nil {
		return nil, s.err
	}
	return &Completion{Content: s.content, Provider: VendorOpenAI, Model: "test"}, nil
}

func TestCategorize_ReturnsParsedJSON(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    interface{}
	}{
		{
			name:    "unknown tags kept",
			content: `{"categories":["Food Banks","health"],"eligibility":["501(c)(3)"]}`,
			want: map[string]interface{}{
				"categories":  []interface{}{"Food Banks", "health"},
				"eligibility": []interface{}{"501(c)(3)"},
			},
		},
		{
			name:    "top-level array",
			content: "```json\n[{\"category\":\"Health\"}]\n```",
			want:    []interface{}{map[string]interface{}{"category": "Health"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &stubCompleter{content: tc.content}
			out, err := Categorize(context.Background(), c, "project", "Mobile clinic for rural families")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.task != "categorization" {
				t.Fatalf("expected categorization task, got %s", c.task)
			}
			if !reflect.DeepEqual(out, tc.want) {
				t.Fatalf("got %#v, want %#v", out, tc.want)
			}
		})
	}
}

func TestNormalizeStatus(t *testing.T) {
	for raw, want := range map[string]string{"Expired": "closed", "upcoming": "forthcoming", "active": "open", "": "open"} {
		if got := NormalizeStatus(raw); got != want {
			t.Fatalf("NormalizeStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}
