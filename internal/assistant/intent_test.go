package assistant

import (
	"context"
	"errors"
	"testing"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"What is my EIN?", IntentEINLookup},
		{"What does EIN mean?", IntentTermDefinition},
		{"what's our tax id", IntentEINLookup},
		{"What is a HUBZone?", IntentTermDefinition},
		{"define NOFO", IntentTermDefinition},
		{"Hi there!", IntentGreeting},
		{"What is our UEI?", IntentRegistrationLookup},
		{"Are we registered in SAM?", IntentRegistrationLookup},
		{"What's our mailing address?", IntentAddressLookup},
		{"Are we woman-owned certified?", IntentCertifications},
		{"What is our annual budget?", IntentFinancials},
		{"Show me upcoming deadlines", IntentDeadlines},
		{"How is the spring campaign doing?", IntentCampaignStatus},
		{"Find grants for youth programs", IntentOpportunityList},
		{"What's the status of my applications?", IntentApplicationStatus},
		{"List my projects", IntentProjectList},
		{"How much funding have we secured?", IntentFundingSummary},
		{"Tell me about our organization", IntentProfileSummary},
		{"help", IntentHelp},
		{"Write me a poem about the ocean", IntentGeneral},
		{"", IntentGeneral},
	}

	for _, tt := range tests {
		if got := ClassifyIntent(tt.msg); got != tt.want {
			t.Fatalf("ClassifyIntent(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestExtractTerm(t *testing.T) {
	tests := map[string]string{
		"What does EIN mean?":           "ein",
		"what does the UEI stand for":   "uei",
		"Define matching funds":         "matching funds",
		"What is a fiscal sponsor?":     "fiscal sponsor",
		"What is the weather like?":     "",
		"How do I write a logic model?": "",
	}
	for msg, want := range tests {
		if got := ExtractTerm(msg); got != want {
			t.Fatalf("ExtractTerm(%q) = %q, want %q", msg, got, want)
		}
	}
}

func TestClassifier_ModelFallbackForGeneral(t *testing.T) {
	fc := &fakeCompleter{content: `{"intent":"Opportunity_List"}`}
	c := &Classifier{AI: fc}

	intent, source := c.Classify(context.Background(), "anything good out there for a food pantry?")
	if intent != IntentOpportunityList || source != "llm" {
		t.Fatalf("expected llm opportunity_list, got %s/%s", intent, source)
	}
	if len(fc.tasks) != 1 || fc.tasks[0] != "intent-classification" {
		t.Fatalf("unexpected tasks %v", fc.tasks)
	}

	fc.tasks = nil
	if intent, _ := c.Classify(context.Background(), "What is my EIN?"); intent != IntentEINLookup || len(fc.tasks) != 0 {
		t.Fatalf("rule hits must not call the model: %s %v", intent, fc.tasks)
	}
}

func TestClassifier_RejectsUnknownModelLabel(t *testing.T) {
	c := &Classifier{AI: &fakeCompleter{content: `{"intent":"weather"}`}}
	if intent, source := c.Classify(context.Background(), "anything good out there?"); intent != IntentGeneral || source != "rules" {
		t.Fatalf("expected general/rules, got %s/%s", intent, source)
	}

	c = &Classifier{AI: &fakeCompleter{err: errors.New("down")}}
	if intent, _ := c.Classify(context.Background(), "anything good out there?"); intent != IntentGeneral {
		t.Fatalf("expected general on model failure, got %s", intent)
	}
}
