package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeProvider struct {
	vendor  Vendor
	fail    bool
	calls   int
	models  []string
	content string
}

func (f *fakeProvider) Complete(ctx context.Context, model string, messages []Message, opts Options) (*Completion, error) {
	f.calls++
	f.models = append(f.models, model)
	if f.fail {
		return nil, errors.New("upstream unavailable")
	}
	return &Completion{Content: f.content, Provider: f.vendor, Model: model}, nil
}

func newTestRouter(t *testing.T, providers map[Vendor]Provider) *Router {
	t.Helper()
	r, err := NewRouter(providers, 2)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	r.retryDelay = 0
	return r
}

func TestGetProviderConfig_Table(t *testing.T) {
	r := newTestRouter(t, nil)

	tests := []struct {
		task   string
		vendor Vendor
		model  string
	}{
		{"document-analysis", VendorAnthropic, "claude-3-5-sonnet-latest"},
		{"form-generation", VendorOpenAI, "gpt-4o"},
		{"conversation", VendorOpenAI, "gpt-4o-mini"},
		{"summarization", VendorAnthropic, "claude-3-5-haiku-latest"},
		{"no-such-task", VendorOpenAI, "gpt-4o-mini"},
	}
	for _, tt := range tests {
		cfg := r.GetProviderConfig(tt.task)
		if cfg.Provider != tt.vendor || cfg.Model != tt.model {
			t.Fatalf("%s: got %s/%s, want %s/%s", tt.task, cfg.Provider, cfg.Model, tt.vendor, tt.model)
		}
	}

	if r.GetProviderConfig("no-such-task").Source != "default" {
		t.Fatal("unknown task should report the default source")
	}
}

func TestGetProviderConfig_EveryTaskMatchesTable(t *testing.T) {
	sf, err := loadStrategy()
	if err != nil {
		t.Fatalf("loadStrategy: %v", err)
	}
	r := newTestRouter(t, nil)
	for task, want := range sf.Tasks {
		got := r.GetProviderConfig(task)
		if got.Provider != want.Provider || got.Model != want.Model {
			t.Fatalf("%s: got %s/%s, want %s/%s", task, got.Provider, got.Model, want.Provider, want.Model)
		}
	}
}

func TestNewRouter_EnvOverride(t *testing.T) {
	t.Setenv("AI_PROVIDER_DOCUMENT_ANALYSIS", "openai:gpt-4o")
	t.Setenv("AI_PROVIDER_SCORING", "bogus")
	t.Setenv("AI_PROVIDER_CONVERSATION", "mystery:model-x")

	r := newTestRouter(t, nil)

	if cfg := r.GetProviderConfig("document-analysis"); cfg.Provider != VendorOpenAI || cfg.Model != "gpt-4o" || cfg.Source != "override" {
		t.Fatalf("override not applied: %+v", cfg)
	}
	if cfg := r.GetProviderConfig("scoring"); cfg.Provider != VendorOpenAI || cfg.Model != "gpt-4o-mini" {
		t.Fatalf("malformed override should be ignored: %+v", cfg)
	}
	if cfg := r.GetProviderConfig("conversation"); cfg.Source != "table" {
		t.Fatalf("unknown vendor override should be ignored: %+v", cfg)
	}
}

func TestOverrideEnvVar(t *testing.T) {
	if got := OverrideEnvVar("ai-verification"); got != "AI_PROVIDER_AI_VERIFICATION" {
		t.Fatalf("unexpected env var %q", got)
	}
}

func TestGenerateCompletion_PrimarySucceeds(t *testing.T) {
	openai := &fakeProvider{vendor: VendorOpenAI, content: "ok"}
	anthropic := &fakeProvider{vendor: VendorAnthropic, content: "fallback"}
	r := newTestRouter(t, map[Vendor]Provider{VendorOpenAI: openai, VendorAnthropic: anthropic})

	comp, err := r.GenerateCompletion(context.Background(), "conversation", []Message{User("hi")}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.Content != "ok" || comp.Provider != VendorOpenAI || comp.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected completion %+v", comp)
	}
	if anthropic.calls != 0 {
		t.Fatalf("fallback should not be called, got %d calls", anthropic.calls)
	}
}

func TestGenerateCompletion_RetriesThenFallsBackOnce(t *testing.T) {
	openai := &fakeProvider{vendor: VendorOpenAI, content: "from openai"}
	anthropic := &fakeProvider{vendor: VendorAnthropic, fail: true}
	r := newTestRouter(t, map[Vendor]Provider{VendorOpenAI: openai, VendorAnthropic: anthropic})

	comp, err := r.GenerateCompletion(context.Background(), "document-analysis", []Message{User("x")}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if anthropic.calls != 2 {
		t.Fatalf("expected 2 attempts on primary, got %d", anthropic.calls)
	}
	if openai.calls != 1 || openai.models[0] != "gpt-4o-mini" {
		t.Fatalf("expected one fallback call with gpt-4o-mini, got %d %v", openai.calls, openai.models)
	}
	if comp.Provider != VendorOpenAI {
		t.Fatalf("expected fallback provider, got %s", comp.Provider)
	}
}

func TestGenerateCompletion_BothFailNamesTask(t *testing.T) {
	openai := &fakeProvider{vendor: VendorOpenAI, fail: true}
	anthropic := &fakeProvider{vendor: VendorAnthropic, fail: true}
	r := newTestRouter(t, map[Vendor]Provider{VendorOpenAI: openai, VendorAnthropic: anthropic})

	_, err := r.GenerateCompletion(context.Background(), "form-generation", []Message{User("x")}, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "form-generation") {
		t.Fatalf("error should name the task: %v", err)
	}
	if openai.calls != 2 || anthropic.calls != 1 {
		t.Fatalf("expected 2 primary and 1 fallback call, got %d and %d", openai.calls, anthropic.calls)
	}
}

func TestGenerateCompletion_MissingVendorFallsBack(t *testing.T) {
	anthropic := &fakeProvider{vendor: VendorAnthropic, content: "claude"}
	r := newTestRouter(t, map[Vendor]Provider{VendorAnthropic: anthropic})

	comp, err := r.GenerateCompletion(context.Background(), "scoring", []Message{User("x")}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.Provider != VendorAnthropic || comp.Model != "claude-3-5-haiku-latest" {
		t.Fatalf("unexpected completion %+v", comp)
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{System("a"), User("q"), System("b"), Assistant("r")})
	if system != "a\n\nb" {
		t.Fatalf("unexpected system %q", system)
	}
	if len(rest) != 2 || rest[0].Role != "user" || rest[1].Role != "assistant" {
		t.Fatalf("unexpected turns %+v", rest)
	}
}
