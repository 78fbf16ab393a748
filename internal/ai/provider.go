package ai

import (
	"context"
	"errors"
)

type Vendor string

const (
	VendorOpenAI    Vendor = "openai"
	VendorAnthropic Vendor = "anthropic"
	VendorOllama    Vendor = "ollama"
)

func (v Vendor) Valid() bool {
	switch v {
	case VendorOpenAI, VendorAnthropic, VendorOllama:
		return true
	}
	return false
}

// ErrNoProvider is returned when a task routes to a vendor with no configured client.
var ErrNoProvider = errors.New("provider not configured")

// Message is a role-tagged chat message. Role is system, user or assistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message    { return Message{Role: "system", Content: content} }
func User(content string) Message      { return Message{Role: "user", Content: content} }
func Assistant(content string) Message { return Message{Role: "assistant", Content: content} }

const ResponseFormatJSON = "json"

// Options tunes a single completion. Zero values leave the vendor default in place.
type Options struct {
	MaxTokens      int
	Temperature    float64
	ResponseFormat string // "" or "json"
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the normalized result of any vendor call.
type Completion struct {
	Content  string `json:"content"`
	Usage    Usage  `json:"usage"`
	Provider Vendor `json:"provider"`
	Model    string `json:"model"`
}

// Provider is implemented by each vendor client.
type Provider interface {
	Complete(ctx context.Context, model string, messages []Message, opts Options) (*Completion, error)
}

// Completer is what feature code depends on: a task-routed completion.
type Completer interface {
	GenerateCompletion(ctx context.Context, task string, messages []Message, opts Options) (*Completion, error)
}

// splitSystem separates system messages from the conversational turns.
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
