package ai

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/providers.yaml
var providersYAML []byte

// ProviderConfig is the vendor and model a task routes to.
type ProviderConfig struct {
	Provider Vendor `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
	Source   string `yaml:"-" json:"source"` // table, override, default
}

type strategyFile struct {
	Default        ProviderConfig            `yaml:"default"`
	FallbackModels map[Vendor]string         `yaml:"fallback_models"`
	Tasks          map[string]ProviderConfig `yaml:"tasks"`
}

// Router maps task names to vendors, retries the chosen vendor and falls back once to the other vendor.
// The table is read-only after NewRouter returns.
type Router struct {
	tasks          map[string]ProviderConfig
	defaultConfig  ProviderConfig
	fallbackModels map[Vendor]string
	providers      map[Vendor]Provider

	MaxRetries int
	retryDelay time.Duration
}

func loadStrategy() (*strategyFile, error) {
	var sf strategyFile
	if err := yaml.Unmarshal(providersYAML, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse provider table: %w", err)
	}
	if !sf.Default.Provider.Valid() || sf.Default.Model == "" {
		return nil, errors.New("provider table has no valid default")
	}
	for task, cfg := range sf.Tasks {
		if !cfg.Provider.Valid() || cfg.Model == "" {
			return nil, fmt.Errorf("provider table entry %q is invalid", task)
		}
	}
	return &sf, nil
}

// NewRouter loads the embedded table and applies AI_PROVIDER_<TASK> overrides from the environment.
// Vendors absent from providers are treated as failing.
func NewRouter(providers map[Vendor]Provider, maxRetries int) (*Router, error) {
	sf, err := loadStrategy()
	if err != nil {
		return nil, err
	}
	if maxRetries <= 0 {
		maxRetries = 2
	}

	r := &Router{
		tasks:          make(map[string]ProviderConfig, len(sf.Tasks)),
		defaultConfig:  sf.Default,
		fallbackModels: sf.FallbackModels,
		providers:      providers,
		MaxRetries:     maxRetries,
		retryDelay:     500 * time.Millisecond,
	}
	r.defaultConfig.Source = "default"
	if r.fallbackModels == nil {
		r.fallbackModels = map[Vendor]string{}
	}
	if r.providers == nil {
		r.providers = map[Vendor]Provider{}
	}

	for task, cfg := range sf.Tasks {
		cfg.Source = "table"
		if override, ok := parseOverride(os.Getenv(OverrideEnvVar(task))); ok {
			log.Printf("[ai] override for %s: %s:%s", task, override.Provider, override.Model)
			cfg = override
		} else if raw := os.Getenv(OverrideEnvVar(task)); raw != "" {
			log.Printf("[ai] ignoring malformed override %s=%q", OverrideEnvVar(task), raw)
		}
		r.tasks[task] = cfg
	}
	return r, nil
}

// OverrideEnvVar names the environment variable that overrides a task, e.g. AI_PROVIDER_DOCUMENT_ANALYSIS.
func OverrideEnvVar(task string) string {
	return "AI_PROVIDER_" + strings.ToUpper(strings.ReplaceAll(task, "-", "_"))
}

func parseOverride(raw string) (ProviderConfig, bool) {
	raw = strings.TrimSpace(raw)
	vendor, model, ok := strings.Cut(raw, ":")
	if !ok {
		return ProviderConfig{}, false
	}
	v := Vendor(strings.ToLower(strings.TrimSpace(vendor)))
	model = strings.TrimSpace(model)
	if !v.Valid() || model == "" {
		return ProviderConfig{}, false
	}
	return ProviderConfig{Provider: v, Model: model, Source: "override"}, true
}

// GetProviderConfig returns the table entry for task, or the default for unknown tasks.
func (r *Router) GetProviderConfig(task string) ProviderConfig {
	if cfg, ok := r.tasks[task]; ok {
		return cfg
	}
	return r.defaultConfig
}

// Tasks lists the configured task names and their routing.
func (r *Router) Tasks() map[string]ProviderConfig {
	out := make(map[string]ProviderConfig, len(r.tasks))
	for k, v := range r.tasks {
		out[k] = v
	}
	return out
}

// HasVendor reports whether a client is configured for v.
func (r *Router) HasVendor(v Vendor) bool {
	return r.providers[v] != nil
}

func fallbackVendor(v Vendor) Vendor {
	if v == VendorOpenAI {
		return VendorAnthropic
	}
	return VendorOpenAI
}

func (r *Router) call(ctx context.Context, v Vendor, model string, messages []Message, opts Options) (*Completion, error) {
	p := r.providers[v]
	if p == nil {
		return nil, fmt.Errorf("%s: %w", v, ErrNoProvider)
	}
	return p.Complete(ctx, model, messages, opts)
}

// GenerateCompletion runs task on its configured vendor, retrying up to MaxRetries attempts,
// then calls the other vendor once. If both fail the error names the task.
func (r *Router) GenerateCompletion(ctx context.Context, task string, messages []Message, opts Options) (*Completion, error) {
	cfg := r.GetProviderConfig(task)
	log.Printf("[ai] task=%s provider=%s model=%s reason=%s", task, cfg.Provider, cfg.Model, cfg.Source)

	var primaryErr error
	for attempt := 1; attempt <= r.MaxRetries; attempt++ {
		comp, err := r.call(ctx, cfg.Provider, cfg.Model, messages, opts)
		if err == nil {
			return comp, nil
		}
		primaryErr = err
		log.Printf("[ai] task=%s attempt %d/%d on %s failed: %v", task, attempt, r.MaxRetries, cfg.Provider, err)
		if errors.Is(err, ErrNoProvider) || ctx.Err() != nil {
			break
		}
		if attempt < r.MaxRetries && r.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("task %s cancelled: %w", task, ctx.Err())
			case <-time.After(r.retryDelay * time.Duration(attempt)):
			}
		}
	}

	fb := fallbackVendor(cfg.Provider)
	fbModel := r.fallbackModels[fb]
	if fbModel == "" {
		fbModel = r.defaultConfig.Model
	}
	log.Printf("[ai] task=%s falling back to %s model=%s", task, fb, fbModel)

	comp, fbErr := r.call(ctx, fb, fbModel, messages, opts)
	if fbErr == nil {
		return comp, nil
	}
	return nil, fmt.Errorf("all providers failed for task %s: %w", task, errors.Join(primaryErr, fbErr))
}
