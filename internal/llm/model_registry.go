package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	llmclient "appforge/internal/llmclient"
)

// ModelProfile describes a registered model's properties.
type ModelProfile struct {
	Provider  string
	Tier      string
	Model     string
	Name      string
	Level     llmclient.ModelLevel
	MaxTokens int
	RateLimit *llmclient.RateLimitConfig
}

// RegisteredModel pairs a profile with its factory.
type RegisteredModel struct {
	Profile ModelProfile
	Factory llmclient.ClientFactory
}

var (
	ErrModelNotRegistered = errors.New("llm model profile is not registered")
	ErrModelLevelRequired = errors.New("llm model level is required")
)

// InMemoryModelRegistry stores model registrations in memory.
type InMemoryModelRegistry struct {
	mu      sync.RWMutex
	models  map[string]RegisteredModel
	byLevel map[llmclient.ModelLevel][]string
}

// NewInMemoryModelRegistry creates a new empty registry.
func NewInMemoryModelRegistry() *InMemoryModelRegistry {
	return &InMemoryModelRegistry{
		models:  map[string]RegisteredModel{},
		byLevel: map[llmclient.ModelLevel][]string{},
	}
}

func normalizeLevel(level llmclient.ModelLevel) llmclient.ModelLevel {
	switch level {
	case llmclient.ModelLevelLow, llmclient.ModelLevelMiddle, llmclient.ModelLevelHigh:
		return level
	default:
		return ""
	}
}

func keyFor(provider, model string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)
	return provider + "::" + model
}

// SplitModelID splits a provider-prefixed identifier ("gemini/gemini-2.5-flash")
// into (provider, model). A bare name yields an empty provider.
func SplitModelID(id string) (provider, model string) {
	id = strings.TrimSpace(id)
	if i := strings.IndexByte(id, '/'); i >= 0 {
		return strings.ToLower(id[:i]), id[i+1:]
	}
	return "", id
}

// RegisterModel adds a model to the registry.
func (r *InMemoryModelRegistry) RegisterModel(spec llmclient.ModelRegistration) error {
	if spec.Factory == nil {
		return fmt.Errorf("register model: factory is nil")
	}
	level := normalizeLevel(spec.Level)
	if level == "" {
		return fmt.Errorf("register model: invalid level %q", spec.Level)
	}
	provider := strings.ToLower(strings.TrimSpace(spec.Provider))
	model := strings.TrimSpace(spec.Model)
	if provider == "" || model == "" {
		return fmt.Errorf("register model: provider and model are required")
	}

	entry := RegisteredModel{
		Profile: ModelProfile{
			Provider:  provider,
			Tier:      strings.TrimSpace(spec.Tier),
			Model:     model,
			Name:      provider + ":" + model,
			Level:     level,
			MaxTokens: spec.MaxTokens,
			RateLimit: spec.RateLimit,
		},
		Factory: spec.Factory,
	}

	k := keyFor(provider, model)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[k]; !ok {
		r.byLevel[level] = append(r.byLevel[level], k)
	}
	r.models[k] = entry
	return nil
}

// Resolve finds a registered model by provider/model. An empty provider
// matches the first registration with that bare model name.
func (r *InMemoryModelRegistry) Resolve(provider, model string) (RegisteredModel, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return RegisteredModel{}, fmt.Errorf("%w: empty model", ErrModelNotRegistered)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if strings.TrimSpace(provider) != "" {
		if m, ok := r.models[keyFor(provider, model)]; ok {
			return m, nil
		}
		return RegisteredModel{}, fmt.Errorf("%w: provider=%s model=%s", ErrModelNotRegistered, provider, model)
	}
	for _, m := range r.models {
		if m.Profile.Model == model {
			return m, nil
		}
	}
	return RegisteredModel{}, fmt.Errorf("%w: model=%s", ErrModelNotRegistered, model)
}

// ResolveLevel picks the first registered model at the given capability level.
func (r *InMemoryModelRegistry) ResolveLevel(level llmclient.ModelLevel) (RegisteredModel, error) {
	level = normalizeLevel(level)
	if level == "" {
		return RegisteredModel{}, ErrModelLevelRequired
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if keys := r.byLevel[level]; len(keys) > 0 {
		if m, ok := r.models[keys[0]]; ok {
			return m, nil
		}
	}
	return RegisteredModel{}, fmt.Errorf("%w: level=%s", ErrModelNotRegistered, level)
}

// BuildClient creates a client for a provider-prefixed model identifier and
// applies the model's rate limits plus the standard retry/logging chain.
// The prefix is stripped before the provider factory sees the model name.
func (r *InMemoryModelRegistry) BuildClient(ctx context.Context, modelID string) (llmclient.LLMClient, error) {
	provider, model := SplitModelID(modelID)
	entry, err := r.Resolve(provider, model)
	if err != nil {
		return nil, err
	}
	cli, err := entry.Factory(ctx)
	if err != nil {
		return nil, err
	}
	mws := []Middleware{Retry(3, 500 * time.Millisecond), Logging(nil)}
	if rl := entry.Profile.RateLimit; rl != nil && (rl.RPS > 0 || rl.Burst > 0) {
		mws = append(mws, RateLimit(rl.RPS, rl.Burst))
	}
	return Wrap(cli, mws...), nil
}
