package llmclient

import (
	"context"
	"os"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
// It only focuses on the API call itself. Cross-cutting concerns
// (rate limiting, retries, logging) are applied via Middleware.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	// NOTE: apiKey is currently unused here; the genai client may read it from env.
	// Keep the parameter for a consistent factory signature.
	_ = apiKey

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

func (g *GeminiClient) config(req Request) (*genai.GenerateContentConfig, []*genai.Content) {
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature >= 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	var contents []*genai.Content
	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
		}
	}
	return cfg, contents
}

func (g *GeminiClient) GenerateText(ctx context.Context, req Request) (string, error) {
	cfg, contents := g.config(req)
	model := req.Model
	if model == "" {
		model = g.model
	}
	resp, err := g.cli.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", err
	}
	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *GeminiClient) GenerateTextStream(ctx context.Context, req Request, onChunk func(chunk string)) (string, error) {
	cfg, contents := g.config(req)
	model := req.Model
	if model == "" {
		model = g.model
	}
	var full strings.Builder
	for resp, err := range g.cli.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return "", err
		}
		chunk := responseText(resp)
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if full.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return full.String(), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func RegisterGeminiModels(reg ModelRegistrar) error {
	return RegisterGeminiModelsForTier(reg, "free")
}

func RegisterGeminiModelsForTier(reg ModelRegistrar, tier string) error {
	tier = normalizeTier(tier, "free")

	limits := &RateLimitConfig{RPM: 15, RPS: 0.25, Burst: 1}
	if tier == "tier1" {
		limits = &RateLimitConfig{RPM: 60, RPS: 1, Burst: 1}
	}
	models := []struct {
		name  string
		level ModelLevel
	}{
		{name: "gemini-2.5-flash", level: ModelLevelLow},
		{name: "gemini-2.5-flash", level: ModelLevelMiddle},
		{name: "gemini-2.5-pro", level: ModelLevelHigh},
	}
	for _, m := range models {
		modelName := m.name
		if err := reg.RegisterModel(ModelRegistration{
			Provider:  "gemini",
			Tier:      tier,
			Model:     modelName,
			Level:     m.level,
			MaxTokens: 12000,
			RateLimit: limits,
			Factory: func(ctx context.Context) (LLMClient, error) {
				return NewGeminiClient(ctx, os.Getenv("GEMINI_API_KEY"), modelName)
			},
		}); err != nil {
			return err
		}
	}
	return nil
}
