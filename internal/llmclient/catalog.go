package llmclient

import "context"

type ModelLevel string

const (
	ModelLevelLow    ModelLevel = "low"
	ModelLevelMiddle ModelLevel = "middle"
	ModelLevelHigh   ModelLevel = "high"
)

type ClientFactory func(ctx context.Context) (LLMClient, error)

type RateLimitConfig struct {
	RPM   int
	RPS   float64
	Burst int
}

type ModelRegistration struct {
	Provider  string
	Tier      string
	Model     string
	Level     ModelLevel
	MaxTokens int
	RateLimit *RateLimitConfig
	Factory   ClientFactory
}

type ModelRegistrar interface {
	RegisterModel(spec ModelRegistration) error
}

func normalizeTier(tier, fallback string) string {
	switch tier {
	case "free", "tier1":
		return tier
	default:
		return fallback
	}
}
